package handlers

import (
	"net/http"

	"github.com/feedbackhq/feedback/internal/api"
	"github.com/feedbackhq/feedback/internal/services"
)

// handleListSuggestions handles GET /api/merge-suggestions
func (h *APIHandler) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	sort, ok := services.ParseSuggestionSort(r.URL.Query().Get("sort"))
	if !ok {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidSort, "sort must be one of: newest, similarity, confidence")
		return
	}
	page := api.ParsePagination(r)

	views, total, err := h.suggestions.ListPendingMergeSuggestions(r.Context(), services.ListOptions{
		Sort:    sort,
		Page:    page.Page,
		PerPage: page.PerPage,
	})
	if err != nil {
		respondServiceError(w, r, err, "list merge suggestions")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.SuggestionsToListResponse(views, sort, page, total))
}

// handleGetSuggestion handles GET /api/merge-suggestions/{id}
func (h *APIHandler) handleGetSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := h.suggestions.GetMergeSuggestion(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "get merge suggestion")
		return
	}
	api.RespondJSON(w, http.StatusOK, view)
}

// handleAcceptSuggestion handles POST /api/merge-suggestions/{id}/accept
func (h *APIHandler) handleAcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principalID, ok := principal(w, r)
	if !ok {
		return
	}

	if _, err := h.suggestions.AcceptMergeSuggestion(r.Context(), id, principalID); err != nil {
		respondServiceError(w, r, err, "accept merge suggestion")
		return
	}

	view, err := h.suggestions.GetMergeSuggestion(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "load accepted merge suggestion")
		return
	}
	api.RespondJSON(w, http.StatusOK, view)
}

// handleDismissSuggestion handles POST /api/merge-suggestions/{id}/dismiss
func (h *APIHandler) handleDismissSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	principalID, ok := principal(w, r)
	if !ok {
		return
	}

	dismissed, err := h.suggestions.DismissMergeSuggestion(r.Context(), id, principalID)
	if err != nil {
		respondServiceError(w, r, err, "dismiss merge suggestion")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.DismissResponse{Dismissed: dismissed})
}

// handlePostSuggestions handles GET /api/posts/{id}/merge-suggestions
func (h *APIHandler) handlePostSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	views, err := h.suggestions.ListMergeSuggestionsForPost(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "list merge suggestions for post")
		return
	}
	if views == nil {
		views = []services.MergeSuggestionView{}
	}
	api.RespondJSON(w, http.StatusOK, api.PostSuggestionsResponse{Data: views})
}
