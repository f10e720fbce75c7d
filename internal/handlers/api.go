package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/api"
	"github.com/feedbackhq/feedback/internal/jobs"
	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/middleware"
	"github.com/feedbackhq/feedback/internal/services"
)

// APIHandler handles the admin API for merge suggestions
type APIHandler struct {
	db          *gorm.DB
	suggestions *services.MergeSuggestionService
	checker     *services.MergeCheckService
	sweep       *jobs.MergeSweepJob
	stream      *SuggestionStream
}

// NewAPIHandler creates a new API handler. stream may be nil, in which case
// the websocket route is not registered.
func NewAPIHandler(db *gorm.DB, suggestions *services.MergeSuggestionService, checker *services.MergeCheckService, sweep *jobs.MergeSweepJob, stream *SuggestionStream) *APIHandler {
	return &APIHandler{
		db:          db,
		suggestions: suggestions,
		checker:     checker,
		sweep:       sweep,
		stream:      stream,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Merge suggestions
	mux.HandleFunc("GET /api/merge-suggestions", h.handleListSuggestions)
	mux.HandleFunc("GET /api/merge-suggestions/{id}", h.handleGetSuggestion)
	mux.HandleFunc("POST /api/merge-suggestions/{id}/accept", h.handleAcceptSuggestion)
	mux.HandleFunc("POST /api/merge-suggestions/{id}/dismiss", h.handleDismissSuggestion)
	if h.stream != nil {
		mux.HandleFunc("GET /api/merge-suggestions/stream", h.stream.HandleWebSocket)
	}

	// Per-post
	mux.HandleFunc("GET /api/posts/{id}/merge-suggestions", h.handlePostSuggestions)
	mux.HandleFunc("POST /api/posts/{id}/merge-check", h.handleMergeCheck)

	// Sweep
	mux.HandleFunc("GET /api/merge-sweep", h.handleSweepStatus)
	mux.HandleFunc("POST /api/merge-sweep", h.handleTriggerSweep)

	// Settings
	mux.HandleFunc("GET /api/settings/merge", h.handleGetMergeSettings)
	mux.HandleFunc("PUT /api/settings/merge", h.handleUpdateMergeSettings)
	mux.HandleFunc("GET /api/settings/llm", h.handleGetLLMSettings)
	mux.HandleFunc("PUT /api/settings/llm", h.handleUpdateLLMSettings)
}

// principal returns the acting principal or writes a 401
func principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == "" {
		api.RespondError(w, http.StatusUnauthorized, "Missing principal")
		return "", false
	}
	return p, true
}

// pathID parses the {id} wildcard or writes a 400
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidID, "id must be a UUID")
		return "", false
	}
	return id, true
}

// respondServiceError maps domain errors to HTTP statuses
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, services.ErrSuggestionNotFound):
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, services.ErrSuggestionNotFound.Error())
	case errors.Is(err, services.ErrPostNotFound):
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, services.ErrPostNotFound.Error())
	case errors.Is(err, services.ErrPostAlreadyMerged), errors.Is(err, services.ErrSelfMerge):
		api.RespondErrorWithCode(w, http.StatusConflict, api.CodeConflict, err.Error())
	case errors.Is(err, jobs.ErrSweepInProgress):
		api.RespondErrorWithCode(w, http.StatusConflict, api.CodeSweepInProgress, err.Error())
	default:
		logger.L().Error("Request failed",
			zap.String("action", action),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
