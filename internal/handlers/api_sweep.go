package handlers

import (
	"context"
	"net/http"

	"github.com/feedbackhq/feedback/internal/api"
)

// handleMergeCheck handles POST /api/posts/{id}/merge-check. The check runs
// synchronously; callers that do not want to wait should rely on the sweep.
func (h *APIHandler) handleMergeCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	result, err := h.checker.CheckPost(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "check post for duplicates")
		return
	}
	api.RespondJSON(w, http.StatusOK, result)
}

// handleTriggerSweep handles POST /api/merge-sweep
func (h *APIHandler) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	// The sweep outlives the request.
	if err := h.sweep.RunAsync(context.WithoutCancel(r.Context())); err != nil {
		respondServiceError(w, r, err, "start merge sweep")
		return
	}
	api.RespondJSON(w, http.StatusAccepted, api.SweepTriggerResponse{Status: "started"})
}

// handleSweepStatus handles GET /api/merge-sweep
func (h *APIHandler) handleSweepStatus(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, api.SweepStatusResponse{
		Running:    h.sweep.IsRunning(),
		LastResult: h.sweep.LastResult(),
	})
}
