package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/api"
	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/middleware"
)

// handleGetMergeSettings handles GET /api/settings/merge
func (h *APIHandler) handleGetMergeSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := database.GetOrCreateMergeSettings(h.db.WithContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "get merge settings")
		return
	}
	api.RespondJSON(w, http.StatusOK, settings)
}

// handleUpdateMergeSettings handles PUT /api/settings/merge
func (h *APIHandler) handleUpdateMergeSettings(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateMergeSettingsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondBodyError(w, err)
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	db := h.db.WithContext(r.Context())
	settings, err := database.GetOrCreateMergeSettings(db)
	if err != nil {
		respondServiceError(w, r, err, "get merge settings")
		return
	}
	api.ApplyMergeSettingsUpdate(settings, req)

	if err := database.UpdateMergeSettings(db, settings); err != nil {
		respondServiceError(w, r, err, "update merge settings")
		return
	}

	logger.L().Info("Merge settings updated",
		zap.String("principal", middleware.GetPrincipalFromContext(r.Context())),
		zap.Float64("hybrid_threshold", settings.HybridThreshold),
		zap.Float64("confidence_threshold", settings.ConfidenceThreshold),
		zap.Bool("sweep_enabled", settings.SweepEnabled))
	api.RespondJSON(w, http.StatusOK, settings)
}

// handleGetLLMSettings handles GET /api/settings/llm
func (h *APIHandler) handleGetLLMSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := database.GetAllLLMSettings(h.db.WithContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "get llm settings")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.LLMSettingsToResponse(rows))
}

// handleUpdateLLMSettings handles PUT /api/settings/llm. The named provider
// is updated and becomes the active one.
func (h *APIHandler) handleUpdateLLMSettings(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateLLMSettingsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondBodyError(w, err)
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	db := h.db.WithContext(r.Context())
	provider := database.LLMProvider(req.Provider)
	settings, err := database.GetLLMSettingsByProvider(db, provider)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, fmt.Sprintf("Provider settings not found: %s", provider))
		return
	}
	if err != nil {
		respondServiceError(w, r, err, "get llm settings")
		return
	}

	updates := make(map[string]any)
	if req.APIKey != nil {
		updates["api_key"] = *req.APIKey
		updates["enabled"] = *req.APIKey != ""
	}
	if req.Model != nil {
		updates["model"] = *req.Model
	}
	if req.BaseURL != nil {
		updates["base_url"] = *req.BaseURL
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(settings).Updates(updates).Error; err != nil {
				return err
			}
		}
		return database.SetActiveLLMProvider(tx, provider)
	})
	if err != nil {
		respondServiceError(w, r, err, "update llm settings")
		return
	}

	settings, err = database.GetLLMSettingsByProvider(db, provider)
	if err != nil {
		respondServiceError(w, r, err, "get llm settings")
		return
	}

	logger.L().Info("LLM settings updated",
		zap.String("principal", middleware.GetPrincipalFromContext(r.Context())),
		zap.String("provider", string(provider)),
		zap.String("model", settings.Model))
	api.RespondJSON(w, http.StatusOK, api.LLMProviderToResponse(*settings))
}
