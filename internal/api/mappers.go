package api

import (
	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/services"
)

// ApplyMergeSettingsUpdate copies every field set in req onto s.
func ApplyMergeSettingsUpdate(s *database.MergeSettings, req UpdateMergeSettingsRequest) {
	setIf(&s.VectorThreshold, req.VectorThreshold)
	setIf(&s.HybridThreshold, req.HybridThreshold)
	setIf(&s.FTSWeight, req.FTSWeight)
	setIf(&s.CandidateLimit, req.CandidateLimit)
	setIf(&s.ConfidenceThreshold, req.ConfidenceThreshold)
	setIf(&s.SweepEnabled, req.SweepEnabled)
	setIf(&s.SweepIntervalMinutes, req.SweepIntervalMinutes)
	setIf(&s.SweepBatchSize, req.SweepBatchSize)
	setIf(&s.SweepDelayMs, req.SweepDelayMs)
	setIf(&s.StaleAfterHours, req.StaleAfterHours)
	setIf(&s.ExpireAfterDays, req.ExpireAfterDays)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// LLMProviderToResponse converts a provider row, masking its API key.
func LLMProviderToResponse(s database.LLMSettings) LLMProviderResponse {
	return LLMProviderResponse{
		Provider:     s.Provider,
		APIKey:       MaskSecret(s.APIKey),
		Model:        s.Model,
		BaseURL:      s.BaseURL,
		Enabled:      s.Enabled,
		Active:       s.Active,
		IsConfigured: s.IsConfigured(),
		UpdatedAt:    s.UpdatedAt,
	}
}

// LLMSettingsToResponse converts every provider row and picks out the active one.
func LLMSettingsToResponse(rows []database.LLMSettings) LLMSettingsResponse {
	resp := LLMSettingsResponse{Providers: make([]LLMProviderResponse, 0, len(rows))}
	for _, row := range rows {
		resp.Providers = append(resp.Providers, LLMProviderToResponse(row))
		if row.Active {
			resp.ActiveProvider = row.Provider
		}
	}
	return resp
}

// MaskSecret masks a secret for display, showing only the last 4 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// SuggestionsToListResponse wraps one page of pending suggestions.
func SuggestionsToListResponse(views []services.MergeSuggestionView, sort services.SuggestionSort, p PaginationParams, total int64) SuggestionListResponse {
	if views == nil {
		views = []services.MergeSuggestionView{}
	}
	return SuggestionListResponse{
		Data:       views,
		Sort:       sort,
		Pagination: p.Meta(total),
	}
}
