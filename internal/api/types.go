package api

import (
	"time"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/jobs"
	"github.com/feedbackhq/feedback/internal/services"
)

// --- Merge settings ---

// UpdateMergeSettingsRequest is the body of PUT /api/settings/merge.
// Omitted fields keep their current value.
type UpdateMergeSettingsRequest struct {
	VectorThreshold      *float64 `json:"vector_threshold" validate:"omitempty,gte=0,lte=1"`
	HybridThreshold      *float64 `json:"hybrid_threshold" validate:"omitempty,gte=0,lte=1"`
	FTSWeight            *float64 `json:"fts_weight" validate:"omitempty,gte=0,lte=1"`
	CandidateLimit       *int     `json:"candidate_limit" validate:"omitempty,gte=1,lte=20"`
	ConfidenceThreshold  *float64 `json:"confidence_threshold" validate:"omitempty,gte=0,lte=1"`
	SweepEnabled         *bool    `json:"sweep_enabled"`
	SweepIntervalMinutes *int     `json:"sweep_interval_minutes" validate:"omitempty,gte=1,lte=10080"`
	SweepBatchSize       *int     `json:"sweep_batch_size" validate:"omitempty,gte=1,lte=500"`
	SweepDelayMs         *int     `json:"sweep_delay_ms" validate:"omitempty,gte=0,lte=60000"`
	StaleAfterHours      *int     `json:"stale_after_hours" validate:"omitempty,gte=1"`
	ExpireAfterDays      *int     `json:"expire_after_days" validate:"omitempty,gte=1"`
}

// --- LLM settings ---

// UpdateLLMSettingsRequest is the body of PUT /api/settings/llm.
// The named provider becomes the active one.
type UpdateLLMSettingsRequest struct {
	Provider string  `json:"provider" validate:"required,oneof=openrouter openai anthropic google"`
	APIKey   *string `json:"api_key"`
	Model    *string `json:"model" validate:"omitempty,max=100"`
	BaseURL  *string `json:"base_url" validate:"omitempty,url"`
}

// LLMProviderResponse is one provider row with its key masked.
type LLMProviderResponse struct {
	Provider     database.LLMProvider `json:"provider"`
	APIKey       string               `json:"api_key"`
	Model        string               `json:"model"`
	BaseURL      string               `json:"base_url"`
	Enabled      bool                 `json:"enabled"`
	Active       bool                 `json:"active"`
	IsConfigured bool                 `json:"is_configured"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// LLMSettingsResponse lists every provider and names the active one.
type LLMSettingsResponse struct {
	ActiveProvider database.LLMProvider  `json:"active_provider"`
	Providers      []LLMProviderResponse `json:"providers"`
}

// --- Merge suggestions ---

// PaginationMeta holds pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// SuggestionListResponse is the body of GET /api/merge-suggestions.
type SuggestionListResponse struct {
	Data       []services.MergeSuggestionView `json:"data"`
	Sort       services.SuggestionSort        `json:"sort"`
	Pagination PaginationMeta                 `json:"pagination"`
}

// PostSuggestionsResponse is the body of GET /api/posts/{id}/merge-suggestions.
type PostSuggestionsResponse struct {
	Data []services.MergeSuggestionView `json:"data"`
}

// DismissResponse reports whether a pending suggestion was dismissed.
type DismissResponse struct {
	Dismissed bool `json:"dismissed"`
}

// --- Sweep ---

// SweepTriggerResponse is returned by POST /api/merge-sweep.
type SweepTriggerResponse struct {
	Status string `json:"status"`
}

// SweepStatusResponse is returned by GET /api/merge-sweep.
type SweepStatusResponse struct {
	Running    bool              `json:"running"`
	LastResult *jobs.SweepResult `json:"last_result,omitempty"`
}
