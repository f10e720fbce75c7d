package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MergeSuggestionStatus is the lifecycle state of a suggestion.
// Transitions are one-way: pending -> accepted | dismissed | expired.
type MergeSuggestionStatus string

const (
	MergeSuggestionStatusPending   MergeSuggestionStatus = "pending"
	MergeSuggestionStatusAccepted  MergeSuggestionStatus = "accepted"
	MergeSuggestionStatusDismissed MergeSuggestionStatus = "dismissed"
	MergeSuggestionStatusExpired   MergeSuggestionStatus = "expired"
)

// MergeSuggestion proposes folding SourcePostID into TargetPostID.
// At most one pending suggestion exists per unordered post pair (see pendingPairIndexSQL).
type MergeSuggestion struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SourcePostID string `gorm:"type:varchar(36);not null;index" json:"source_post_id"` // merged away on accept
	TargetPostID string `gorm:"type:varchar(36);not null;index" json:"target_post_id"` // kept on accept

	VectorScore   float64 `gorm:"column:vector_score" json:"vector_score"`
	FTSScore      float64 `gorm:"column:fts_score" json:"fts_score"`
	HybridScore   float64 `gorm:"column:hybrid_score;index" json:"hybrid_score"`
	LLMConfidence float64 `gorm:"column:llm_confidence" json:"llm_confidence"`
	LLMReasoning  string  `gorm:"column:llm_reasoning;type:text" json:"llm_reasoning"`
	LLMModel      string  `gorm:"column:llm_model;type:varchar(100)" json:"llm_model"`

	Status                MergeSuggestionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ResolvedAt            *time.Time            `json:"resolved_at,omitempty"`
	ResolvedByPrincipalID *string               `gorm:"type:varchar(128)" json:"resolved_by_principal_id,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID and the pending status when unset
func (m *MergeSuggestion) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MergeSuggestionStatusPending
	}
	return nil
}

// IsPending returns true if the suggestion has not been resolved
func (m *MergeSuggestion) IsPending() bool {
	return m.Status == MergeSuggestionStatusPending
}

// Involves returns true if postID is the source or the target
func (m *MergeSuggestion) Involves(postID string) bool {
	return m.SourcePostID == postID || m.TargetPostID == postID
}

func (MergeSuggestion) TableName() string {
	return "merge_suggestions"
}
