package database

import (
	"time"
)

// MergeSettings controls the duplicate-detection pipeline (singleton row)
type MergeSettings struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	VectorThreshold      float64   `gorm:"type:decimal(3,2);default:0.35" json:"vector_threshold"`
	HybridThreshold      float64   `gorm:"type:decimal(3,2);default:0.40" json:"hybrid_threshold"`
	FTSWeight            float64   `gorm:"column:fts_weight;type:decimal(3,2);default:0.30" json:"fts_weight"`
	CandidateLimit       int       `gorm:"default:5" json:"candidate_limit"`
	ConfidenceThreshold  float64   `gorm:"type:decimal(3,2);default:0.75" json:"confidence_threshold"`
	SweepEnabled         bool      `json:"sweep_enabled"`
	SweepIntervalMinutes int       `gorm:"default:60" json:"sweep_interval_minutes"`
	SweepBatchSize       int       `gorm:"default:50" json:"sweep_batch_size"`
	SweepDelayMs         int       `gorm:"default:500" json:"sweep_delay_ms"`
	StaleAfterHours      int       `gorm:"default:24" json:"stale_after_hours"`
	ExpireAfterDays      int       `gorm:"default:30" json:"expire_after_days"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (MergeSettings) TableName() string {
	return "merge_settings"
}

// NewDefaultMergeSettings returns settings with default values
func NewDefaultMergeSettings() *MergeSettings {
	return &MergeSettings{
		VectorThreshold:      0.35,
		HybridThreshold:      0.40,
		FTSWeight:            0.30,
		CandidateLimit:       5,
		ConfidenceThreshold:  0.75,
		SweepEnabled:         true,
		SweepIntervalMinutes: 60,
		SweepBatchSize:       50,
		SweepDelayMs:         500,
		StaleAfterHours:      24,
		ExpireAfterDays:      30,
	}
}

// SweepDelay returns the pause between posts within a sweep
func (s *MergeSettings) SweepDelay() time.Duration {
	return time.Duration(s.SweepDelayMs) * time.Millisecond
}

// StaleAfter returns how old merge_checked_at must be before a post is rechecked
func (s *MergeSettings) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterHours) * time.Hour
}

// ExpireAfter returns the age at which pending suggestions expire
func (s *MergeSettings) ExpireAfter() time.Duration {
	return time.Duration(s.ExpireAfterDays) * 24 * time.Hour
}

// SweepInterval returns the time between scheduled sweeps
func (s *MergeSettings) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}
