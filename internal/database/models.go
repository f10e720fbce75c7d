package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// EmbeddingDimensions is the width of post embedding vectors
const EmbeddingDimensions = 1536

// Board groups posts (e.g. "Feature requests", "Bugs")
type Board struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Slug      string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none is set
func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// PostStatusCategory buckets workflow statuses for display
type PostStatusCategory string

const (
	PostStatusCategoryActive   PostStatusCategory = "active"
	PostStatusCategoryComplete PostStatusCategory = "complete"
	PostStatusCategoryClosed   PostStatusCategory = "closed"
)

// PostStatus is a workflow status a post can be in ("Planned", "Shipped", ...)
type PostStatus struct {
	ID        string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string             `gorm:"size:64;not null" json:"name"`
	Color     string             `gorm:"size:16" json:"color"`
	Category  PostStatusCategory `gorm:"type:varchar(20);not null;default:'active'" json:"category"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none is set
func (s *PostStatus) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Post is a piece of customer feedback on a board
type Post struct {
	ID           string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BoardID      string           `gorm:"type:varchar(36);not null;index" json:"board_id"`
	StatusID     *string          `gorm:"type:varchar(36);index" json:"status_id,omitempty"`
	Title        string           `gorm:"type:varchar(255);not null" json:"title"`
	Content      string           `gorm:"type:text" json:"content"`
	VoteCount    int              `gorm:"not null;default:0" json:"vote_count"`
	CommentCount int              `gorm:"not null;default:0" json:"comment_count"`
	Embedding    *pgvector.Vector `gorm:"type:vector(1536)" json:"-"`

	// Set on the losing post when a merge is accepted
	CanonicalPostID     *string    `gorm:"type:varchar(36);index" json:"canonical_post_id,omitempty"`
	MergedAt            *time.Time `json:"merged_at,omitempty"`
	MergedByPrincipalID *string    `gorm:"type:varchar(128)" json:"merged_by_principal_id,omitempty"`

	// Last time the duplicate sweep looked at this post
	MergeCheckedAt *time.Time `gorm:"index" json:"merge_checked_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Board  *Board      `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	Status *PostStatus `gorm:"foreignKey:StatusID" json:"status,omitempty"`
}

// BeforeCreate assigns a UUID when none is set
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsMerged returns true if the post has been merged into another post
func (p *Post) IsMerged() bool {
	return p.CanonicalPostID != nil
}

// HasEmbedding returns true if the post has a usable embedding vector
func (p *Post) HasEmbedding() bool {
	return p.Embedding != nil && len(p.Embedding.Slice()) > 0
}

// Vote is one principal's upvote on a post
type Vote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_votes_post_principal" json:"post_id"`
	PrincipalID string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_votes_post_principal" json:"principal_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is a reply on a post
type Comment struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID      string         `gorm:"type:varchar(36);not null;index" json:"post_id"`
	PrincipalID string         `gorm:"type:varchar(128);not null" json:"principal_id"`
	Content     string         `gorm:"type:text" json:"content"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when none is set
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// LLMProvider identifies an LLM backend
type LLMProvider string

const (
	LLMProviderOpenRouter LLMProvider = "openrouter"
	LLMProviderOpenAI     LLMProvider = "openai"
	LLMProviderAnthropic  LLMProvider = "anthropic"
	LLMProviderGoogle     LLMProvider = "google"
)

// ValidLLMProviders returns all supported providers in seeding order
func ValidLLMProviders() []LLMProvider {
	return []LLMProvider{
		LLMProviderOpenRouter,
		LLMProviderOpenAI,
		LLMProviderAnthropic,
		LLMProviderGoogle,
	}
}

// IsValidLLMProvider reports whether p is a supported provider
func IsValidLLMProvider(p LLMProvider) bool {
	for _, v := range ValidLLMProviders() {
		if v == p {
			return true
		}
	}
	return false
}

// LLMSettings stores configuration for one LLM provider (one row per provider)
type LLMSettings struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Provider  LLMProvider `gorm:"type:varchar(32);uniqueIndex;not null" json:"provider"`
	APIKey    string      `gorm:"type:text" json:"-"`
	Model     string      `gorm:"type:varchar(100)" json:"model"`
	BaseURL   string      `gorm:"type:text" json:"base_url"`
	Enabled   bool        `json:"enabled"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsConfigured returns true if the provider has credentials and a model
func (s *LLMSettings) IsConfigured() bool {
	return s.APIKey != "" && s.Model != ""
}

// IsActive returns true if the provider is enabled and configured
func (s *LLMSettings) IsActive() bool {
	return s.Enabled && s.IsConfigured()
}

// TableName overrides for explicit table naming
func (Board) TableName() string {
	return "boards"
}

func (PostStatus) TableName() string {
	return "post_statuses"
}

func (Post) TableName() string {
	return "posts"
}

func (Vote) TableName() string {
	return "votes"
}

func (Comment) TableName() string {
	return "comments"
}

func (LLMSettings) TableName() string {
	return "llm_settings"
}
