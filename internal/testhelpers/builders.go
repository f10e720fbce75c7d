package testhelpers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
)

// ========================================
// Board Builder
// ========================================

// BoardBuilder builds Board instances for testing
type BoardBuilder struct {
	board database.Board
}

// NewBoardBuilder creates a new board builder. Boards created without a slug
// get a random one so several can coexist in one database.
func NewBoardBuilder() *BoardBuilder {
	return &BoardBuilder{
		board: database.Board{
			Name: "Feature Requests",
		},
	}
}

// WithSlug sets the board slug
func (b *BoardBuilder) WithSlug(slug string) *BoardBuilder {
	b.board.Slug = slug
	return b
}

// WithName sets the board name
func (b *BoardBuilder) WithName(name string) *BoardBuilder {
	b.board.Name = name
	return b
}

// Build returns the constructed board
func (b *BoardBuilder) Build() database.Board {
	return b.board
}

// Create inserts the board and returns it
func (b *BoardBuilder) Create(t *testing.T, db *gorm.DB) *database.Board {
	t.Helper()
	board := b.Build()
	if board.Slug == "" {
		board.Slug = "board-" + uuid.NewString()[:8]
	}
	if err := db.Create(&board).Error; err != nil {
		t.Fatalf("failed to create board: %v", err)
	}
	return &board
}

// ========================================
// Post Builder
// ========================================

// PostBuilder builds Post instances for testing
type PostBuilder struct {
	post    database.Post
	deleted bool
}

// NewPostBuilder creates a new post builder with defaults. The post has no
// board until WithBoard is called; Create provisions one when needed.
func NewPostBuilder() *PostBuilder {
	return &PostBuilder{
		post: database.Post{
			Title:   "Dark mode",
			Content: "Please add a dark theme to the dashboard.",
		},
	}
}

// WithID sets the post ID
func (b *PostBuilder) WithID(id string) *PostBuilder {
	b.post.ID = id
	return b
}

// WithBoard sets the board
func (b *PostBuilder) WithBoard(boardID string) *PostBuilder {
	b.post.BoardID = boardID
	return b
}

// WithTitle sets the title
func (b *PostBuilder) WithTitle(title string) *PostBuilder {
	b.post.Title = title
	return b
}

// WithContent sets the body
func (b *PostBuilder) WithContent(content string) *PostBuilder {
	b.post.Content = content
	return b
}

// WithVotes sets the denormalized vote count
func (b *PostBuilder) WithVotes(n int) *PostBuilder {
	b.post.VoteCount = n
	return b
}

// WithComments sets the denormalized comment count
func (b *PostBuilder) WithComments(n int) *PostBuilder {
	b.post.CommentCount = n
	return b
}

// WithEmbedding sets the embedding. Short vectors are padded with zeros to
// the configured dimension.
func (b *PostBuilder) WithEmbedding(values ...float32) *PostBuilder {
	v := pgvector.NewVector(PadEmbedding(values...))
	b.post.Embedding = &v
	return b
}

// CreatedAt sets the creation time
func (b *PostBuilder) CreatedAt(at time.Time) *PostBuilder {
	b.post.CreatedAt = at
	return b
}

// CheckedAt sets the last merge check time
func (b *PostBuilder) CheckedAt(at time.Time) *PostBuilder {
	b.post.MergeCheckedAt = &at
	return b
}

// MergedInto marks the post as merged into canonicalID
func (b *PostBuilder) MergedInto(canonicalID string) *PostBuilder {
	now := time.Now()
	b.post.CanonicalPostID = &canonicalID
	b.post.MergedAt = &now
	return b
}

// Deleted marks the post as soft-deleted once created
func (b *PostBuilder) Deleted() *PostBuilder {
	b.deleted = true
	return b
}

// Build returns the constructed post
func (b *PostBuilder) Build() database.Post {
	return b.post
}

// Create inserts the post, creating a board first if none was set
func (b *PostBuilder) Create(t *testing.T, db *gorm.DB) *database.Post {
	t.Helper()
	post := b.Build()
	if post.BoardID == "" {
		post.BoardID = NewBoardBuilder().Create(t, db).ID
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	if b.deleted {
		if err := db.Delete(&post).Error; err != nil {
			t.Fatalf("failed to delete post: %v", err)
		}
	}
	return &post
}

// PadEmbedding returns a vector of the stored dimension starting with values
func PadEmbedding(values ...float32) []float32 {
	out := make([]float32, database.EmbeddingDimensions)
	copy(out, values)
	return out
}

// ========================================
// Merge Suggestion Builder
// ========================================

// MergeSuggestionBuilder builds MergeSuggestion instances for testing
type MergeSuggestionBuilder struct {
	suggestion database.MergeSuggestion
}

// NewMergeSuggestionBuilder creates a pending suggestion between two posts
func NewMergeSuggestionBuilder(sourcePostID, targetPostID string) *MergeSuggestionBuilder {
	return &MergeSuggestionBuilder{
		suggestion: database.MergeSuggestion{
			SourcePostID:  sourcePostID,
			TargetPostID:  targetPostID,
			VectorScore:   0.82,
			FTSScore:      0.4,
			HybridScore:   0.94,
			LLMConfidence: 0.9,
			LLMReasoning:  "Both posts ask for the same feature.",
			LLMModel:      "google/gemini-2.5-flash",
			Status:        database.MergeSuggestionStatusPending,
		},
	}
}

// WithStatus sets the status
func (b *MergeSuggestionBuilder) WithStatus(status database.MergeSuggestionStatus) *MergeSuggestionBuilder {
	b.suggestion.Status = status
	return b
}

// WithScores sets the hybrid score and LLM confidence
func (b *MergeSuggestionBuilder) WithScores(hybrid, confidence float64) *MergeSuggestionBuilder {
	b.suggestion.HybridScore = hybrid
	b.suggestion.LLMConfidence = confidence
	return b
}

// CreatedAt sets the creation time
func (b *MergeSuggestionBuilder) CreatedAt(at time.Time) *MergeSuggestionBuilder {
	b.suggestion.CreatedAt = at
	return b
}

// Build returns the constructed suggestion
func (b *MergeSuggestionBuilder) Build() database.MergeSuggestion {
	return b.suggestion
}

// Create inserts the suggestion and returns it
func (b *MergeSuggestionBuilder) Create(t *testing.T, db *gorm.DB) *database.MergeSuggestion {
	t.Helper()
	s := b.Build()
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("failed to create merge suggestion: %v", err)
	}
	return &s
}
