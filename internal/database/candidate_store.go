package database

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ErrSearchUnsupported is returned when the database has no vector/FTS support
var ErrSearchUnsupported = errors.New("vector and full-text search require PostgreSQL")

// CandidateQuery describes the post to find near-duplicates for
type CandidateQuery struct {
	PostID        string
	Title         string
	Embedding     pgvector.Vector
	MinSimilarity float64
	Limit         int
}

// VectorMatch is one row of the cosine-similarity query
type VectorMatch struct {
	PostID     string
	Similarity float64
}

// TextMatch is one row of the full-text query
type TextMatch struct {
	PostID string
	Rank   float64
}

// CandidateStore runs the two raw candidate queries. Both exclude the source
// post, soft-deleted posts and posts already merged into another.
type CandidateStore interface {
	VectorMatches(ctx context.Context, q CandidateQuery) ([]VectorMatch, error)
	TextMatches(ctx context.Context, q CandidateQuery) ([]TextMatch, error)
}

// PostgresCandidateStore uses pgvector's cosine distance operator and tsvector ranking
type PostgresCandidateStore struct {
	db *gorm.DB
}

// NewPostgresCandidateStore creates a candidate store backed by db
func NewPostgresCandidateStore(db *gorm.DB) *PostgresCandidateStore {
	return &PostgresCandidateStore{db: db}
}

const vectorMatchSQL = `
SELECT id AS post_id, 1 - (embedding <=> ?::vector) AS similarity
FROM posts
WHERE id <> ?
  AND deleted_at IS NULL
  AND canonical_post_id IS NULL
  AND embedding IS NOT NULL
  AND 1 - (embedding <=> ?::vector) >= ?
ORDER BY embedding <=> ?::vector
LIMIT ?`

const textMatchSQL = `
SELECT id AS post_id,
       ts_rank_cd(to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')),
                  plainto_tsquery('english', ?)) AS rank
FROM posts
WHERE id <> ?
  AND deleted_at IS NULL
  AND canonical_post_id IS NULL
  AND to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')) @@ plainto_tsquery('english', ?)
ORDER BY rank DESC
LIMIT ?`

// VectorMatches returns posts whose cosine similarity to q.Embedding is at least q.MinSimilarity
func (s *PostgresCandidateStore) VectorMatches(ctx context.Context, q CandidateQuery) ([]VectorMatch, error) {
	if !IsPostgres(s.db) {
		return nil, ErrSearchUnsupported
	}
	var rows []VectorMatch
	err := s.db.WithContext(ctx).
		Raw(vectorMatchSQL, q.Embedding, q.PostID, q.Embedding, q.MinSimilarity, q.Embedding, q.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// TextMatches returns posts whose title/content match q.Title, ranked by ts_rank_cd
func (s *PostgresCandidateStore) TextMatches(ctx context.Context, q CandidateQuery) ([]TextMatch, error) {
	if !IsPostgres(s.db) {
		return nil, ErrSearchUnsupported
	}
	if q.Title == "" {
		return nil, nil
	}
	var rows []TextMatch
	err := s.db.WithContext(ctx).
		Raw(textMatchSQL, q.Title, q.PostID, q.Title, q.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
