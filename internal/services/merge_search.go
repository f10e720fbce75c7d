package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
)

// SearchOptions tunes candidate search
type SearchOptions struct {
	Limit           int
	VectorThreshold float64
	HybridThreshold float64
	FTSWeight       float64
}

// DefaultSearchOptions returns the standard thresholds
func DefaultSearchOptions() SearchOptions {
	return SearchOptionsFromSettings(database.NewDefaultMergeSettings())
}

// SearchOptionsFromSettings reads search thresholds from merge settings
func SearchOptionsFromSettings(s *database.MergeSettings) SearchOptions {
	return SearchOptions{
		Limit:           s.CandidateLimit,
		VectorThreshold: s.VectorThreshold,
		HybridThreshold: s.HybridThreshold,
		FTSWeight:       s.FTSWeight,
	}
}

// SearchInput identifies the source post. Title and Embedding may be
// pre-fetched by the caller to skip the lookup.
type SearchInput struct {
	PostID    string
	Title     string
	Embedding *pgvector.Vector
}

// MergeCandidate is a possible duplicate with its scores
type MergeCandidate struct {
	PostID       string
	Title        string
	Content      string
	VoteCount    int
	CommentCount int
	CreatedAt    time.Time
	VectorScore  float64
	FTSScore     float64
	HybridScore  float64
}

// MergeSearchService finds near-duplicate posts with hybrid vector + text search
type MergeSearchService struct {
	db    *gorm.DB
	store database.CandidateStore
}

// NewMergeSearchService creates a new search service
func NewMergeSearchService(db *gorm.DB, store database.CandidateStore) *MergeSearchService {
	return &MergeSearchService{db: db, store: store}
}

// FindCandidates returns up to opts.Limit candidates ordered by hybrid score.
// A merged, deleted or embedding-less source yields no candidates.
func (s *MergeSearchService) FindCandidates(ctx context.Context, in SearchInput, opts SearchOptions) ([]MergeCandidate, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchOptions().Limit
	}

	if in.Title == "" || in.Embedding == nil {
		var post database.Post
		err := s.db.WithContext(ctx).Where("id = ?", in.PostID).First(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load post %s: %w", in.PostID, err)
		}
		if post.IsMerged() || !post.HasEmbedding() {
			return nil, nil
		}
		in.Title = post.Title
		in.Embedding = post.Embedding
	}

	q := database.CandidateQuery{
		PostID:        in.PostID,
		Title:         in.Title,
		Embedding:     *in.Embedding,
		MinSimilarity: opts.VectorThreshold,
		Limit:         opts.Limit * 2,
	}

	var (
		vectorRows []database.VectorMatch
		textRows   []database.TextMatch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.store.VectorMatches(gctx, q)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.TextMatches(gctx, q)
		if err != nil {
			return fmt.Errorf("text search: %w", err)
		}
		textRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scored := fuseScores(in.PostID, vectorRows, textRows, opts)
	if len(scored) == 0 {
		return nil, nil
	}
	return s.attachPosts(ctx, scored)
}

// attachPosts loads post fields for scored candidates, dropping any that were
// merged or deleted since the search ran.
func (s *MergeSearchService) attachPosts(ctx context.Context, scored []MergeCandidate) ([]MergeCandidate, error) {
	ids := make([]string, len(scored))
	for i, c := range scored {
		ids[i] = c.PostID
	}

	var posts []database.Post
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND canonical_post_id IS NULL", ids).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to load candidate posts: %w", err)
	}
	byID := make(map[string]database.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	out := make([]MergeCandidate, 0, len(scored))
	for _, c := range scored {
		p, ok := byID[c.PostID]
		if !ok {
			continue
		}
		c.Title = p.Title
		c.Content = p.Content
		c.VoteCount = p.VoteCount
		c.CommentCount = p.CommentCount
		c.CreatedAt = p.CreatedAt
		out = append(out, c)
	}
	return out, nil
}

// fuseScores merges vector and text hits by post id. The FTS rank is scaled
// x2 and capped at 1; hybrid = min(vector + weight*fts, 1) when both signals
// exist, otherwise the vector score alone.
func fuseScores(sourceID string, vector []database.VectorMatch, text []database.TextMatch, opts SearchOptions) []MergeCandidate {
	type signals struct {
		vector, fts       float64
		hasVector, hasFTS bool
	}
	merged := make(map[string]*signals)
	get := func(id string) *signals {
		s, ok := merged[id]
		if !ok {
			s = &signals{}
			merged[id] = s
		}
		return s
	}

	for _, v := range vector {
		s := get(v.PostID)
		s.vector = clamp01(v.Similarity)
		s.hasVector = true
	}
	for _, t := range text {
		s := get(t.PostID)
		s.fts = normalizeRank(t.Rank)
		s.hasFTS = true
	}

	out := make([]MergeCandidate, 0, len(merged))
	for id, s := range merged {
		if id == sourceID {
			continue
		}
		hybrid := s.vector
		if s.hasVector && s.hasFTS {
			hybrid = clamp01(s.vector + opts.FTSWeight*s.fts)
		}
		if hybrid < opts.HybridThreshold {
			continue
		}
		out = append(out, MergeCandidate{
			PostID:      id,
			VectorScore: s.vector,
			FTSScore:    s.fts,
			HybridScore: hybrid,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		return out[i].PostID < out[j].PostID
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func normalizeRank(rank float64) float64 {
	return clamp01(rank * 2)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
