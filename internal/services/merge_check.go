package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/logger"
)

// CheckOutcome describes how a per-post check ended
type CheckOutcome string

const (
	CheckSkippedDeleted     CheckOutcome = "skipped_deleted"
	CheckSkippedMerged      CheckOutcome = "skipped_merged"
	CheckSkippedNoEmbedding CheckOutcome = "skipped_no_embedding"
	CheckNoCandidates       CheckOutcome = "no_candidates"
	CheckNoDuplicates       CheckOutcome = "no_duplicates"
	CheckSuggested          CheckOutcome = "suggested"
	CheckAlreadySuggested   CheckOutcome = "already_suggested"
)

// CheckResult is the outcome of checking one post for duplicates
type CheckResult struct {
	PostID     string                    `json:"post_id"`
	Outcome    CheckOutcome              `json:"outcome"`
	Candidates int                       `json:"candidates"`
	Confirmed  int                       `json:"confirmed"`
	Suggestion *database.MergeSuggestion `json:"suggestion,omitempty"`
}

// MergeCheckService runs search, assessment and persistence for a single post
type MergeCheckService struct {
	db          *gorm.DB
	search      *MergeSearchService
	assessor    *MergeAssessor
	suggestions *MergeSuggestionService
	now         func() time.Time
}

// NewMergeCheckService creates a new check service
func NewMergeCheckService(db *gorm.DB, search *MergeSearchService, assessor *MergeAssessor, suggestions *MergeSuggestionService) *MergeCheckService {
	return &MergeCheckService{
		db:          db,
		search:      search,
		assessor:    assessor,
		suggestions: suggestions,
		now:         time.Now,
	}
}

// GetSettings returns merge settings (creates defaults if not exists)
func (s *MergeCheckService) GetSettings(ctx context.Context) (*database.MergeSettings, error) {
	return database.GetOrCreateMergeSettings(s.db.WithContext(ctx))
}

// CheckPost looks for a duplicate of postID and records at most one
// suggestion. Deleted, merged and embedding-less posts are skipped without
// being stamped; every other path stamps merge_checked_at.
func (s *MergeCheckService) CheckPost(ctx context.Context, postID string) (*CheckResult, error) {
	result := &CheckResult{PostID: postID}

	var post database.Post
	err := s.db.WithContext(ctx).Unscoped().Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", postID, err)
	}

	switch {
	case post.DeletedAt.Valid:
		result.Outcome = CheckSkippedDeleted
		return result, nil
	case post.IsMerged():
		result.Outcome = CheckSkippedMerged
		return result, nil
	case !post.HasEmbedding():
		result.Outcome = CheckSkippedNoEmbedding
		return result, nil
	}

	defer s.stamp(ctx, postID)

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load merge settings: %w", err)
	}

	candidates, err := s.search.FindCandidates(ctx, SearchInput{
		PostID:    post.ID,
		Title:     post.Title,
		Embedding: post.Embedding,
	}, SearchOptionsFromSettings(settings))
	if err != nil {
		return nil, fmt.Errorf("candidate search failed: %w", err)
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		result.Outcome = CheckNoCandidates
		return result, nil
	}

	byID := make(map[string]MergeCandidate, len(candidates))
	prompt := make([]AssessmentPost, 0, len(candidates))
	for _, c := range candidates {
		byID[c.PostID] = c
		prompt = append(prompt, AssessmentPost{ID: c.PostID, Title: c.Title, Content: c.Content})
	}

	assessment := s.assessor.Assess(ctx,
		AssessmentPost{ID: post.ID, Title: post.Title, Content: post.Content},
		prompt, settings.ConfidenceThreshold)

	best, ok := pickBestVerdict(assessment.Verdicts, byID)
	if !ok {
		result.Outcome = CheckNoDuplicates
		return result, nil
	}
	result.Confirmed = countKnown(assessment.Verdicts, byID)

	candidate := byID[best.CandidatePostID]
	sourceID, targetID := DetermineDirection(RankOfPost(&post), RankOfCandidate(candidate))

	suggestion, created, err := s.suggestions.CreateMergeSuggestion(ctx, NewMergeSuggestion{
		SourcePostID:  sourceID,
		TargetPostID:  targetID,
		VectorScore:   candidate.VectorScore,
		FTSScore:      candidate.FTSScore,
		HybridScore:   candidate.HybridScore,
		LLMConfidence: best.Confidence,
		LLMReasoning:  best.Reasoning,
		LLMModel:      assessment.Model,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		result.Outcome = CheckAlreadySuggested
		return result, nil
	}

	result.Outcome = CheckSuggested
	result.Suggestion = suggestion
	return result, nil
}

// FindStalePostIDs returns up to limit ids of posts due for a check: not
// deleted or merged, with an embedding, and never checked or checked before
// staleBefore. Ids are ordered ascending and start after afterID, so a caller
// pages by passing the last id of the previous page.
func (s *MergeCheckService) FindStalePostIDs(ctx context.Context, staleBefore time.Time, limit int, afterID string) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&database.Post{}).
		Where("canonical_post_id IS NULL AND embedding IS NOT NULL").
		Where("(merge_checked_at IS NULL OR merge_checked_at < ?)", staleBefore)
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}

	var ids []string
	if err := q.Order("id ASC").Limit(limit).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MergeCheckService) stamp(ctx context.Context, postID string) {
	err := s.db.WithContext(context.WithoutCancel(ctx)).Model(&database.Post{}).
		Where("id = ?", postID).
		UpdateColumn("merge_checked_at", s.now()).Error
	if err != nil {
		logger.L().Error("failed to stamp merge_checked_at", zap.String("post_id", postID), zap.Error(err))
	}
}

// pickBestVerdict returns the verdict with the highest confidence, breaking
// ties by hybrid score. Verdicts naming unknown posts are ignored.
func pickBestVerdict(verdicts []AssessmentVerdict, candidates map[string]MergeCandidate) (AssessmentVerdict, bool) {
	known := make([]AssessmentVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		if _, ok := candidates[v.CandidatePostID]; ok {
			known = append(known, v)
		}
	}
	if len(known) == 0 {
		return AssessmentVerdict{}, false
	}
	sort.SliceStable(known, func(i, j int) bool {
		if known[i].Confidence != known[j].Confidence {
			return known[i].Confidence > known[j].Confidence
		}
		return candidates[known[i].CandidatePostID].HybridScore > candidates[known[j].CandidatePostID].HybridScore
	})
	return known[0], true
}

func countKnown(verdicts []AssessmentVerdict, candidates map[string]MergeCandidate) int {
	n := 0
	for _, v := range verdicts {
		if _, ok := candidates[v.CandidatePostID]; ok {
			n++
		}
	}
	return n
}
