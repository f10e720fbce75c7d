package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/notify"
)

// SuggestionSort orders suggestion listings
type SuggestionSort string

const (
	SortNewest     SuggestionSort = "newest"
	SortSimilarity SuggestionSort = "similarity"
	SortConfidence SuggestionSort = "confidence"
)

// ParseSuggestionSort maps a query value to a sort, defaulting to newest
func ParseSuggestionSort(v string) (SuggestionSort, bool) {
	switch SuggestionSort(v) {
	case "", SortNewest:
		return SortNewest, true
	case SortSimilarity:
		return SortSimilarity, true
	case SortConfidence:
		return SortConfidence, true
	default:
		return SortNewest, false
	}
}

func (s SuggestionSort) orderClause() string {
	switch s {
	case SortSimilarity:
		return "hybrid_score DESC, created_at DESC, id ASC"
	case SortConfidence:
		return "llm_confidence DESC, hybrid_score DESC, id ASC"
	default:
		return "created_at DESC, id ASC"
	}
}

// NewMergeSuggestion carries the fields of a suggestion to create
type NewMergeSuggestion struct {
	SourcePostID  string
	TargetPostID  string
	VectorScore   float64
	FTSScore      float64
	HybridScore   float64
	LLMConfidence float64
	LLMReasoning  string
	LLMModel      string
}

// PostSummary is the display form of a post in suggestion listings
type PostSummary struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	VoteCount    int            `json:"vote_count"`
	CommentCount int            `json:"comment_count"`
	CreatedAt    time.Time      `json:"created_at"`
	Board        *BoardSummary  `json:"board,omitempty"`
	Status       *StatusSummary `json:"status,omitempty"`
}

type BoardSummary struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type StatusSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// MergeSuggestionView is a suggestion joined with both posts
type MergeSuggestionView struct {
	database.MergeSuggestion
	SourcePost *PostSummary `json:"source_post,omitempty"`
	TargetPost *PostSummary `json:"target_post,omitempty"`
}

// ListOptions pages pending suggestions
type ListOptions struct {
	Sort    SuggestionSort
	Page    int
	PerPage int
}

// MergeSuggestionService persists suggestions and resolves them
type MergeSuggestionService struct {
	db       *gorm.DB
	merger   PostMerger
	notifier notify.Notifier
	now      func() time.Time
}

// NewMergeSuggestionService creates a new suggestion service. A nil notifier discards events.
func NewMergeSuggestionService(db *gorm.DB, merger PostMerger, notifier notify.Notifier) *MergeSuggestionService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &MergeSuggestionService{db: db, merger: merger, notifier: notifier, now: time.Now}
}

// CreateMergeSuggestion inserts a pending suggestion. If a pending suggestion
// for the same unordered pair exists the insert is ignored and created is false.
func (s *MergeSuggestionService) CreateMergeSuggestion(ctx context.Context, in NewMergeSuggestion) (*database.MergeSuggestion, bool, error) {
	if in.SourcePostID == in.TargetPostID {
		return nil, false, ErrSelfMerge
	}

	suggestion := &database.MergeSuggestion{
		SourcePostID:  in.SourcePostID,
		TargetPostID:  in.TargetPostID,
		VectorScore:   in.VectorScore,
		FTSScore:      in.FTSScore,
		HybridScore:   in.HybridScore,
		LLMConfidence: in.LLMConfidence,
		LLMReasoning:  in.LLMReasoning,
		LLMModel:      in.LLMModel,
		Status:        database.MergeSuggestionStatusPending,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(suggestion)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create merge suggestion: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, false, nil
	}

	logger.L().Info("created merge suggestion",
		zap.String("suggestion_id", suggestion.ID),
		zap.String("source_post_id", suggestion.SourcePostID),
		zap.String("target_post_id", suggestion.TargetPostID),
		zap.Float64("hybrid_score", suggestion.HybridScore),
		zap.Float64("llm_confidence", suggestion.LLMConfidence))

	event := notify.Event{Type: notify.EventSuggestionCreated, Suggestion: suggestion, At: s.now()}
	if views, err := s.buildViews(ctx, []database.MergeSuggestion{*suggestion}); err == nil && len(views) == 1 {
		if views[0].SourcePost != nil {
			event.SourceTitle = views[0].SourcePost.Title
		}
		if views[0].TargetPost != nil {
			event.TargetTitle = views[0].TargetPost.Title
		}
	}
	s.notifier.Notify(ctx, event)

	return suggestion, true, nil
}

// GetMergeSuggestion loads one suggestion in any status
func (s *MergeSuggestionService) GetMergeSuggestion(ctx context.Context, id string) (*MergeSuggestionView, error) {
	var suggestion database.MergeSuggestion
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&suggestion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSuggestionNotFound
	}
	if err != nil {
		return nil, err
	}
	views, err := s.buildViews(ctx, []database.MergeSuggestion{suggestion})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// AcceptMergeSuggestion merges the source post into the target, marks the
// suggestion accepted and dismisses every other pending suggestion that
// touches either post. The claim, the merge and the dismissals share one
// transaction, so a failed merge leaves the suggestion pending and a
// concurrent dismiss or expiry cannot resolve it halfway through.
func (s *MergeSuggestionService) AcceptMergeSuggestion(ctx context.Context, id, principalID string) (*database.MergeSuggestion, error) {
	now := s.now()
	var (
		suggestion database.MergeSuggestion
		dismissed  []database.MergeSuggestion
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND status = ?", id, database.MergeSuggestionStatusPending).
			First(&suggestion).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSuggestionNotFound
		}
		if err != nil {
			return err
		}

		res := tx.Model(&database.MergeSuggestion{}).
			Where("id = ? AND status = ?", suggestion.ID, database.MergeSuggestionStatusPending).
			Updates(map[string]interface{}{
				"status":                   database.MergeSuggestionStatusAccepted,
				"resolved_at":              now,
				"resolved_by_principal_id": principalID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSuggestionNotFound
		}

		if err := s.merger.MergePost(ctx, tx, suggestion.SourcePostID, suggestion.TargetPostID, principalID); err != nil {
			return fmt.Errorf("failed to merge posts: %w", err)
		}

		postIDs := []string{suggestion.SourcePostID, suggestion.TargetPostID}
		if err := tx.
			Where("status = ? AND id <> ?", database.MergeSuggestionStatusPending, suggestion.ID).
			Where("(source_post_id IN ? OR target_post_id IN ?)", postIDs, postIDs).
			Find(&dismissed).Error; err != nil {
			return err
		}
		if len(dismissed) == 0 {
			return nil
		}
		ids := make([]string, len(dismissed))
		for i, d := range dismissed {
			ids[i] = d.ID
		}
		return tx.Model(&database.MergeSuggestion{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":                   database.MergeSuggestionStatusDismissed,
				"resolved_at":              now,
				"resolved_by_principal_id": principalID,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	suggestion.Status = database.MergeSuggestionStatusAccepted
	suggestion.ResolvedAt = &now
	suggestion.ResolvedByPrincipalID = &principalID

	logger.L().Info("accepted merge suggestion",
		zap.String("suggestion_id", suggestion.ID),
		zap.String("principal_id", principalID),
		zap.Int("dismissed_related", len(dismissed)))

	s.notifier.Notify(ctx, notify.Event{Type: notify.EventSuggestionAccepted, Suggestion: &suggestion, At: now})
	for i := range dismissed {
		d := dismissed[i]
		d.Status = database.MergeSuggestionStatusDismissed
		d.ResolvedAt = &now
		d.ResolvedByPrincipalID = &principalID
		s.notifier.Notify(ctx, notify.Event{Type: notify.EventSuggestionDismissed, Suggestion: &d, At: now})
	}

	return &suggestion, nil
}

// DismissMergeSuggestion moves a pending suggestion to dismissed. Dismissing
// an already resolved suggestion is a no-op and returns false.
func (s *MergeSuggestionService) DismissMergeSuggestion(ctx context.Context, id, principalID string) (bool, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&database.MergeSuggestion{}).
		Where("id = ? AND status = ?", id, database.MergeSuggestionStatusPending).
		Updates(map[string]interface{}{
			"status":                   database.MergeSuggestionStatusDismissed,
			"resolved_at":              now,
			"resolved_by_principal_id": principalID,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to dismiss merge suggestion: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&database.MergeSuggestion{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrSuggestionNotFound
		}
		return false, nil
	}

	var suggestion database.MergeSuggestion
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&suggestion).Error; err == nil {
		s.notifier.Notify(ctx, notify.Event{Type: notify.EventSuggestionDismissed, Suggestion: &suggestion, At: now})
	}
	return true, nil
}

// ExpireStaleMergeSuggestions expires pending suggestions created more than
// olderThan ago and returns how many were expired.
func (s *MergeSuggestionService) ExpireStaleMergeSuggestions(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&database.MergeSuggestion{}).
		Where("status = ? AND created_at < ?", database.MergeSuggestionStatusPending, now.Add(-olderThan)).
		Updates(map[string]interface{}{
			"status":      database.MergeSuggestionStatusExpired,
			"resolved_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire merge suggestions: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logger.L().Info("expired stale merge suggestions", zap.Int64("count", res.RowsAffected))
		s.notifier.Notify(ctx, notify.Event{Type: notify.EventSuggestionExpired, Count: res.RowsAffected, At: now})
	}
	return res.RowsAffected, nil
}

// ListPendingMergeSuggestions returns one page of pending suggestions and the total count
func (s *MergeSuggestionService) ListPendingMergeSuggestions(ctx context.Context, opts ListOptions) ([]MergeSuggestionView, int64, error) {
	if opts.PerPage <= 0 {
		opts.PerPage = 20
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}

	base := s.db.WithContext(ctx).Model(&database.MergeSuggestion{}).
		Where("status = ?", database.MergeSuggestionStatusPending)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var suggestions []database.MergeSuggestion
	if err := base.Session(&gorm.Session{}).
		Order(opts.Sort.orderClause()).
		Offset((opts.Page - 1) * opts.PerPage).
		Limit(opts.PerPage).
		Find(&suggestions).Error; err != nil {
		return nil, 0, err
	}

	views, err := s.buildViews(ctx, suggestions)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// ListMergeSuggestionsForPost returns pending suggestions in which postID is source or target
func (s *MergeSuggestionService) ListMergeSuggestionsForPost(ctx context.Context, postID string) ([]MergeSuggestionView, error) {
	var suggestions []database.MergeSuggestion
	if err := s.db.WithContext(ctx).
		Where("status = ?", database.MergeSuggestionStatusPending).
		Where("(source_post_id = ? OR target_post_id = ?)", postID, postID).
		Order(SortConfidence.orderClause()).
		Find(&suggestions).Error; err != nil {
		return nil, err
	}
	return s.buildViews(ctx, suggestions)
}

// buildViews loads every referenced post with its board and status in one query
func (s *MergeSuggestionService) buildViews(ctx context.Context, suggestions []database.MergeSuggestion) ([]MergeSuggestionView, error) {
	views := make([]MergeSuggestionView, len(suggestions))
	if len(suggestions) == 0 {
		return views, nil
	}

	idSet := make(map[string]struct{}, len(suggestions)*2)
	for _, sg := range suggestions {
		idSet[sg.SourcePostID] = struct{}{}
		idSet[sg.TargetPostID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	var posts []database.Post
	if err := s.db.WithContext(ctx).Unscoped().
		Preload("Board").
		Preload("Status").
		Where("id IN ?", ids).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to load suggestion posts: %w", err)
	}
	byID := make(map[string]*PostSummary, len(posts))
	for i := range posts {
		byID[posts[i].ID] = summarizePost(&posts[i])
	}

	for i, sg := range suggestions {
		views[i] = MergeSuggestionView{
			MergeSuggestion: sg,
			SourcePost:      byID[sg.SourcePostID],
			TargetPost:      byID[sg.TargetPostID],
		}
	}
	return views, nil
}

func summarizePost(p *database.Post) *PostSummary {
	out := &PostSummary{
		ID:           p.ID,
		Title:        p.Title,
		Content:      p.Content,
		VoteCount:    p.VoteCount,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
	}
	if p.Board != nil {
		out.Board = &BoardSummary{ID: p.Board.ID, Slug: p.Board.Slug, Name: p.Board.Name}
	}
	if p.Status != nil {
		out.Status = &StatusSummary{ID: p.Status.ID, Name: p.Status.Name, Color: p.Status.Color}
	}
	return out
}
