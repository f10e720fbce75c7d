package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/logger"
)

// PostMerger folds one post into another. tx, when non-nil, is the caller's
// transaction and the merge commits or rolls back with it.
type PostMerger interface {
	MergePost(ctx context.Context, tx *gorm.DB, sourcePostID, targetPostID, principalID string) error
}

// GormPostMerger moves comments and votes from source to target and marks the
// source as merged, all in one transaction.
type GormPostMerger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormPostMerger creates a post merger
func NewGormPostMerger(db *gorm.DB) *GormPostMerger {
	return &GormPostMerger{db: db, now: time.Now}
}

func (m *GormPostMerger) MergePost(ctx context.Context, tx *gorm.DB, sourcePostID, targetPostID, principalID string) error {
	if sourcePostID == targetPostID {
		return ErrSelfMerge
	}
	db := m.db
	if tx != nil {
		db = tx
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := loadMergeablePost(tx, sourcePostID)
		if err != nil {
			return err
		}
		target, err := loadMergeablePost(tx, targetPostID)
		if err != nil {
			return err
		}

		if err := tx.Model(&database.Comment{}).
			Where("post_id = ?", source.ID).
			Update("post_id", target.ID).Error; err != nil {
			return fmt.Errorf("failed to move comments: %w", err)
		}

		// A principal who voted on both keeps only the target vote
		if err := tx.Where("post_id = ? AND principal_id IN (?)", source.ID,
			tx.Model(&database.Vote{}).Select("principal_id").Where("post_id = ?", target.ID),
		).Delete(&database.Vote{}).Error; err != nil {
			return fmt.Errorf("failed to drop duplicate votes: %w", err)
		}
		if err := tx.Model(&database.Vote{}).
			Where("post_id = ?", source.ID).
			Update("post_id", target.ID).Error; err != nil {
			return fmt.Errorf("failed to move votes: %w", err)
		}

		var votes, comments int64
		if err := tx.Model(&database.Vote{}).Where("post_id = ?", target.ID).Count(&votes).Error; err != nil {
			return err
		}
		if err := tx.Model(&database.Comment{}).Where("post_id = ?", target.ID).Count(&comments).Error; err != nil {
			return err
		}
		if err := tx.Model(target).Updates(map[string]interface{}{
			"vote_count":    votes,
			"comment_count": comments,
		}).Error; err != nil {
			return fmt.Errorf("failed to recount target: %w", err)
		}

		// Posts previously merged into the source now point at the target
		if err := tx.Model(&database.Post{}).
			Where("canonical_post_id = ?", source.ID).
			Update("canonical_post_id", target.ID).Error; err != nil {
			return fmt.Errorf("failed to repoint merged posts: %w", err)
		}

		now := m.now()
		return tx.Model(source).Updates(map[string]interface{}{
			"canonical_post_id":      target.ID,
			"merged_at":              now,
			"merged_by_principal_id": principalID,
			"vote_count":             0,
			"comment_count":          0,
		}).Error
	})
	if err != nil {
		return err
	}

	logger.L().Info("merged post",
		zap.String("source_post_id", sourcePostID),
		zap.String("target_post_id", targetPostID),
		zap.String("principal_id", principalID))
	return nil
}

func loadMergeablePost(tx *gorm.DB, id string) (*database.Post, error) {
	var post database.Post
	err := tx.Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if post.IsMerged() {
		return nil, fmt.Errorf("%w: %s", ErrPostAlreadyMerged, id)
	}
	return &post, nil
}
