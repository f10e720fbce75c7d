package services

import (
	"time"

	"github.com/feedbackhq/feedback/internal/database"
)

// PostRank holds the fields that decide which of two posts survives a merge
type PostRank struct {
	ID           string
	VoteCount    int
	CommentCount int
	CreatedAt    time.Time
}

// RankOfPost extracts a PostRank from a post
func RankOfPost(p *database.Post) PostRank {
	return PostRank{ID: p.ID, VoteCount: p.VoteCount, CommentCount: p.CommentCount, CreatedAt: p.CreatedAt}
}

// RankOfCandidate extracts a PostRank from a search candidate
func RankOfCandidate(c MergeCandidate) PostRank {
	return PostRank{ID: c.PostID, VoteCount: c.VoteCount, CommentCount: c.CommentCount, CreatedAt: c.CreatedAt}
}

// DetermineDirection picks the post to keep (target) and the one merged away
// (source). More votes wins, then more comments, then the older post, then
// the smaller id. The result does not depend on argument order.
func DetermineDirection(a, b PostRank) (sourceID, targetID string) {
	if keepFirst(a, b) {
		return b.ID, a.ID
	}
	return a.ID, b.ID
}

// keepFirst reports whether a outranks b
func keepFirst(a, b PostRank) bool {
	if a.VoteCount != b.VoteCount {
		return a.VoteCount > b.VoteCount
	}
	if a.CommentCount != b.CommentCount {
		return a.CommentCount > b.CommentCount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
