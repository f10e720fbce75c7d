package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetermineDirection(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	tests := []struct {
		name       string
		a, b       PostRank
		wantTarget string
	}{
		{
			name:       "more votes wins",
			a:          PostRank{ID: "a", VoteCount: 5, CreatedAt: newer},
			b:          PostRank{ID: "b", VoteCount: 2, CommentCount: 9, CreatedAt: older},
			wantTarget: "a",
		},
		{
			name:       "comments break vote tie",
			a:          PostRank{ID: "a", VoteCount: 2, CommentCount: 1, CreatedAt: older},
			b:          PostRank{ID: "b", VoteCount: 2, CommentCount: 4, CreatedAt: newer},
			wantTarget: "b",
		},
		{
			name:       "older post wins full tie",
			a:          PostRank{ID: "a", CreatedAt: newer},
			b:          PostRank{ID: "b", CreatedAt: older},
			wantTarget: "b",
		},
		{
			name:       "smaller id wins identical rank",
			a:          PostRank{ID: "zz", CreatedAt: older},
			b:          PostRank{ID: "aa", CreatedAt: older},
			wantTarget: "aa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, target := DetermineDirection(tt.a, tt.b)
			assert.Equal(t, tt.wantTarget, target)
			assert.NotEqual(t, source, target)

			swappedSource, swappedTarget := DetermineDirection(tt.b, tt.a)
			assert.Equal(t, source, swappedSource, "direction must not depend on argument order")
			assert.Equal(t, target, swappedTarget)
		})
	}
}
