package testhelpers

import (
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
)

// ========================================
// Reload Helpers
// ========================================

// SuggestionStatus reloads a suggestion and returns its current status
func SuggestionStatus(t *testing.T, db *gorm.DB, id string) database.MergeSuggestionStatus {
	t.Helper()
	var s database.MergeSuggestion
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to load suggestion %s: %v", id, err)
	}
	return s.Status
}

// ReloadPost reads a post back including soft-deleted rows
func ReloadPost(t *testing.T, db *gorm.DB, id string) *database.Post {
	t.Helper()
	var p database.Post
	if err := db.Unscoped().First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to load post %s: %v", id, err)
	}
	return &p
}

// AssertTimeWithin fails the test when got and want differ by more than tolerance
func AssertTimeWithin(t *testing.T, got, want time.Time, tolerance time.Duration, field string) {
	t.Helper()
	if !withinTolerance(got, want, tolerance) {
		t.Errorf("%s = %s, want within %s of %s", field, got.Format(time.RFC3339Nano), tolerance, want.Format(time.RFC3339Nano))
	}
}

func withinTolerance(got, want time.Time, tolerance time.Duration) bool {
	diff := got.Sub(want)
	return diff <= tolerance && diff >= -tolerance
}

// ========================================
// Concurrency Helpers
// ========================================

// RunConcurrently starts n workers at once and fails the test if they have
// not all returned within timeout
func RunConcurrently(t *testing.T, timeout time.Duration, n int, fn func(worker int)) {
	t.Helper()

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		done  = make(chan struct{})
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			<-start
			fn(id)
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	close(start)
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("%d workers did not finish within %v", n, timeout)
	}
}

// ========================================
// Polling Helpers
// ========================================

// WaitFor polls cond every 10ms until it returns true or timeout elapses
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s: condition not met within %v", msg, timeout)
}
