package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/llm"
	"github.com/feedbackhq/feedback/internal/lock"
	"github.com/feedbackhq/feedback/internal/services"
	"github.com/feedbackhq/feedback/internal/testhelpers"
)

// staticStore returns the same vector rows for every query
type staticStore struct {
	vector []database.VectorMatch
}

func (s *staticStore) VectorMatches(context.Context, database.CandidateQuery) ([]database.VectorMatch, error) {
	return s.vector, nil
}

func (s *staticStore) TextMatches(context.Context, database.CandidateQuery) ([]database.TextMatch, error) {
	return nil, nil
}

// cannedProvider answers every completion with content
type cannedProvider struct {
	content string
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: p.content, Model: req.Model}, nil
}

type sweepFixture struct {
	db       *gorm.DB
	store    *staticStore
	provider *cannedProvider
	job      *MergeSweepJob
}

func newSweepFixture(t *testing.T, source llm.Source, locker lock.Locker) *sweepFixture {
	t.Helper()
	db := testhelpers.NewTestDB(t)

	settings, err := database.GetOrCreateMergeSettings(db)
	if err != nil {
		t.Fatalf("failed to create settings: %v", err)
	}
	settings.SweepBatchSize = 2
	settings.SweepDelayMs = 0
	if err := database.UpdateMergeSettings(db, settings); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}

	f := &sweepFixture{db: db, store: &staticStore{}, provider: &cannedProvider{content: "[]"}}
	if source == nil {
		source = llm.StaticSource{C: llm.NewClient(f.provider, llm.ClientConfig{Model: "test-model"})}
	}

	suggestions := services.NewMergeSuggestionService(db, services.NewGormPostMerger(db), nil)
	checker := services.NewMergeCheckService(db,
		services.NewMergeSearchService(db, f.store),
		services.NewMergeAssessor(source),
		suggestions)
	f.job = NewMergeSweepJob(checker, suggestions, source, locker)
	return f
}

func countUnchecked(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	db.Model(&database.Post{}).Where("merge_checked_at IS NULL AND embedding IS NOT NULL").Count(&n)
	return n
}

func TestMergeSweepJob_ChecksEveryStalePostAndExpires(t *testing.T) {
	f := newSweepFixture(t, nil, nil)

	var posts []*database.Post
	for i := 0; i < 5; i++ {
		posts = append(posts, testhelpers.NewPostBuilder().WithEmbedding(1).Create(t, f.db))
	}
	testhelpers.NewPostBuilder().WithEmbedding(1).CheckedAt(time.Now().Add(-time.Hour)).Create(t, f.db)
	testhelpers.NewMergeSuggestionBuilder(posts[0].ID, posts[1].ID).
		CreatedAt(time.Now().Add(-31 * 24 * time.Hour)).Create(t, f.db)

	result, err := f.job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Checked != 5 {
		t.Errorf("expected 5 posts checked across batches, got %d", result.Checked)
	}
	if result.Failed != 0 || result.Suggested != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Expired != 1 {
		t.Errorf("expected 1 expired suggestion, got %d", result.Expired)
	}
	if n := countUnchecked(t, f.db); n != 0 {
		t.Errorf("expected every post to be stamped, %d left", n)
	}
	if f.job.LastResult() == nil {
		t.Error("expected last result to be recorded")
	}
	if f.job.IsRunning() {
		t.Error("expected job to be idle after Run")
	}
}

func TestMergeSweepJob_VisitsUnstampablePostsOnce(t *testing.T) {
	f := newSweepFixture(t, nil, nil)
	for i := 0; i < 5; i++ {
		testhelpers.NewPostBuilder().WithEmbedding(1).Create(t, f.db)
	}
	err := f.db.Callback().Update().Before("gorm:update").Register("test:reject_post_updates", func(tx *gorm.DB) {
		if tx.Statement.Table == "posts" {
			_ = tx.AddError(errors.New("posts table is read-only"))
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := f.job.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Checked != 5 {
		t.Errorf("expected each post checked once, got %d checks", result.Checked)
	}
	if n := countUnchecked(t, f.db); n != 5 {
		t.Errorf("expected stamps to be rejected, %d posts unchecked", n)
	}
}

func TestMergeSweepJob_NoDelayAfterLastPost(t *testing.T) {
	f := newSweepFixture(t, nil, nil)
	settings, err := database.GetOrCreateMergeSettings(f.db)
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	settings.SweepDelayMs = 400
	if err := database.UpdateMergeSettings(f.db, settings); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}
	testhelpers.NewPostBuilder().WithEmbedding(1).Create(t, f.db)
	testhelpers.NewPostBuilder().WithEmbedding(1).Create(t, f.db)

	started := time.Now()
	result, err := f.job.Run(context.Background())
	elapsed := time.Since(started)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Checked != 2 {
		t.Fatalf("expected 2 posts checked, got %d", result.Checked)
	}
	if elapsed < 400*time.Millisecond {
		t.Errorf("expected one delay between the two posts, sweep took %s", elapsed)
	}
	if elapsed >= 800*time.Millisecond {
		t.Errorf("expected no delay after the last post, sweep took %s", elapsed)
	}
}

func TestMergeSweepJob_CreatesSuggestions(t *testing.T) {
	f := newSweepFixture(t, nil, nil)
	older := testhelpers.NewPostBuilder().WithTitle("Dark mode").WithEmbedding(1).
		CreatedAt(time.Now().Add(-2 * time.Hour)).Create(t, f.db)
	newer := testhelpers.NewPostBuilder().WithTitle("Night theme").WithEmbedding(1).Create(t, f.db)

	f.store.vector = []database.VectorMatch{{PostID: newer.ID, Similarity: 0.9}}
	f.provider.content = fmt.Sprintf(`[{"candidatePostId": %q, "isDuplicate": true, "confidence": 0.95, "reasoning": "same"}]`, newer.ID)

	result, err := f.job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Checked != 2 || result.Suggested != 1 {
		t.Fatalf("expected 2 checked and 1 suggested, got %+v", result)
	}

	var s database.MergeSuggestion
	if err := f.db.First(&s).Error; err != nil {
		t.Fatalf("expected a suggestion: %v", err)
	}
	if s.TargetPostID != older.ID || s.SourcePostID != newer.ID {
		t.Errorf("expected newer post to merge into older, got %s -> %s", s.SourcePostID, s.TargetPostID)
	}
}

func TestMergeSweepJob_SkipsWithoutLLM(t *testing.T) {
	f := newSweepFixture(t, llm.StaticSource{}, nil)
	testhelpers.NewPostBuilder().WithEmbedding(1).Create(t, f.db)

	result, err := f.job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Skipped || result.Checked != 0 {
		t.Errorf("expected skipped sweep, got %+v", result)
	}
	if n := countUnchecked(t, f.db); n != 1 {
		t.Errorf("expected post to stay unchecked, got %d unchecked", n)
	}
}

func TestMergeSweepJob_NotReentrant(t *testing.T) {
	f := newSweepFixture(t, nil, nil)
	f.job.running.Store(true)

	if _, err := f.job.Run(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("expected ErrSweepInProgress from Run, got %v", err)
	}
	if err := f.job.RunAsync(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("expected ErrSweepInProgress from RunAsync, got %v", err)
	}

	f.job.running.Store(false)
	if err := f.job.RunAsync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.WaitFor(t, 2*time.Second, func() bool {
		return !f.job.IsRunning() && f.job.LastResult() != nil
	}, "async sweep should finish")
}

func TestMergeSweepJob_RespectsDistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.NewRedisLocker(client, "test:")

	f := newSweepFixture(t, nil, locker)
	testhelpers.NewPostBuilder().WithEmbedding(1).Create(t, f.db)

	held, err := locker.Acquire(context.Background(), sweepLockKey, time.Minute)
	if err != nil {
		t.Fatalf("failed to hold lock: %v", err)
	}

	if _, err := f.job.Run(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected ErrSweepInProgress while another owner holds the lock, got %v", err)
	}
	if n := countUnchecked(t, f.db); n != 1 {
		t.Errorf("expected no posts checked, %d unchecked", n)
	}

	if err := held.Release(context.Background()); err != nil {
		t.Fatalf("failed to release: %v", err)
	}
	result, err := f.job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Checked != 1 {
		t.Errorf("expected 1 checked, got %d", result.Checked)
	}
	if mr.Exists("test:" + sweepLockKey) {
		t.Error("expected lock to be released after sweep")
	}
}

func TestMergeSweepJob_StopsOnCancel(t *testing.T) {
	f := newSweepFixture(t, nil, nil)
	testhelpers.NewPostBuilder().WithEmbedding(1).Create(t, f.db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.job.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMergeSweepJob_StartStops(t *testing.T) {
	f := newSweepFixture(t, nil, nil)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		f.job.Start(stop)
		close(done)
	}()
	close(stop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after stop")
	}
}

func TestSleepCtx(t *testing.T) {
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Errorf("zero delay should not fail: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
