package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/llm"
	"github.com/feedbackhq/feedback/internal/lock"
	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/services"
)

const (
	sweepLockKey = "merge-sweep"
	sweepLockTTL = time.Hour
)

// ErrSweepInProgress is returned when a sweep is already running in this
// process or, with a locker configured, in another replica
var ErrSweepInProgress = errors.New("merge sweep already in progress")

// SweepResult summarizes one sweep
type SweepResult struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Checked    int           `json:"checked"`
	Suggested  int           `json:"suggested"`
	Failed     int           `json:"failed"`
	Expired    int64         `json:"expired"`
	Skipped    bool          `json:"skipped"`
	SkipReason string        `json:"skip_reason,omitempty"`
}

// MergeSweepJob rechecks stale posts for duplicates and expires old suggestions
type MergeSweepJob struct {
	checker     *services.MergeCheckService
	suggestions *services.MergeSuggestionService
	llm         llm.Source
	locker      lock.Locker

	running atomic.Bool
	mu      sync.Mutex
	last    *SweepResult
	now     func() time.Time
}

// NewMergeSweepJob creates a new sweep job. locker may be nil.
func NewMergeSweepJob(checker *services.MergeCheckService, suggestions *services.MergeSuggestionService, source llm.Source, locker lock.Locker) *MergeSweepJob {
	return &MergeSweepJob{
		checker:     checker,
		suggestions: suggestions,
		llm:         source,
		locker:      locker,
		now:         time.Now,
	}
}

// IsRunning reports whether a sweep is in progress in this process
func (j *MergeSweepJob) IsRunning() bool {
	return j.running.Load()
}

// LastResult returns the result of the most recent finished sweep, if any
func (j *MergeSweepJob) LastResult() *SweepResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last == nil {
		return nil
	}
	out := *j.last
	return &out
}

// Run executes one sweep and blocks until it finishes
func (j *MergeSweepJob) Run(ctx context.Context) (*SweepResult, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer j.running.Store(false)
	return j.sweep(ctx)
}

// RunAsync starts a sweep in the background. It returns ErrSweepInProgress
// if one is already running in this process.
func (j *MergeSweepJob) RunAsync(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrSweepInProgress
	}
	go func() {
		defer j.running.Store(false)
		if _, err := j.sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
			logger.L().Error("Merge sweep failed", zap.Error(err))
		}
	}()
	return nil
}

func (j *MergeSweepJob) sweep(ctx context.Context) (*SweepResult, error) {
	log := logger.L()
	result := &SweepResult{StartedAt: j.now()}

	if j.locker != nil {
		lease, err := j.locker.Acquire(ctx, sweepLockKey, sweepLockTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			log.Info("Merge sweep is running on another instance, skipping")
			return nil, ErrSweepInProgress
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release merge sweep lock", zap.Error(err))
			}
		}()
	}

	if _, err := j.llm.Client(ctx); err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			return nil, fmt.Errorf("failed to load llm client: %w", err)
		}
		log.Info("No LLM provider configured, skipping merge sweep")
		result.Skipped = true
		result.SkipReason = "llm not configured"
		j.finish(result)
		return result, nil
	}

	settings, err := j.checker.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load merge settings: %w", err)
	}

	staleBefore := result.StartedAt.Add(-settings.StaleAfter())
	batch := settings.SweepBatchSize
	if batch <= 0 {
		batch = database.NewDefaultMergeSettings().SweepBatchSize
	}

	after := ""
	for {
		ids, err := j.checker.FindStalePostIDs(ctx, staleBefore, batch, after)
		if err != nil {
			return result, fmt.Errorf("failed to find stale posts: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if result.Checked > 0 {
				if err := sleepCtx(ctx, settings.SweepDelay()); err != nil {
					return result, err
				}
			}

			check, err := j.checker.CheckPost(ctx, id)
			result.Checked++
			switch {
			case err != nil:
				result.Failed++
				log.Warn("Merge check failed", zap.String("post_id", id), zap.Error(err))
			case check.Outcome == services.CheckSuggested:
				result.Suggested++
			}
		}
	}

	expired, err := j.suggestions.ExpireStaleMergeSuggestions(ctx, settings.ExpireAfter())
	if err != nil {
		return result, err
	}
	result.Expired = expired

	j.finish(result)
	log.Info("Merge sweep completed",
		zap.Int("checked", result.Checked),
		zap.Int("suggested", result.Suggested),
		zap.Int("failed", result.Failed),
		zap.Int64("expired", result.Expired),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (j *MergeSweepJob) finish(result *SweepResult) {
	result.Duration = j.now().Sub(result.StartedAt)
	j.mu.Lock()
	j.last = result
	j.mu.Unlock()
}

// Start runs sweeps on a ticker until stop is closed. The interval and the
// enabled flag are re-read from merge settings after every tick.
func (j *MergeSweepJob) Start(stop <-chan struct{}) {
	log := logger.L()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	settings, err := j.checker.GetSettings(ctx)
	if err != nil {
		log.Warn("Failed to get merge settings, using default interval", zap.Error(err))
		settings = database.NewDefaultMergeSettings()
	}

	interval := settings.SweepInterval()
	if interval <= 0 {
		interval = database.NewDefaultMergeSettings().SweepInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if settings.SweepEnabled {
				if _, err := j.Run(ctx); err != nil {
					if errors.Is(err, ErrSweepInProgress) {
						log.Info("Merge sweep already running, skipping tick")
					} else {
						log.Error("Merge sweep job error", zap.Error(err))
					}
				}
			}

			newSettings, err := j.checker.GetSettings(ctx)
			if err != nil {
				continue
			}
			settings = newSettings
			if next := settings.SweepInterval(); next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
				log.Info("Merge sweep interval updated", zap.Duration("interval", interval))
			}

		case <-stop:
			log.Info("Merge sweep job stopped")
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
