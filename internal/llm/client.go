package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/feedbackhq/feedback/internal/logger"
)

// RetryConfig holds retry configuration for provider calls
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration // per attempt
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           60 * time.Second,
	}
}

// ClientConfig controls pacing around a provider
type ClientConfig struct {
	Model             string
	RequestsPerSecond float64 // 0 = unlimited
	MaxConcurrent     int     // 0 = unlimited
	Retry             RetryConfig
}

// Client paces, bounds and retries calls to a Provider
type Client struct {
	provider Provider
	model    string
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
	retry    RetryConfig
}

// NewClient wraps provider
func NewClient(provider Provider, cfg ClientConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Client{
		provider: provider,
		model:    cfg.Model,
		limiter:  rate.NewLimiter(limit, 1),
		retry:    cfg.Retry,
	}
	if cfg.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if c.retry.BackoffMultiplier <= 0 {
		c.retry.BackoffMultiplier = 2.0
	}
	return c
}

// Model returns the default model identifier
func (c *Client) Model() string {
	return c.model
}

// ProviderName returns the wrapped provider's name
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Complete sends req, retrying transient failures with exponential backoff.
// An empty req.Model uses the client's default model.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire llm slot: %w", err)
		}
		defer c.sem.Release(1)
	}

	log := logger.L().With(zap.String("provider", c.provider.Name()), zap.String("model", req.Model))
	backoff := c.retry.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm rate limiter: %w", err)
		}

		attemptCtx := ctx
		cancel := func() {}
		if c.retry.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.retry.Timeout)
		}
		resp, err := c.provider.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			if attempt > 0 {
				log.Info("llm call succeeded after retries", zap.Int("retries", attempt))
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm call canceled: %w", ctx.Err())
		}
		if !isRetriableError(err) {
			return nil, err
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		log.Warn("llm call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.retry.MaxRetries+1),
			zap.Duration("backoff", backoff),
			zap.Bool("rate_limited", IsRateLimited(err)),
			zap.Error(err))

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * c.retry.BackoffMultiplier)
			if c.retry.MaxBackoff > 0 && backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("llm call canceled during backoff: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("llm call failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

// isRetriableError determines if an error is transient
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrNotConfigured) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Retriable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "temporary failure")
}
