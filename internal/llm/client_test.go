package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns queued errors before succeeding
type scriptedProvider struct {
	mu       sync.Mutex
	errs     []error
	calls    int
	requests []ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.requests = append(p.requests, req)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return &ChatResponse{Content: "ok", Model: req.Model}, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		Timeout:           time.Second,
	}
}

func TestClient_UsesDefaultModel(t *testing.T) {
	p := &scriptedProvider{}
	c := NewClient(p, ClientConfig{Model: "default-model", Retry: fastRetry()})

	resp, err := c.Complete(context.Background(), ChatRequest{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "default-model", resp.Model)
	assert.Equal(t, "default-model", c.Model())
	assert.Equal(t, "scripted", c.ProviderName())
}

func TestClient_RetriesRateLimit(t *testing.T) {
	p := &scriptedProvider{errs: []error{
		&StatusError{Provider: "scripted", StatusCode: http.StatusTooManyRequests},
		&StatusError{Provider: "scripted", StatusCode: http.StatusBadGateway},
	}}
	c := NewClient(p, ClientConfig{Model: "m", Retry: fastRetry()})

	resp, err := c.Complete(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, p.calls)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	p := &scriptedProvider{errs: []error{
		&StatusError{Provider: "scripted", StatusCode: http.StatusUnauthorized},
	}}
	c := NewClient(p, ClientConfig{Model: "m", Retry: fastRetry()})

	_, err := c.Complete(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	unavailable := &StatusError{Provider: "scripted", StatusCode: http.StatusServiceUnavailable}
	p := &scriptedProvider{errs: []error{unavailable, unavailable, unavailable, unavailable}}
	c := NewClient(p, ClientConfig{Model: "m", Retry: fastRetry()})

	_, err := c.Complete(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, p.calls)

	var se *StatusError
	assert.True(t, errors.As(err, &se))
}

func TestClient_StopsOnCanceledContext(t *testing.T) {
	p := &scriptedProvider{}
	c := NewClient(p, ClientConfig{Model: "m", MaxConcurrent: 1, Retry: fastRetry()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 0, p.calls)
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{StatusCode: 429}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"400", &StatusError{StatusCode: 400}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"empty response", ErrEmptyResponse, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"unknown", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetriableError(tt.err))
		})
	}
}

func TestStaticSource(t *testing.T) {
	_, err := StaticSource{}.Client(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	c := NewClient(&scriptedProvider{}, ClientConfig{Model: "m"})
	got, err := StaticSource{C: c}.Client(context.Background())
	require.NoError(t, err)
	assert.Same(t, c, got)
}
