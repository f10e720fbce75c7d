// Package llm wraps the chat-completion backends used to verify duplicate posts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured is returned when no enabled provider has credentials
	ErrNotConfigured = errors.New("llm provider not configured")
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("llm returned an empty response")
)

// ChatRequest is a single system+user exchange
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// JSONMode asks the backend to constrain output to a JSON object when supported
	JSONMode bool
}

// ChatResponse is the model's text answer
type ChatResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider is one chat-completion backend
type Provider interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// StatusError is a non-2xx response from a provider API
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retriable reports whether the request may succeed if repeated
func (e *StatusError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRateLimited reports whether err is an HTTP 429 from a provider
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}
