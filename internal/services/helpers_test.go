package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/llm"
	"github.com/feedbackhq/feedback/internal/testhelpers"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testhelpers.NewTestDB(t)
}

// fakeStore returns canned search rows and records the queries it saw
type fakeStore struct {
	mu      sync.Mutex
	vector  []database.VectorMatch
	text    []database.TextMatch
	err     error
	queries []database.CandidateQuery
}

func (s *fakeStore) VectorMatches(ctx context.Context, q database.CandidateQuery) ([]database.VectorMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *fakeStore) TextMatches(ctx context.Context, q database.CandidateQuery) ([]database.TextMatch, error) {
	return s.text, nil
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// fakeProvider answers every completion with the same content
type fakeProvider struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []llm.ChatRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{Content: p.content, Model: req.Model}, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func newFakeSource(p *fakeProvider) llm.Source {
	return llm.StaticSource{C: llm.NewClient(p, llm.ClientConfig{
		Model: "test-model",
		Retry: llm.RetryConfig{MaxRetries: 0, Timeout: time.Second},
	})}
}
