package handlers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/jobs"
	"github.com/feedbackhq/feedback/internal/llm"
	"github.com/feedbackhq/feedback/internal/middleware"
	"github.com/feedbackhq/feedback/internal/services"
	"github.com/feedbackhq/feedback/internal/testhelpers"
)

const testJWTSecret = "handlers-test-secret"

// stubStore returns the same vector rows for every query
type stubStore struct {
	mu     sync.Mutex
	vector []database.VectorMatch
}

func (s *stubStore) VectorMatches(context.Context, database.CandidateQuery) ([]database.VectorMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vector, nil
}

func (s *stubStore) TextMatches(context.Context, database.CandidateQuery) ([]database.TextMatch, error) {
	return nil, nil
}

// stubProvider answers with content, or waits for release when it is set
type stubProvider struct {
	mu      sync.Mutex
	content string
	release chan struct{}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	content, release := p.content, p.release
	p.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &llm.ChatResponse{Content: content, Model: req.Model}, nil
}

type apiFixture struct {
	db          *gorm.DB
	store       *stubStore
	provider    *stubProvider
	stream      *SuggestionStream
	suggestions *services.MergeSuggestionService
	sweep       *jobs.MergeSweepJob
	jwt         *middleware.JWTAuthMiddleware
	router      http.Handler
	token       string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testhelpers.NewTestDB(t)

	settings, err := database.GetOrCreateMergeSettings(db)
	if err != nil {
		t.Fatalf("failed to create merge settings: %v", err)
	}
	settings.SweepDelayMs = 0
	if err := database.UpdateMergeSettings(db, settings); err != nil {
		t.Fatalf("failed to update merge settings: %v", err)
	}

	f := &apiFixture{
		db:       db,
		store:    &stubStore{},
		provider: &stubProvider{content: "[]"},
		stream:   NewSuggestionStream(),
	}
	t.Cleanup(f.stream.Close)

	source := llm.StaticSource{C: llm.NewClient(f.provider, llm.ClientConfig{
		Model: "test-model",
		Retry: llm.RetryConfig{MaxRetries: 0},
	})}
	f.suggestions = services.NewMergeSuggestionService(db, services.NewGormPostMerger(db), f.stream)
	checker := services.NewMergeCheckService(db,
		services.NewMergeSearchService(db, f.store),
		services.NewMergeAssessor(source),
		f.suggestions)
	f.sweep = jobs.NewMergeSweepJob(checker, f.suggestions, source, nil)

	f.jwt = middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:   true,
		Secret:    testJWTSecret,
		SkipPaths: PublicPaths,
	})
	f.token, err = f.jwt.GenerateToken("admin-7", time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	f.router = NewRouter(RouterConfig{
		API:  NewAPIHandler(db, f.suggestions, checker, f.sweep, f.stream),
		HTTP: NewHTTPHandler(db),
		JWT:  f.jwt,
	})
	return f
}

// do runs an authenticated request against the full router
func (f *apiFixture) do(t *testing.T, method, path string, body any) *testhelpers.HTTPTestContext {
	t.Helper()
	ctx := testhelpers.NewHTTPTestContext(t, method, path, nil).WithBearerToken(f.token)
	if body != nil {
		ctx = ctx.WithJSONBody(body)
	}
	return ctx.Execute(f.router)
}
