package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/logger"
)

// Source yields the client for the currently active provider, or ErrNotConfigured
type Source interface {
	Client(ctx context.Context) (*Client, error)
}

// StaticSource always returns the same client; a nil client means not configured
type StaticSource struct {
	C *Client
}

func (s StaticSource) Client(ctx context.Context) (*Client, error) {
	if s.C == nil {
		return nil, ErrNotConfigured
	}
	return s.C, nil
}

// NewProviderFromSettings builds the provider described by settings
func NewProviderFromSettings(ctx context.Context, settings *database.LLMSettings) (Provider, error) {
	if settings == nil || !settings.IsActive() {
		return nil, ErrNotConfigured
	}

	switch settings.Provider {
	case database.LLMProviderOpenRouter:
		return NewOpenAICompatibleProvider("openrouter", baseURLOr(settings.BaseURL, OpenRouterBaseURL), settings.APIKey), nil
	case database.LLMProviderOpenAI:
		return NewOpenAICompatibleProvider("openai", baseURLOr(settings.BaseURL, OpenAIBaseURL), settings.APIKey), nil
	case database.LLMProviderAnthropic:
		return NewAnthropicProvider(settings.APIKey, settings.BaseURL), nil
	case database.LLMProviderGoogle:
		p, err := NewGeminiProvider(ctx, settings.APIKey, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", settings.Provider)
	}
}

func baseURLOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// SettingsSource reads the active llm_settings row on every call and rebuilds
// the client when the row changes.
type SettingsSource struct {
	db  *gorm.DB
	cfg ClientConfig

	mu        sync.Mutex
	cached    *Client
	cachedKey string
}

// NewSettingsSource creates a source backed by llm_settings. cfg.Model is ignored;
// the model comes from the settings row.
func NewSettingsSource(db *gorm.DB, cfg ClientConfig) *SettingsSource {
	return &SettingsSource{db: db, cfg: cfg}
}

func (s *SettingsSource) Client(ctx context.Context) (*Client, error) {
	settings, err := database.GetActiveLLMSettings(s.db.WithContext(ctx))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load llm settings: %w", err)
	}
	if !settings.IsActive() {
		return nil, ErrNotConfigured
	}

	key := fmt.Sprintf("%s|%s|%s|%d", settings.Provider, settings.Model, settings.BaseURL, settings.UpdatedAt.UnixNano())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cachedKey == key {
		return s.cached, nil
	}

	provider, err := NewProviderFromSettings(ctx, settings)
	if err != nil {
		return nil, err
	}
	cfg := s.cfg
	cfg.Model = settings.Model
	s.cached = NewClient(provider, cfg)
	s.cachedKey = key

	logger.L().Info("llm client configured",
		zap.String("provider", string(settings.Provider)),
		zap.String("model", settings.Model))
	return s.cached, nil
}
