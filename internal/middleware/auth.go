package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/logger"
)

// ServicePrincipal is the principal recorded for requests authenticated by API key
const ServicePrincipal = "service"

// AuthConfig holds API key configuration for service-to-service callers,
// such as the ingestion worker that requests a merge check after embedding a post.
type AuthConfig struct {
	// APIKeys is the list of accepted keys
	APIKeys []string

	// SkipPaths are paths that don't require authentication
	SkipPaths []string
}

// AuthMiddleware authenticates requests that present an API key. Requests
// without one are passed on unchanged so that a later middleware can
// authenticate them another way; a wrong key is rejected outright.
type AuthMiddleware struct {
	config *AuthConfig
	mu     sync.RWMutex
	skip   skipMatcher
}

// NewAuthMiddleware creates a new API key middleware
func NewAuthMiddleware(config *AuthConfig) *AuthMiddleware {
	if config == nil {
		config = &AuthConfig{}
	}
	return &AuthMiddleware{
		config: config,
		skip:   newSkipMatcher(config.SkipPaths),
	}
}

// Wrap wraps an http.Handler with API key authentication
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		apiKeys := m.config.APIKeys
		m.mu.RUnlock()

		if len(apiKeys) == 0 || m.skip.match(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !validateAPIKey(apiKey, apiKeys) {
			logger.L().Warn("Invalid API key attempt",
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("request_id", GetRequestID(r.Context())))
			unauthorized(w, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), ServicePrincipal)))
	})
}

// extractAPIKey reads "Authorization: ApiKey <key>" or the X-API-Key header.
// Bearer tokens are left for the JWT middleware.
func extractAPIKey(r *http.Request) string {
	if key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "ApiKey "); ok {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// validateAPIKey compares in constant time against every configured key
func validateAPIKey(provided string, validKeys []string) bool {
	ok := false
	for _, valid := range validKeys {
		if valid == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(valid)) == 1 {
			ok = true
		}
	}
	return ok
}

// SetAPIKeys replaces the accepted keys
func (m *AuthMiddleware) SetAPIKeys(keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.APIKeys = append([]string(nil), keys...)
}

// KeyCount returns how many keys are configured
func (m *AuthMiddleware) KeyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.config.APIKeys)
}
