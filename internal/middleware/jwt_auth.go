package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/api"
	"github.com/feedbackhq/feedback/internal/logger"
)

// UserClaims are the claims of an admin token. The principal is Username
// when present, otherwise the registered subject.
type UserClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the acting principal id carried by the claims
func (c *UserClaims) Principal() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

// JWTAuthConfig holds JWT authentication configuration
type JWTAuthConfig struct {
	// Enabled determines if JWT authentication is enforced
	Enabled bool

	// Secret is the HMAC key tokens are signed with
	Secret string

	// Issuer, when set, must match the token's iss claim
	Issuer string

	// AnonymousPrincipal is put in the context when authentication is disabled
	AnonymousPrincipal string

	// SkipPaths are paths that don't require authentication. A trailing "*" matches a prefix.
	SkipPaths []string
}

// JWTAuthMiddleware validates admin bearer tokens issued by the portal
type JWTAuthMiddleware struct {
	config *JWTAuthConfig
	mu     sync.RWMutex
	skip   skipMatcher
}

var errNoPrincipal = errors.New("token carries no subject")

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config *JWTAuthConfig) *JWTAuthMiddleware {
	if config.AnonymousPrincipal == "" {
		config.AnonymousPrincipal = "admin"
	}
	return &JWTAuthMiddleware{
		config: config,
		skip:   newSkipMatcher(config.SkipPaths),
	}
}

// GenerateToken signs a token for principal valid for ttl
func (m *JWTAuthMiddleware) GenerateToken(principal string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	secret := m.config.Secret
	issuer := m.config.Issuer
	m.mu.RUnlock()

	now := time.Now()
	claims := UserClaims{
		Username: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the claims
func (m *JWTAuthMiddleware) ValidateToken(tokenString string) (*UserClaims, error) {
	m.mu.RLock()
	secret := m.config.Secret
	issuer := m.config.Issuer
	m.mu.RUnlock()

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Principal() == "" {
		return nil, errNoPrincipal
	}
	return claims, nil
}

// Wrap wraps an http.Handler with JWT authentication. Requests already
// authenticated by an earlier middleware pass through untouched.
func (m *JWTAuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		enabled := m.config.Enabled
		anonymous := m.config.AnonymousPrincipal
		m.mu.RUnlock()

		if GetPrincipalFromContext(r.Context()) != "" || m.skip.match(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !enabled {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), anonymous)))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			unauthorized(w, "Missing authentication token")
			return
		}

		claims, err := m.ValidateToken(tokenString)
		if err != nil {
			logger.L().Info("Rejected admin token",
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err))
			unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
	})
}

// SetEnabled enables or disables authentication
func (m *JWTAuthMiddleware) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Enabled = enabled
}

// IsEnabled returns whether authentication is enabled
func (m *JWTAuthMiddleware) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Enabled
}

// extractToken reads the bearer token. Browsers cannot set headers on a
// websocket handshake, so upgrades may pass it as ?access_token= instead.
func extractToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="API"`)
	api.RespondError(w, http.StatusUnauthorized, message)
}

type principalContextKey struct{}

// WithPrincipal returns a context carrying the acting principal id
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetPrincipalFromContext returns the principal id from the request context
func GetPrincipalFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(principalContextKey{}).(string); ok {
		return p
	}
	return ""
}

// skipMatcher matches exact paths and "prefix*" patterns
type skipMatcher struct {
	exact    map[string]bool
	prefixes []string
}

func newSkipMatcher(paths []string) skipMatcher {
	m := skipMatcher{exact: make(map[string]bool)}
	for _, p := range paths {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			m.prefixes = append(m.prefixes, prefix)
			continue
		}
		m.exact[p] = true
	}
	return m
}

func (m skipMatcher) match(path string) bool {
	if m.exact[path] {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
