package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// principalHandler writes the principal it sees so tests can assert on it
func principalHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(GetPrincipalFromContext(r.Context()))) // ignore: test ResponseRecorder never fails
	})
}

func serveAuth(m *AuthMiddleware, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	m.Wrap(principalHandler()).ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware_NoKeysConfigured(t *testing.T) {
	m := NewAuthMiddleware(&AuthConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/merge-sweep", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := serveAuth(m, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "" {
		t.Errorf("Expected no principal, got %q", rec.Body.String())
	}
}

func TestAuthMiddleware_NilConfig(t *testing.T) {
	m := NewAuthMiddleware(nil)
	rec := serveAuth(m, httptest.NewRequest(http.MethodGet, "/api/merge-suggestions", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_NoKeyPassesThrough(t *testing.T) {
	m := NewAuthMiddleware(&AuthConfig{APIKeys: []string{"ingest-key"}})

	req := httptest.NewRequest(http.MethodGet, "/api/merge-suggestions", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := serveAuth(m, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "" {
		t.Errorf("Bearer tokens are not API keys, got principal %q", rec.Body.String())
	}
}

func TestAuthMiddleware_ValidKey(t *testing.T) {
	m := NewAuthMiddleware(&AuthConfig{APIKeys: []string{"first", "ingest-key"}})

	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"X-API-Key header", "X-API-Key", "ingest-key"},
		{"ApiKey authorization", "Authorization", "ApiKey ingest-key"},
		{"surrounding whitespace", "X-API-Key", "  ingest-key "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/posts/x/merge-check", nil)
			req.Header.Set(tt.header, tt.value)
			rec := serveAuth(m, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rec.Code)
			}
			if rec.Body.String() != ServicePrincipal {
				t.Errorf("principal = %q, want %q", rec.Body.String(), ServicePrincipal)
			}
		})
	}
}

func TestAuthMiddleware_InvalidKey(t *testing.T) {
	m := NewAuthMiddleware(&AuthConfig{APIKeys: []string{"ingest-key"}})

	tests := []struct {
		name  string
		value string
	}{
		{"wrong key", "nope"},
		{"case differs", "INGEST-KEY"},
		{"prefix only", "ingest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/merge-sweep", nil)
			req.Header.Set("X-API-Key", tt.value)
			rec := serveAuth(m, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("Expected status 401, got %d", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate header")
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body["error"] != "Invalid API key" {
				t.Errorf("error = %q", body["error"])
			}
		})
	}
}

func TestAuthMiddleware_SkipPaths(t *testing.T) {
	m := NewAuthMiddleware(&AuthConfig{
		APIKeys:   []string{"ingest-key"},
		SkipPaths: []string{"/health", "/public/*"},
	})

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/public/deep/nested", http.StatusOK},
		{"/health/details", http.StatusUnauthorized},
		{"/api/merge-sweep", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("X-API-Key", "wrong")
		if rec := serveAuth(m, req); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestAuthMiddleware_EmptyKeyNeverMatches(t *testing.T) {
	m := NewAuthMiddleware(&AuthConfig{APIKeys: []string{""}})

	req := httptest.NewRequest(http.MethodPost, "/api/merge-sweep", nil)
	req.Header.Set("Authorization", "ApiKey ")
	rec := serveAuth(m, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "" {
		t.Errorf("empty key should pass through unauthenticated, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware_SetAPIKeysConcurrent(t *testing.T) {
	m := NewAuthMiddleware(&AuthConfig{APIKeys: []string{"a"}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.SetAPIKeys([]string{"a", "b"})
		}()
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/api/merge-suggestions", nil)
			req.Header.Set("X-API-Key", "a")
			if rec := serveAuth(m, req); rec.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	if m.KeyCount() != 2 {
		t.Errorf("KeyCount = %d, want 2", m.KeyCount())
	}
}
