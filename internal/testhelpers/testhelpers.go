// Package testhelpers holds shared fixtures for package tests: a migrated
// in-memory database, entity builders and a fluent HTTP request runner.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feedbackhq/feedback/internal/database"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
// It is pinned to a single connection because every new connection to
// ":memory:" would see an empty database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	pool, err := db.DB()
	if err != nil {
		t.Fatalf("test database pool: %v", err)
	}
	pool.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = pool.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// HTTPTestContext builds one request, runs it through a handler and offers
// chained assertions on the recorded response.
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder

	method string
	target *url.URL
	header http.Header
	body   []byte
}

// NewHTTPTestContext starts a request for method and path. body may be nil.
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	target, err := url.Parse(path)
	if err != nil {
		t.Fatalf("parse request path %q: %v", path, err)
	}
	ctx := &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		method:   method,
		target:   target,
		header:   make(http.Header),
	}
	if body != nil {
		if ctx.body, err = io.ReadAll(body); err != nil {
			t.Fatalf("read request body: %v", err)
		}
	}
	return ctx
}

// WithHeader sets a request header
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.header.Set(key, value)
	return ctx
}

// WithBearerToken sets the Authorization header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// WithQuery adds a query parameter
func (ctx *HTTPTestContext) WithQuery(key, value string) *HTTPTestContext {
	q := ctx.target.Query()
	q.Add(key, value)
	ctx.target.RawQuery = q.Encode()
	return ctx
}

// WithJSONBody marshals v as the request body
func (ctx *HTTPTestContext) WithJSONBody(v any) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("marshal request body: %v", err)
	}
	ctx.body = body
	return ctx.WithHeader("Content-Type", "application/json")
}

// Execute serves the request with handler
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	var body io.Reader
	if ctx.body != nil {
		body = bytes.NewReader(ctx.body)
	}
	req := httptest.NewRequest(ctx.method, ctx.target.String(), body)
	for key, values := range ctx.header {
		req.Header[key] = values
	}
	handler.ServeHTTP(ctx.Recorder, req)
	return ctx
}

// AssertStatus fails the test when the response status differs
func (ctx *HTTPTestContext) AssertStatus(want int) *HTTPTestContext {
	ctx.T.Helper()
	if got := ctx.Recorder.Code; got != want {
		ctx.T.Errorf("%s %s: status %d, want %d; body: %s", ctx.method, ctx.target, got, want, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains fails the test when the body lacks substr
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	if body := ctx.Recorder.Body.String(); !strings.Contains(body, substr) {
		ctx.T.Errorf("%s %s: body does not contain %q: %s", ctx.method, ctx.target, substr, body)
	}
	return ctx
}

// AssertHeader fails the test when a response header differs
func (ctx *HTTPTestContext) AssertHeader(key, want string) *HTTPTestContext {
	ctx.T.Helper()
	if got := ctx.Recorder.Header().Get(key); got != want {
		ctx.T.Errorf("%s %s: header %s = %q, want %q", ctx.method, ctx.target, key, got, want)
	}
	return ctx
}

// AssertErrorCode decodes the error envelope and checks its code
func (ctx *HTTPTestContext) AssertErrorCode(want string) *HTTPTestContext {
	ctx.T.Helper()
	var resp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(ctx.Recorder.Body.Bytes(), &resp); err != nil {
		ctx.T.Errorf("%s %s: body is not an error envelope: %v", ctx.method, ctx.target, err)
		return ctx
	}
	if resp.Code != want {
		ctx.T.Errorf("%s %s: error code %q, want %q (%s)", ctx.method, ctx.target, resp.Code, want, resp.Error)
	}
	return ctx
}

// DecodeJSON unmarshals the response body into v
func (ctx *HTTPTestContext) DecodeJSON(v any) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.Unmarshal(ctx.Recorder.Body.Bytes(), v); err != nil {
		ctx.T.Fatalf("%s: decode response: %v", ctx, err)
	}
	return ctx
}

func (ctx *HTTPTestContext) String() string {
	return fmt.Sprintf("%s %s", ctx.method, ctx.target)
}
