package handlers

import (
	"net/http"
	"testing"

	"github.com/feedbackhq/feedback/internal/testhelpers"
)

func TestHealth_WithDatabase(t *testing.T) {
	f := newAPIFixture(t)

	var body healthResponse
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(f.router).
		AssertStatus(http.StatusOK).
		AssertHeader("Content-Type", "application/json").
		DecodeJSON(&body)

	if body.Status != "ok" || body.Database != "ok" || body.Version != Version {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestHealth_WithoutDatabase(t *testing.T) {
	router := NewRouter(RouterConfig{HTTP: NewHTTPHandler(nil)})

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(router).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"status":"ok"`)
}

func TestHealth_DatabaseUnreachable(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	_ = sqlDB.Close()

	router := NewRouter(RouterConfig{HTTP: NewHTTPHandler(db)})
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(router).
		AssertStatus(http.StatusServiceUnavailable).
		AssertBodyContains(`"status":"degraded"`)
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	router := NewRouter(RouterConfig{HTTP: NewHTTPHandler(nil)})

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/health", nil).
		Execute(router).
		AssertStatus(http.StatusMethodNotAllowed)
}

func TestRouter_SetsRequestID(t *testing.T) {
	router := NewRouter(RouterConfig{HTTP: NewHTTPHandler(nil)})

	ctx := testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		WithHeader("X-Request-ID", "req-123").
		Execute(router)
	ctx.AssertHeader("X-Request-ID", "req-123")
}
