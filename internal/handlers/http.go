package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/api"
	"github.com/feedbackhq/feedback/internal/logger"
)

// Version is reported by the health endpoint; set at build time with -ldflags.
var Version = "dev"

// HTTPHandler handles unauthenticated endpoints
type HTTPHandler struct {
	db *gorm.DB
}

// NewHTTPHandler creates a new HTTP handler. db may be nil, in which case
// health does not touch the database.
func NewHTTPHandler(db *gorm.DB) *HTTPHandler {
	return &HTTPHandler{db: db}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

// handleHealth reports liveness and database reachability
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: Version}
	if h.db == nil {
		api.RespondJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp.Database = "ok"
	status := http.StatusOK
	if err := ping(ctx, h.db); err != nil {
		logger.L().Warn("Health check database ping failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	api.RespondJSON(w, status, resp)
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
