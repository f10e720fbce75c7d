package handlers

import (
	"net/http"

	"github.com/feedbackhq/feedback/internal/middleware"
)

// RouterConfig wires handlers and authentication into one http.Handler
type RouterConfig struct {
	API            *APIHandler
	HTTP           *HTTPHandler
	JWT            *middleware.JWTAuthMiddleware
	APIKeys        *middleware.AuthMiddleware
	AllowedOrigins []string
}

// PublicPaths never require authentication
var PublicPaths = []string{"/health"}

// NewRouter builds the mux and wraps it, outermost first, with request id,
// access log, CORS, API key and JWT authentication.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	if cfg.HTTP != nil {
		cfg.HTTP.SetupRoutes(mux)
	}
	if cfg.API != nil {
		cfg.API.SetupRoutes(mux)
	}

	var handler http.Handler = mux
	if cfg.JWT != nil {
		handler = cfg.JWT.Wrap(handler)
	}
	if cfg.APIKeys != nil {
		handler = cfg.APIKeys.Wrap(handler)
	}
	handler = middleware.NewCORSMiddleware(cfg.AllowedOrigins...).Wrap(handler)
	handler = middleware.AccessLog(handler)
	return middleware.RequestIDMiddleware(handler)
}
