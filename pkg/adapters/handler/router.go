package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService, sweeper ports.Sweeper, logger zerolog.Logger) http.Handler {
	// Initialize Handlers
	h := NewHTTPHandler(service, sweeper, cfg.BaseURL, logger)
	authHandler := NewAuthHandler(cfg, logger)

	// Initialize Middleware
	mw := NewMiddleware(cfg, logger)
	protected := func(fn http.HandlerFunc) http.Handler { return mw.AuthMiddleware(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return mw.AuthMiddleware(mw.RequireSuperuser(fn)) }

	// Setup Router
	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /open/{short_code}", h.Redirect)
	mux.HandleFunc("POST /api/v1/public/links", h.CreatePublic)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Protected Routes
	mux.Handle("POST /api/v1/links", protected(h.Create))
	mux.Handle("GET /api/v1/links", protected(h.List))
	mux.Handle("GET /api/v1/links/search", protected(h.Search))
	mux.Handle("GET /api/v1/links/expired", protected(h.Expired))
	mux.Handle("GET /api/v1/links/{short_code}/stats", protected(h.Stats))
	mux.Handle("PUT /api/v1/links/{short_code}", protected(h.Update))
	mux.Handle("DELETE /api/v1/links/{short_code}", protected(h.Delete))
	mux.Handle("GET /api/v1/projects/{project}/links", protected(h.ProjectLinks))

	// Admin Routes
	mux.Handle("POST /api/v1/admin/sweep", admin(h.Sweep))

	return mw.AccessLog(mux)
}
