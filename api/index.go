package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/app"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	logger := app.NewLogger(cfg)

	// Note: On Vercel, db.sqlite is ephemeral unless DATABASE_URL points at Turso or Postgres.
	// Sweeps run through the admin endpoint or an external cron here.
	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	mux = application.Handler()
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
