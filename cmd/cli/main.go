package main

import (
	"context"
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/app"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
)

type globalOptions struct {
	DatabaseURL string `short:"d" long:"database" description:"database URL, overrides DATABASE_URL"`
}

var opts globalOptions

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("export", "Export links", "Write every active link as JSON.", &exportCommand{})
	parser.AddCommand("import", "Import links", "Insert links from a JSON export, skipping codes already in use.", &importCommand{})
	parser.AddCommand("sweep", "Archive expired links", "Run one archival sweep, for cron or manual use.", &sweepCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// openApp loads configuration and connects to storage for one command run.
func openApp(ctx context.Context) (*app.App, zerolog.Logger, error) {
	cfg := config.Load()
	if opts.DatabaseURL != "" {
		cfg.DatabaseURL = opts.DatabaseURL
	}
	if cfg.LogFormat == "" || cfg.LogFormat == "json" {
		cfg.LogFormat = "console"
	}
	logger := app.NewLogger(cfg)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	return a, logger, nil
}
