// Package repository selects a link storage adapter from a database URL.
package repository

import (
	"context"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Open connects to Postgres for postgres:// URLs and to SQLite (local file or
// libsql/Turso) for everything else. The schema is created if missing.
func Open(ctx context.Context, databaseURL string) (ports.LinkRepository, error) {
	if postgres.IsPostgresURL(databaseURL) {
		repo, err := postgres.NewPostgresRepository(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	repo, err := sqlite.NewSQLiteRepository(databaseURL)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
