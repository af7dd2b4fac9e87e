package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const (
	linkColumns    = `id, original_url, short_code, created_at, expires_at, is_active, clicks, last_clicked_at, owner_id, is_custom, project`
	expiredColumns = `id, original_url, short_code, created_at, expired_at, total_clicks, owner_id, project`

	// Placeholders $1 (now) and $2 (unused threshold).
	sweepPredicate = `((expires_at IS NOT NULL AND expires_at <= $1)
		OR (clicks = 0 AND COALESCE(last_clicked_at, created_at) <= $2))`

	uniqueViolation = "23505"
	// Advisory lock key serializing anonymous inserts.
	anonymousLockKey = 0x5348524c
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// IsPostgresURL reports whether dsn should be opened with this adapter.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute
	config.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id UUID PRIMARY KEY,
		original_url VARCHAR(2048) NOT NULL,
		short_code VARCHAR(50) NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		clicks BIGINT NOT NULL DEFAULT 0 CHECK (clicks >= 0),
		last_clicked_at TIMESTAMPTZ,
		owner_id UUID,
		is_custom BOOLEAN NOT NULL DEFAULT FALSE,
		project VARCHAR(100)
	);
	CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id);
	CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links(expires_at);

	CREATE TABLE IF NOT EXISTS expired_links (
		id UUID PRIMARY KEY,
		original_url VARCHAR(2048) NOT NULL,
		short_code VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expired_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		total_clicks BIGINT NOT NULL DEFAULT 0,
		owner_id UUID,
		project VARCHAR(100)
	);
	CREATE INDEX IF NOT EXISTS idx_expired_links_owner_id ON expired_links(owner_id);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

func (r *PostgresRepository) Insert(ctx context.Context, link *domain.Link) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO links (`+linkColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		linkArgs(link)...)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *PostgresRepository) InsertAnonymous(ctx context.Context, link *domain.Link, limit int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return translateErr(err)
	}
	defer tx.Rollback(ctx)

	// Under READ COMMITTED two inserts could both see count < limit; the lock orders them.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, anonymousLockKey); err != nil {
		return translateErr(err)
	}

	args := append(linkArgs(link), limit)
	tag, err := tx.Exec(ctx,
		`INSERT INTO links (`+linkColumns+`)
		 SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		 WHERE (SELECT COUNT(*) FROM links WHERE owner_id IS NULL) < $12`,
		args...)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuotaExceeded
	}

	if err := tx.Commit(ctx); err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*domain.Link, error) {
	return scanLink(r.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = $1`, code))
}

func (r *PostgresRepository) Update(ctx context.Context, link *domain.Link) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE links SET original_url = $1, short_code = $2, expires_at = $3, is_active = $4 WHERE id = $5`,
		link.OriginalURL, link.ShortCode, link.ExpiresAt, link.IsActive, link.ID)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) RecordClick(ctx context.Context, code string, at time.Time) (*domain.Link, error) {
	return scanLink(r.pool.QueryRow(ctx,
		`UPDATE links SET clicks = clicks + 1, last_clicked_at = $1
		 WHERE short_code = $2 AND is_active
		 RETURNING `+linkColumns,
		at, code))
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Link, error) {
	return r.queryLinks(ctx, `SELECT `+linkColumns+` FROM links WHERE owner_id = $1 ORDER BY created_at DESC`, owner)
}

func (r *PostgresRepository) ListByProject(ctx context.Context, owner uuid.UUID, project string) ([]domain.Link, error) {
	return r.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE owner_id = $1 AND project = $2 ORDER BY created_at DESC`,
		owner, project)
}

func (r *PostgresRepository) Search(ctx context.Context, owner uuid.UUID, urlSubstring string) ([]domain.Link, error) {
	return r.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE owner_id = $1 AND original_url ILIKE $2 ORDER BY created_at DESC`,
		owner, "%"+escapeLike(urlSubstring)+"%")
}

func (r *PostgresRepository) CountAnonymous(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM links WHERE owner_id IS NULL`).Scan(&count); err != nil {
		return 0, translateErr(err)
	}
	return count, nil
}

func (r *PostgresRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	return r.queryLinks(ctx, `SELECT `+linkColumns+` FROM links ORDER BY created_at`)
}

func (r *PostgresRepository) ListSweepCandidates(ctx context.Context, now, unusedBefore time.Time) ([]domain.Link, error) {
	return r.queryLinks(ctx, `SELECT `+linkColumns+` FROM links WHERE `+sweepPredicate, now, unusedBefore)
}

func (r *PostgresRepository) ArchiveLink(ctx context.Context, linkID, archiveID uuid.UUID, now, unusedBefore time.Time) (*domain.ExpiredLink, error) {
	var expired *domain.ExpiredLink

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		link, err := scanLink(tx.QueryRow(ctx,
			`DELETE FROM links WHERE id = $3 AND `+sweepPredicate+` RETURNING `+linkColumns,
			now, unusedBefore, linkID))
		if err != nil {
			return err
		}

		expired = link.Archive(archiveID, now)
		if _, err := tx.Exec(ctx,
			`INSERT INTO expired_links (`+expiredColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			expiredArgs(expired)...); err != nil {
			return translateErr(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStorage) {
			return nil, err
		}
		return nil, translateErr(err)
	}
	return expired, nil
}

func (r *PostgresRepository) ListExpiredByOwner(ctx context.Context, owner uuid.UUID) ([]domain.ExpiredLink, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+expiredColumns+` FROM expired_links WHERE owner_id = $1 ORDER BY expired_at DESC`, owner)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	links := []domain.ExpiredLink{}
	for rows.Next() {
		var e domain.ExpiredLink
		if err := rows.Scan(&e.ID, &e.OriginalURL, &e.ShortCode, &e.CreatedAt, &e.ExpiredAt,
			&e.TotalClicks, &e.OwnerID, &e.Project); err != nil {
			return nil, translateErr(err)
		}
		links = append(links, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return links, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) queryLinks(ctx context.Context, query string, args ...any) ([]domain.Link, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return links, nil
}

func scanLink(row pgx.Row) (*domain.Link, error) {
	var l domain.Link
	err := row.Scan(&l.ID, &l.OriginalURL, &l.ShortCode, &l.CreatedAt, &l.ExpiresAt, &l.IsActive,
		&l.Clicks, &l.LastClickedAt, &l.OwnerID, &l.IsCustom, &l.Project)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, translateErr(err)
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func linkArgs(l *domain.Link) []any {
	return []any{
		l.ID, l.OriginalURL, l.ShortCode, l.CreatedAt, l.ExpiresAt,
		l.IsActive, l.Clicks, l.LastClickedAt, l.OwnerID, l.IsCustom, l.Project,
	}
}

func expiredArgs(e *domain.ExpiredLink) []any {
	return []any{e.ID, e.OriginalURL, e.ShortCode, e.CreatedAt, e.ExpiredAt, e.TotalClicks, e.OwnerID, e.Project}
}

func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateCode, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStorage, err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Ensure interface compliance
var _ ports.LinkRepository = (*PostgresRepository)(nil)
