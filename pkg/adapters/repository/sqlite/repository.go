package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	moderncsqlite "modernc.org/sqlite"                   // Local SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const linkColumns = `id, original_url, short_code, created_at, expires_at, is_active, clicks, last_clicked_at, owner_id, is_custom, project`

const expiredColumns = `id, original_url, short_code, created_at, expired_at, total_clicks, owner_id, project`

// sweepPredicate selects expired links and never-clicked links older than the
// unused threshold. A missing last_clicked_at falls back to created_at.
const sweepPredicate = `((expires_at IS NOT NULL AND expires_at <= ?)
	OR (clicks = 0 AND COALESCE(last_clicked_at, created_at) <= ?))`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	} else {
		dbURL = withPragmas(dbURL)
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// A single writer connection keeps transactions from failing with SQLITE_BUSY
		// and lets in-memory databases survive between calls.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func withPragmas(dbURL string) string {
	sep := "?"
	if strings.Contains(dbURL, "?") {
		sep = "&"
	}
	return dbURL + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Timestamps are stored as unix nanoseconds so range predicates compare numerically
// regardless of which driver wrote the row.
func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		short_code TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL,
		expires_at INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		clicks INTEGER NOT NULL DEFAULT 0,
		last_clicked_at INTEGER,
		owner_id TEXT,
		is_custom INTEGER NOT NULL DEFAULT 0,
		project TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id);
	CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links(expires_at);

	CREATE TABLE IF NOT EXISTS expired_links (
		id TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		short_code TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expired_at INTEGER NOT NULL,
		total_clicks INTEGER NOT NULL DEFAULT 0,
		owner_id TEXT,
		project TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_expired_links_owner_id ON expired_links(owner_id);
	`
	_, err := db.Exec(query)
	return err
}

func (r *SQLiteRepository) Insert(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (` + linkColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, linkArgs(link)...)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *SQLiteRepository) InsertAnonymous(ctx context.Context, link *domain.Link, limit int) error {
	// The count and the insert run as one statement, so the cap holds under concurrency.
	query := `INSERT INTO links (` + linkColumns + `)
			  SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
			  WHERE (SELECT COUNT(*) FROM links WHERE owner_id IS NULL) < ?`

	args := append(linkArgs(link), limit)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return translateErr(err)
	}
	if n == 0 {
		return domain.ErrQuotaExceeded
	}
	return nil
}

func (r *SQLiteRepository) FindByCode(ctx context.Context, code string) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = ?`
	return scanLink(r.db.QueryRowContext(ctx, query, code))
}

func (r *SQLiteRepository) Update(ctx context.Context, link *domain.Link) error {
	query := `UPDATE links SET original_url = ?, short_code = ?, expires_at = ?, is_active = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		link.OriginalURL, link.ShortCode, nullNanos(link.ExpiresAt), link.IsActive, link.ID.String())
	if err != nil {
		return translateErr(err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id.String())
	if err != nil {
		return translateErr(err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) RecordClick(ctx context.Context, code string, at time.Time) (*domain.Link, error) {
	// Increment (Atomic)
	query := `UPDATE links SET clicks = clicks + 1, last_clicked_at = ?
			  WHERE short_code = ? AND is_active = 1
			  RETURNING ` + linkColumns

	return scanLink(r.db.QueryRowContext(ctx, query, at.UnixNano(), code))
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE owner_id = ? ORDER BY created_at DESC`
	return r.queryLinks(ctx, query, owner.String())
}

func (r *SQLiteRepository) ListByProject(ctx context.Context, owner uuid.UUID, project string) ([]domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE owner_id = ? AND project = ? ORDER BY created_at DESC`
	return r.queryLinks(ctx, query, owner.String(), project)
}

func (r *SQLiteRepository) Search(ctx context.Context, owner uuid.UUID, urlSubstring string) ([]domain.Link, error) {
	// SQLite's LIKE and lower() only fold ASCII, so matching happens here with
	// Unicode case folding to agree with Postgres ILIKE.
	owned, err := r.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(urlSubstring)
	links := []domain.Link{}
	for _, l := range owned {
		if strings.Contains(strings.ToLower(l.OriginalURL), needle) {
			links = append(links, l)
		}
	}
	return links, nil
}

func (r *SQLiteRepository) CountAnonymous(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links WHERE owner_id IS NULL`).Scan(&count)
	if err != nil {
		return 0, translateErr(err)
	}
	return count, nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	return r.queryLinks(ctx, `SELECT `+linkColumns+` FROM links ORDER BY created_at`)
}

func (r *SQLiteRepository) ListSweepCandidates(ctx context.Context, now, unusedBefore time.Time) ([]domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE ` + sweepPredicate
	return r.queryLinks(ctx, query, now.UnixNano(), unusedBefore.UnixNano())
}

func (r *SQLiteRepository) ArchiveLink(ctx context.Context, linkID, archiveID uuid.UUID, now, unusedBefore time.Time) (*domain.ExpiredLink, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translateErr(err)
	}
	defer tx.Rollback()

	// 1. Remove the active row if still eligible, reading its final state
	link, err := scanLink(tx.QueryRowContext(ctx,
		`DELETE FROM links WHERE id = ? AND `+sweepPredicate+` RETURNING `+linkColumns,
		linkID.String(), now.UnixNano(), unusedBefore.UnixNano()))
	if err != nil {
		return nil, err
	}

	// 2. Write the archive record
	expired := link.Archive(archiveID, now)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO expired_links (`+expiredColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expiredArgs(expired)...); err != nil {
		return nil, translateErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, translateErr(err)
	}
	return expired, nil
}

func (r *SQLiteRepository) ListExpiredByOwner(ctx context.Context, owner uuid.UUID) ([]domain.ExpiredLink, error) {
	query := `SELECT ` + expiredColumns + ` FROM expired_links WHERE owner_id = ? ORDER BY expired_at DESC`

	rows, err := r.db.QueryContext(ctx, query, owner.String())
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	links := []domain.ExpiredLink{}
	for rows.Next() {
		var (
			e                    domain.ExpiredLink
			createdAt, expiredAt int64
			ownerID              uuid.NullUUID
			project              sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OriginalURL, &e.ShortCode, &createdAt, &expiredAt,
			&e.TotalClicks, &ownerID, &project); err != nil {
			return nil, translateErr(err)
		}
		e.CreatedAt = fromNanos(createdAt)
		e.ExpiredAt = fromNanos(expiredAt)
		e.OwnerID = uuidPtr(ownerID)
		e.Project = stringPtr(project)
		links = append(links, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return links, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) queryLinks(ctx context.Context, query string, args ...interface{}) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var (
		l                        domain.Link
		createdAt                int64
		expiresAt, lastClickedAt sql.NullInt64
		ownerID                  uuid.NullUUID
		project                  sql.NullString
	)

	err := row.Scan(&l.ID, &l.OriginalURL, &l.ShortCode, &createdAt, &expiresAt, &l.IsActive,
		&l.Clicks, &lastClickedAt, &ownerID, &l.IsCustom, &project)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, translateErr(err)
	}

	l.CreatedAt = fromNanos(createdAt)
	l.ExpiresAt = timePtr(expiresAt)
	l.LastClickedAt = timePtr(lastClickedAt)
	l.OwnerID = uuidPtr(ownerID)
	l.Project = stringPtr(project)
	return &l, nil
}

func linkArgs(l *domain.Link) []interface{} {
	return []interface{}{
		l.ID.String(), l.OriginalURL, l.ShortCode, l.CreatedAt.UnixNano(), nullNanos(l.ExpiresAt),
		l.IsActive, l.Clicks, nullNanos(l.LastClickedAt), nullUUID(l.OwnerID), l.IsCustom, nullString(l.Project),
	}
}

func expiredArgs(e *domain.ExpiredLink) []interface{} {
	return []interface{}{
		e.ID.String(), e.OriginalURL, e.ShortCode, e.CreatedAt.UnixNano(), e.ExpiredAt.UnixNano(),
		e.TotalClicks, nullUUID(e.OwnerID), nullString(e.Project),
	}
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translateErr(err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func translateErr(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateCode, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStorage, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// libsql reports constraint failures as plain text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullNanos(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Ensure interface compliance
var _ ports.LinkRepository = (*SQLiteRepository)(nil)
