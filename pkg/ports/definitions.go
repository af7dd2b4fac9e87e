package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// LinkRepository defines storage operations for active and archived links.
// Lookups return domain.ErrNotFound when no row matches.
type LinkRepository interface {
	// Insert fails with domain.ErrDuplicateCode if short_code is already taken.
	Insert(ctx context.Context, link *domain.Link) error
	// InsertAnonymous inserts only while fewer than limit owner-less links exist,
	// otherwise it fails with domain.ErrQuotaExceeded.
	InsertAnonymous(ctx context.Context, link *domain.Link, limit int) error
	FindByCode(ctx context.Context, code string) (*domain.Link, error)
	Update(ctx context.Context, link *domain.Link) error
	Delete(ctx context.Context, id uuid.UUID) error
	// RecordClick atomically increments clicks on an active link and returns the new row.
	RecordClick(ctx context.Context, code string, at time.Time) (*domain.Link, error)

	ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Link, error)
	ListByProject(ctx context.Context, owner uuid.UUID, project string) ([]domain.Link, error)
	Search(ctx context.Context, owner uuid.UUID, urlSubstring string) ([]domain.Link, error)
	CountAnonymous(ctx context.Context) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration

	// Archive
	ListSweepCandidates(ctx context.Context, now, unusedBefore time.Time) ([]domain.Link, error)
	// ArchiveLink moves the link into the archive in one transaction, stamped with
	// expired_at = now. The sweep predicate is re-evaluated inside that transaction
	// and the archived record carries the click count read there. It returns
	// domain.ErrNotFound if the link is gone or no longer eligible.
	ArchiveLink(ctx context.Context, linkID, archiveID uuid.UUID, now, unusedBefore time.Time) (*domain.ExpiredLink, error)
	ListExpiredByOwner(ctx context.Context, owner uuid.UUID) ([]domain.ExpiredLink, error)

	Ping(ctx context.Context) error
	Close() error
}

// Cache is a TTL key-value store. A miss is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LinkService defines the business logic operations
type LinkService interface {
	CreateLink(ctx context.Context, caller *domain.Caller, in domain.CreateLinkInput) (*domain.Link, error)
	Redirect(ctx context.Context, code string) (string, error)
	GetStats(ctx context.Context, code string, caller domain.Caller) (*domain.Link, error)
	UpdateLink(ctx context.Context, code string, patch domain.LinkPatch, caller domain.Caller) (*domain.Link, error)
	DeleteLink(ctx context.Context, code string, caller domain.Caller) error
	ListLinks(ctx context.Context, caller domain.Caller) ([]domain.Link, error)
	SearchLinks(ctx context.Context, urlSubstring string, caller domain.Caller) ([]domain.Link, error)
	ListProjectLinks(ctx context.Context, project string, caller domain.Caller) ([]domain.Link, error)
	ListExpired(ctx context.Context, caller domain.Caller) ([]domain.ExpiredLink, error)
	Ping(ctx context.Context) error
}

// Sweeper retires expired and unused links into the archive.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}
