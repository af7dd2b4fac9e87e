package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/core/shortcode"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const (
	DefaultMaxAnonymousLinks = 100
	maxGenerateAttempts      = 10
)

// LinkOptions tunes quotas and default expiries. Zero values mean "use the default" for
// MaxAnonymousLinks and "no expiry" for the TTLs.
type LinkOptions struct {
	MaxAnonymousLinks int
	AnonymousLinkTTL  time.Duration
	DefaultLinkTTL    time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

type LinkService struct {
	repo   ports.LinkRepository
	cache  *linkCache
	logger zerolog.Logger
	opts   LinkOptions
	now    func() time.Time
}

func NewLinkService(repo ports.LinkRepository, cache ports.Cache, logger zerolog.Logger, opts LinkOptions) *LinkService {
	if opts.MaxAnonymousLinks <= 0 {
		opts.MaxAnonymousLinks = DefaultMaxAnonymousLinks
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger = logger.With().Str("component", "link_service").Logger()

	return &LinkService{
		repo:   repo,
		cache:  newLinkCache(cache, logger),
		logger: logger,
		opts:   opts,
		now:    func() time.Time { return now().UTC() },
	}
}

// CreateLink shortens in.OriginalURL. A nil caller creates an anonymous link.
func (s *LinkService) CreateLink(ctx context.Context, caller *domain.Caller, in domain.CreateLinkInput) (*domain.Link, error) {
	kind := creationKind(caller, in)
	link, err := s.createLink(ctx, caller, in)
	if err != nil {
		metrics.LinkCreationTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	metrics.LinkCreationTotal.WithLabelValues(kind, "ok").Inc()
	return link, nil
}

func creationKind(caller *domain.Caller, in domain.CreateLinkInput) string {
	switch {
	case caller == nil:
		return "anonymous"
	case in.CustomAlias != nil:
		return "custom"
	default:
		return "generated"
	}
}

func (s *LinkService) createLink(ctx context.Context, caller *domain.Caller, in domain.CreateLinkInput) (*domain.Link, error) {
	now := s.now()

	if err := validateURL(in.OriginalURL); err != nil {
		return nil, err
	}
	project, err := normalizeProject(in.Project)
	if err != nil {
		return nil, err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidArgument)
	}

	link := &domain.Link{
		ID:          uuid.New(),
		OriginalURL: in.OriginalURL,
		CreatedAt:   now,
		ExpiresAt:   in.ExpiresAt,
		IsActive:    true,
		Project:     project,
	}

	if caller == nil {
		return s.createAnonymous(ctx, link, in.CustomAlias)
	}

	owner := caller.UserID
	link.OwnerID = &owner
	if link.ExpiresAt == nil {
		link.ExpiresAt = expiryAfter(now, s.opts.DefaultLinkTTL)
	}

	if in.CustomAlias == nil {
		if err := s.insertGenerated(ctx, link, s.repo.Insert); err != nil {
			return nil, err
		}
		return link, nil
	}

	alias := *in.CustomAlias
	if err := shortcode.ValidateAlias(alias); err != nil {
		return nil, err
	}

	// Fast path; the unique constraint below settles concurrent requests.
	if _, err := s.repo.FindByCode(ctx, alias); err == nil {
		return nil, domain.ErrAliasTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	link.ShortCode = alias
	link.IsCustom = true
	if err := s.repo.Insert(ctx, link); err != nil {
		if errors.Is(err, domain.ErrDuplicateCode) {
			return nil, domain.ErrAliasTaken
		}
		return nil, err
	}

	s.logger.Info().Str("short_code", alias).Str("owner", owner.String()).Msg("custom link created")
	return link, nil
}

func (s *LinkService) createAnonymous(ctx context.Context, link *domain.Link, alias *string) (*domain.Link, error) {
	if alias != nil {
		return nil, fmt.Errorf("%w: anonymous links cannot use a custom alias", domain.ErrForbidden)
	}

	count, err := s.repo.CountAnonymous(ctx)
	if err != nil {
		return nil, err
	}
	if count >= int64(s.opts.MaxAnonymousLinks) {
		return nil, domain.ErrQuotaExceeded
	}

	if link.ExpiresAt == nil {
		link.ExpiresAt = expiryAfter(link.CreatedAt, s.opts.AnonymousLinkTTL)
	}

	// The repository re-checks the cap in the same statement as the insert.
	insert := func(ctx context.Context, l *domain.Link) error {
		return s.repo.InsertAnonymous(ctx, l, s.opts.MaxAnonymousLinks)
	}
	if err := s.insertGenerated(ctx, link, insert); err != nil {
		return nil, err
	}
	return link, nil
}

// insertGenerated assigns random codes until insert stops reporting duplicates.
func (s *LinkService) insertGenerated(ctx context.Context, link *domain.Link, insert func(context.Context, *domain.Link) error) error {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code, err := shortcode.Generate()
		if err != nil {
			return err
		}
		link.ShortCode = code

		err = insert(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return err
		}

		metrics.CodeCollisionsTotal.Inc()
		s.logger.Debug().Str("short_code", code).Int("attempt", attempt).Msg("generated code collided")
	}

	s.logger.Error().Int("attempts", maxGenerateAttempts).Msg("short code space exhausted")
	return domain.ErrExhaustedRetries
}

// Redirect resolves code to its original URL and records the click.
// Unknown, inactive and expired codes are indistinguishable.
func (s *LinkService) Redirect(ctx context.Context, code string) (string, error) {
	if code == "" || len(code) > domain.MaxShortCodeLength {
		metrics.RedirectTotal.WithLabelValues("not_found").Inc()
		return "", domain.ErrNotFound
	}

	link, err := s.lookup(ctx, linkKey(code), redirectTTL, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.RedirectTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.RedirectTotal.WithLabelValues("error").Inc()
		}
		return "", err
	}

	now := s.now()
	if !link.IsActive || link.Expired(now) {
		metrics.RedirectTotal.WithLabelValues("not_found").Inc()
		return "", domain.ErrNotFound
	}

	// The increment re-checks is_active in storage, so a snapshot that went stale
	// after deactivation or archival cannot count a click.
	clicked, err := s.repo.RecordClick(ctx, code, now)
	s.cache.invalidate(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.RedirectTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.RedirectTotal.WithLabelValues("error").Inc()
		}
		return "", err
	}

	metrics.RedirectTotal.WithLabelValues("ok").Inc()
	return clicked.OriginalURL, nil
}

// GetStats returns the link as its owner sees it. Owner-less links are visible to any caller.
func (s *LinkService) GetStats(ctx context.Context, code string, caller domain.Caller) (*domain.Link, error) {
	link, err := s.lookup(ctx, statsKey(code), statsTTL, code)
	if err != nil {
		return nil, err
	}
	if !link.IsAnonymous() && !link.OwnedBy(caller.UserID) {
		return nil, domain.ErrForbidden
	}
	return link, nil
}

func (s *LinkService) UpdateLink(ctx context.Context, code string, patch domain.LinkPatch, caller domain.Caller) (*domain.Link, error) {
	if err := validatePatch(patch, s.now()); err != nil {
		return nil, err
	}

	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !canModify(link, caller) {
		return nil, domain.ErrForbidden
	}

	oldCode := link.ShortCode
	if patch.ShortCode != nil && *patch.ShortCode != oldCode {
		if _, err := s.repo.FindByCode(ctx, *patch.ShortCode); err == nil {
			return nil, domain.ErrAliasTaken
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		link.ShortCode = *patch.ShortCode
	}
	if patch.IsActive != nil {
		link.IsActive = *patch.IsActive
	}
	if patch.OriginalURL != nil {
		link.OriginalURL = *patch.OriginalURL
	}
	if patch.ExpiresAt != nil {
		expiresAt := patch.ExpiresAt.UTC()
		link.ExpiresAt = &expiresAt
	}

	if err := s.repo.Update(ctx, link); err != nil {
		if errors.Is(err, domain.ErrDuplicateCode) {
			return nil, domain.ErrAliasTaken
		}
		return nil, err
	}
	s.cache.invalidate(ctx, oldCode, link.ShortCode)

	s.logger.Info().Str("short_code", link.ShortCode).Str("previous_code", oldCode).Msg("link updated")
	return link, nil
}

func (s *LinkService) DeleteLink(ctx context.Context, code string, caller domain.Caller) error {
	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if !canModify(link, caller) {
		return domain.ErrForbidden
	}

	err = s.repo.Delete(ctx, link.ID)
	s.cache.invalidate(ctx, code)
	if err != nil {
		return err
	}

	s.logger.Info().Str("short_code", code).Msg("link deleted")
	return nil
}

// SearchLinks matches urlSubstring case-insensitively against the caller's links.
func (s *LinkService) SearchLinks(ctx context.Context, urlSubstring string, caller domain.Caller) ([]domain.Link, error) {
	urlSubstring = strings.TrimSpace(urlSubstring)
	if urlSubstring == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrInvalidArgument)
	}

	key := searchKey(caller.UserID, strings.ToLower(urlSubstring))
	return s.lookupList(ctx, key, func() ([]domain.Link, error) {
		return s.repo.Search(ctx, caller.UserID, urlSubstring)
	})
}

func (s *LinkService) ListProjectLinks(ctx context.Context, project string, caller domain.Caller) ([]domain.Link, error) {
	project = strings.TrimSpace(project)
	if project == "" || len(project) > domain.MaxProjectLength {
		return nil, fmt.Errorf("%w: project must be 1 to %d characters", domain.ErrInvalidArgument, domain.MaxProjectLength)
	}

	return s.lookupList(ctx, projectKey(caller.UserID, project), func() ([]domain.Link, error) {
		return s.repo.ListByProject(ctx, caller.UserID, project)
	})
}

// ImportLink stores a link read from an export. The record must pass the same
// checks as a new link; a missing id or created_at is filled in. Anonymous records
// count against the anonymous cap and can never be custom.
func (s *LinkService) ImportLink(ctx context.Context, link *domain.Link) error {
	if err := validateURL(link.OriginalURL); err != nil {
		return err
	}
	if err := shortcode.ValidateAlias(link.ShortCode); err != nil {
		return err
	}
	if link.Clicks < 0 {
		return fmt.Errorf("%w: clicks must not be negative", domain.ErrInvalidArgument)
	}
	project, err := normalizeProject(link.Project)
	if err != nil {
		return err
	}
	link.Project = project
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}

	if link.OwnerID == nil {
		link.IsCustom = false
		err = s.repo.InsertAnonymous(ctx, link, s.opts.MaxAnonymousLinks)
	} else {
		err = s.repo.Insert(ctx, link)
	}
	if errors.Is(err, domain.ErrDuplicateCode) {
		return domain.ErrAliasTaken
	}
	if err != nil {
		return err
	}
	s.cache.invalidate(ctx, link.ShortCode)
	return nil
}

// ListLinks returns every link the caller owns, newest first. It reads
// storage directly so a freshly created link is always listed.
func (s *LinkService) ListLinks(ctx context.Context, caller domain.Caller) ([]domain.Link, error) {
	links, err := s.repo.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.Link{}
	}
	return links, nil
}

func (s *LinkService) ListExpired(ctx context.Context, caller domain.Caller) ([]domain.ExpiredLink, error) {
	expired, err := s.repo.ListExpiredByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if expired == nil {
		expired = []domain.ExpiredLink{}
	}
	return expired, nil
}

func (s *LinkService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// lookup is the cache-aside read of a single link snapshot.
func (s *LinkService) lookup(ctx context.Context, key string, ttl time.Duration, code string) (*domain.Link, error) {
	var cached domain.Link
	if s.cache.get(ctx, key, &cached) {
		return &cached, nil
	}

	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, key, link, ttl)
	return link, nil
}

func (s *LinkService) lookupList(ctx context.Context, key string, load func() ([]domain.Link, error)) ([]domain.Link, error) {
	var cached []domain.Link
	if s.cache.get(ctx, key, &cached) {
		return cached, nil
	}

	links, err := load()
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.Link{}
	}
	s.cache.set(ctx, key, links, listTTL)
	return links, nil
}

// canModify allows the owner, and superusers on owner-less links.
func canModify(link *domain.Link, caller domain.Caller) bool {
	if link.IsAnonymous() {
		return caller.IsSuperuser
	}
	return link.OwnedBy(caller.UserID)
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: original_url is required", domain.ErrInvalidArgument)
	}
	if len(raw) > domain.MaxOriginalURLLength {
		return fmt.Errorf("%w: original_url exceeds %d characters", domain.ErrInvalidArgument, domain.MaxOriginalURLLength)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: original_url is not a valid URL", domain.ErrInvalidArgument)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: original_url must be an absolute http(s) URL", domain.ErrInvalidArgument)
	}
	return nil
}

func validatePatch(patch domain.LinkPatch, now time.Time) error {
	if patch.Empty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidArgument)
	}
	if patch.ShortCode != nil {
		if err := shortcode.ValidateAlias(*patch.ShortCode); err != nil {
			return err
		}
	}
	if patch.OriginalURL != nil {
		if err := validateURL(*patch.OriginalURL); err != nil {
			return err
		}
	}
	if patch.ExpiresAt != nil && !patch.ExpiresAt.After(now) {
		return fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidArgument)
	}
	return nil
}

func normalizeProject(project *string) (*string, error) {
	if project == nil {
		return nil, nil
	}
	p := strings.TrimSpace(*project)
	if p == "" {
		return nil, nil
	}
	if len(p) > domain.MaxProjectLength {
		return nil, fmt.Errorf("%w: project exceeds %d characters", domain.ErrInvalidArgument, domain.MaxProjectLength)
	}
	return &p, nil
}

func expiryAfter(from time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := from.Add(ttl)
	return &t
}

var _ ports.LinkService = (*LinkService)(nil)
