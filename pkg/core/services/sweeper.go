package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const DefaultUnusedLinkDays = 30

type SweepOptions struct {
	// UnusedAfter is how long a never-clicked link may live before it is archived.
	UnusedAfter time.Duration
	Now         func() time.Time
}

// Sweeper moves expired and never-used links into the expired_links history.
type Sweeper struct {
	repo   ports.LinkRepository
	cache  *linkCache
	logger zerolog.Logger
	opts   SweepOptions
	now    func() time.Time

	// Serializes sweeps started by the scheduler and by admins in this process.
	mu sync.Mutex
}

func NewSweeper(repo ports.LinkRepository, cache ports.Cache, logger zerolog.Logger, opts SweepOptions) *Sweeper {
	if opts.UnusedAfter <= 0 {
		opts.UnusedAfter = DefaultUnusedLinkDays * 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger = logger.With().Str("component", "sweeper").Logger()

	return &Sweeper{
		repo:   repo,
		cache:  newLinkCache(cache, logger),
		logger: logger,
		opts:   opts,
		now:    func() time.Time { return now().UTC() },
	}
}

// SweepExpired archives every eligible link and returns how many were moved.
// Each link is archived in its own transaction; a failure on one link does not
// stop the others and is reported in the returned error.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now()
	unusedBefore := now.Add(-s.opts.UnusedAfter)

	candidates, err := s.repo.ListSweepCandidates(ctx, now, unusedBefore)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list sweep candidates")
		return 0, err
	}

	var (
		archived int
		errs     []error
	)
	for _, link := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		expired, err := s.repo.ArchiveLink(ctx, link.ID, uuid.New(), now, unusedBefore)
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted, archived or revived since the candidate list was read.
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Str("short_code", link.ShortCode).Msg("failed to archive link")
			errs = append(errs, err)
			continue
		}

		s.cache.invalidate(ctx, expired.ShortCode)
		archived++
		metrics.SweepArchivedTotal.Inc()
		s.logger.Debug().
			Str("short_code", expired.ShortCode).
			Int64("total_clicks", expired.TotalClicks).
			Msg("link archived")
	}

	s.logger.Info().
		Int("candidates", len(candidates)).
		Int("archived", archived).
		Dur("took", time.Since(start)).
		Msg("sweep finished")

	return archived, errors.Join(errs...)
}

var _ ports.Sweeper = (*Sweeper)(nil)
