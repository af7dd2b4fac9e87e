package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// SweepService triggers the archival sweep every interval.
type SweepService struct {
	sweeper  ports.Sweeper
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweepService(sweeper ports.Sweeper, interval time.Duration, logger zerolog.Logger) *SweepService {
	return &SweepService{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With().Str("component", "sweep_scheduler").Logger(),
	}
}

// Serve blocks until ctx is canceled. Sweep failures are logged and retried on the next tick.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sweep scheduler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			archived, err := s.sweeper.SweepExpired(ctx)
			if err != nil {
				s.logger.Error().Err(err).Int("archived", archived).Msg("scheduled sweep failed")
			}
		}
	}
}

func (s *SweepService) String() string {
	return "sweep-scheduler"
}
