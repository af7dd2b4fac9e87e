// Package supervisor runs the long-lived parts of the server under a suture tree.
package supervisor

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// New builds the root supervisor. Restart events are logged through logger.
func New(logger zerolog.Logger) *suture.Supervisor {
	logger = logger.With().Str("component", "supervisor").Logger()

	return suture.New("shortlink", suture.Spec{
		EventHook: func(e suture.Event) {
			switch e.Type() {
			case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate:
				logger.Error().Fields(e.Map()).Msg(e.String())
			case suture.EventTypeBackoff:
				logger.Warn().Fields(e.Map()).Msg(e.String())
			default:
				logger.Info().Fields(e.Map()).Msg(e.String())
			}
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}
