package quarantine

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/vein/pkg/log"
	"github.com/rs/zerolog"
)

// Scheduler runs the quarantine promotion sweep on a fixed hourly
// schedule, at :05 past the hour. The schedule is fixed by design (the
// policy has exactly one cadence), so this computes the next boundary
// itself rather than pulling in a general cron-expression parser.
type Scheduler struct {
	engine *Engine
	logger zerolog.Logger
	mu     sync.Mutex
	stopCh chan struct{}
}

// NewScheduler builds a Scheduler over the given Engine.
func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{
		engine: engine,
		logger: log.WithComponent("quarantine-scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run() {
	for {
		wait := time.Until(nextHourlyBoundary(time.Now(), 5))
		select {
		case <-time.After(wait):
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.engine.Promote(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("quarantine promotion sweep failed")
		return
	}
	s.logger.Info().Int("promoted", n).Msg("quarantine promotion sweep complete")
}

// nextHourlyBoundary returns the next time with the given minute that
// is strictly after now.
func nextHourlyBoundary(now time.Time, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.Add(time.Hour)
	}
	return candidate
}
