package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is the periodic job the scheduler drives. Sweep returns how many
// items it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepFunc adapts a plain function to Sweeper.
type SweepFunc func(ctx context.Context) (int, error)

func (f SweepFunc) Sweep(ctx context.Context) (int, error) { return f(ctx) }

// Scheduler periodically runs a Sweeper.
type Scheduler struct {
	interval time.Duration
	timeout  time.Duration
	sweeper  Sweeper
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler runs sweeper.Sweep every interval; interval <= 0 means one minute.
func NewScheduler(interval time.Duration, sweeper Sweeper, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{
		interval: interval,
		timeout:  30 * time.Second,
		sweeper:  sweeper,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start begins the loop in a background goroutine. Calling Start twice has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Debug().Msg("scheduler context cancelled")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	n, err := s.sweeper.Sweep(runCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("removed", n).Msg("sweep finished")
	}
}

// Stop cancels the loop and waits for it to exit. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("scheduler stopped")
}
