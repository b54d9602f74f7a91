package proposals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/walla-walla-travel/tourops/internal/app/system"
	"github.com/walla-walla-travel/tourops/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// sweepTimeout bounds one expiry pass.
const sweepTimeout = 30 * time.Second

// Sweeper expires overdue proposals on a cron schedule.
type Sweeper struct {
	service  *Service
	schedule cron.Schedule
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSweeper creates a sweeper firing on the given cron spec. An empty
// spec runs hourly.
func NewSweeper(service *Service, spec string, log *logger.Logger) (*Sweeper, error) {
	if log == nil {
		log = logger.NewDefault("proposal-sweeper")
	}
	if spec == "" {
		spec = "@hourly"
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return &Sweeper{
		service:  service,
		schedule: schedule,
		log:      log,
	}, nil
}

func (s *Sweeper) Name() string { return "proposal-sweeper" }

// Start launches the sweep loop. Calling Start on a running sweeper is
// a no-op.
func (s *Sweeper) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(runCtx)

	s.log.WithField("next_sweep", s.schedule.Next(time.Now())).Info("proposal sweeper started")
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		timer := time.NewTimer(time.Until(s.schedule.Next(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	count, err := s.service.ExpireDue(sweepCtx, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Warnf("proposal sweep failed")
		return
	}
	if count > 0 {
		s.log.WithField("count", count).Info("expired overdue proposals")
	}
}

// Stop halts the loop and waits for an in-flight sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
		s.log.Info("proposal sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
