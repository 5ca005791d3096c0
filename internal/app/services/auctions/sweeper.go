package auctions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/estatehub/marketplace/internal/app/metrics"
	"github.com/estatehub/marketplace/internal/app/system"
	"github.com/estatehub/marketplace/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// DefaultSweepSchedule runs the sweeper every thirty seconds.
const DefaultSweepSchedule = "@every 30s"

// Sweeper drives auction lifecycle transitions on a cron schedule.
type Sweeper struct {
	service  *Service
	log      *logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewSweeper creates a lifecycle-managed auction sweeper.
func NewSweeper(service *Service, schedule string, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("auction-sweeper")
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{service: service, log: log, schedule: schedule}
}

func (s *Sweeper) Name() string { return "auction-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("auction sweep schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("auction sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.running = false
	s.mu.Unlock()

	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("auction sweeper stopped")
	return nil
}

// RunOnce performs a sweep immediately.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	result, err := s.service.Sweep(ctx, s.service.now().UTC())
	metrics.RecordSweep(time.Since(start), err == nil)
	return result, err
}

func (s *Sweeper) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	result, err := s.RunOnce(ctx)
	if err != nil {
		s.log.WithError(err).Warn("auction sweep failed")
	}
	if result.Activated+result.Closed+result.Defaulted > 0 {
		s.log.WithField("activated", result.Activated).
			WithField("closed", result.Closed).
			WithField("defaulted", result.Defaulted).
			Info("auction sweep applied transitions")
	}
}
