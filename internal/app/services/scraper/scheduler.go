package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/estatehub/marketplace/internal/app/system"
	"github.com/estatehub/marketplace/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// DefaultSchedule runs the scraper hourly.
const DefaultSchedule = "@every 1h"

// Scheduler triggers runner passes on a cron schedule.
type Scheduler struct {
	runner   *Runner
	schedule string
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a lifecycle-managed scraper schedule.
func NewScheduler(runner *Runner, schedule string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("scraper")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{runner: runner, schedule: schedule, timeout: 5 * time.Minute, log: log}
}

func (s *Scheduler) Name() string { return "scraper" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("scraper schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("scraper scheduled")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
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
	s.log.Info("scraper stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.runner.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		s.log.WithError(err).Warn("scheduled scrape failed")
	}
}
