// Package scheduler runs the periodic representative sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/logging"
	"github.com/floodwatch/pipeline/internal/service"
)

// Sweeper runs one representative sweep over a trailing window.
type Sweeper interface {
	RetainRepresentatives(ctx context.Context, terms []string, window time.Duration) (*service.SweepReport, error)
}

// Scheduler triggers representative sweeps on a cron schedule.
type Scheduler struct {
	cfg     *config.SchedulerConfig
	sweeper Sweeper
	logger  logging.Logger
	cron    *cron.Cron
}

// New creates a scheduler. Start must be called to begin sweeping.
func New(cfg *config.SchedulerConfig, sweeper Sweeper, logger logging.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		sweeper: sweeper,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start registers the sweep job and starts the cron loop. The given
// context bounds every sweep run.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() { s.runSweep(ctx) })
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}

	s.cron.Start()
	s.logger.Info("Sweep scheduler started",
		logging.String("schedule", s.cfg.SweepSchedule),
		logging.Duration("window", s.cfg.SweepWindow),
		logging.Strings("terms", s.cfg.SweepTerms),
	)
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Sweep scheduler stopped")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	report, err := s.sweeper.RetainRepresentatives(ctx, s.cfg.SweepTerms, s.cfg.SweepWindow)
	if err != nil {
		s.logger.Error("Scheduled sweep failed", logging.Error(err))
		return
	}
	s.logger.Info("Scheduled sweep finished",
		logging.String("run_id", report.RunID),
		logging.Int("clusters", report.Clusters),
		logging.Int("representatives", report.Representatives),
	)
}
