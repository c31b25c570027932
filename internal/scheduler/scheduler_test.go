package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/logging"
	"github.com/floodwatch/pipeline/internal/service"
)

type fakeSweeper struct {
	calls  int
	terms  []string
	window time.Duration
	err    error
}

func (f *fakeSweeper) RetainRepresentatives(_ context.Context, terms []string, window time.Duration) (*service.SweepReport, error) {
	f.calls++
	f.terms = terms
	f.window = window
	if f.err != nil {
		return nil, f.err
	}
	return &service.SweepReport{RunID: "run-1"}, nil
}

func testSchedulerConfig() *config.SchedulerConfig {
	cfg := config.Default()
	return &cfg.Scheduler
}

func TestScheduler_StartRejectsInvalidSchedule(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.SweepSchedule = "not a cron expression"

	s := New(cfg, &fakeSweeper{}, logging.NewNop())

	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := New(testSchedulerConfig(), &fakeSweeper{}, logging.NewNop())

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestScheduler_RunSweepPassesConfig(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.SweepTerms = []string{"location", "lang"}
	cfg.SweepWindow = time.Hour
	sweeper := &fakeSweeper{}

	s := New(cfg, sweeper, logging.NewNop())
	s.runSweep(context.Background())

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, []string{"location", "lang"}, sweeper.terms)
	assert.Equal(t, time.Hour, sweeper.window)
}

func TestScheduler_RunSweepSurvivesFailure(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("cluster query failed")}

	s := New(testSchedulerConfig(), sweeper, logging.NewNop())
	s.runSweep(context.Background())

	assert.Equal(t, 1, sweeper.calls)
}
