// Package scheduler triggers the daily deadline escalation run.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fleetops/maintenance-service/internal/config"
	"github.com/fleetops/maintenance-service/internal/service"
)

// Runner executes one escalation batch.
type Runner interface {
	Run(ctx context.Context) (*service.RunSummary, error)
}

// DeadlineScheduler runs the escalation batch on a cron schedule.
type DeadlineScheduler struct {
	cron    *cron.Cron
	spec    string
	runner  Runner
	logger  *zap.Logger
	mu      sync.Mutex
	entry   cron.EntryID
	running bool
}

// NewDeadlineScheduler builds a scheduler evaluated in the configured timezone.
func NewDeadlineScheduler(cfg config.SchedulerConfig, runner Runner, logger *zap.Logger) *DeadlineScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadlineScheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		spec:   cfg.Spec,
		runner: runner,
		logger: logger,
	}
}

// Start registers the job on first use and starts the cron loop.
// A tick that fires while the previous run is still going is skipped.
func (s *DeadlineScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.entry == 0 {
		entry, err := s.cron.AddFunc(s.spec, s.Trigger)
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
		}
		s.entry = entry
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("deadline scheduler started", zap.String("spec", s.spec), zap.Time("next_run", s.cron.Entry(s.entry).Next))
	return nil
}

// Stop halts scheduling. The returned context is done once a running job finishes.
func (s *DeadlineScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	s.logger.Info("deadline scheduler stopping")
	return s.cron.Stop()
}

// Next reports the next scheduled run, zero when not running.
func (s *DeadlineScheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Trigger runs one batch and logs its outcome.
func (s *DeadlineScheduler) Trigger() {
	summary, err := s.runner.Run(context.Background())
	if err != nil {
		s.logger.Error("scheduled escalation run failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled escalation run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("about_to_expire", summary.AboutToExpire),
		zap.Int("expired", summary.Expired),
		zap.Bool("partial", summary.Partial))
}
