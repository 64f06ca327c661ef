// Package supervisor restarts failed catalog passes until one succeeds.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/metrics"
)

// Runner is one unit of supervised work, typically a full catalog pass.
type Runner interface {
	RunPass(ctx context.Context) error
}

// Config controls restart behavior.
type Config struct {
	// Source labels notifications and metrics.
	Source string
	// RestartDelay is the base delay; attempt n sleeps n times this
	// before restarting. Defaults to 5s.
	RestartDelay time.Duration
	// MaxRestarts bounds how many times a failed pass restarts. Zero
	// means restart until the context ends.
	MaxRestarts int
}

// Supervisor runs a pass to completion, restarting on failure with a
// linearly growing delay. Passes resume from persisted state, so a
// restart repeats little work.
type Supervisor struct {
	runner   Runner
	notifier catalog.Notifier
	clock    catalog.Clock
	cfg      Config
	logger   *zap.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// New constructs a Supervisor. notifier may be nil.
func New(runner Runner, notifier catalog.Notifier, clock catalog.Clock, cfg Config, logger *zap.Logger) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		runner:   runner,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(zap.String("source", cfg.Source)),
		sleep:    sleepCtx,
	}
}

// Run executes the pass until it succeeds, the restart budget is spent,
// or the context ends. The error of the last attempt is returned when
// the supervisor gives up.
func (s *Supervisor) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.notify(ctx, fmt.Sprintf("Info: %s: starting catalog pass for %s", s.timestamp(), s.cfg.Source))
		err := s.runner.RunPass(ctx)
		if err == nil {
			metrics.BatchPass(s.cfg.Source, "success")
			s.notify(ctx, fmt.Sprintf("%s: catalog pass for %s completed successfully", s.timestamp(), s.cfg.Source))
			s.logger.Info("pass completed", zap.Int("attempt", attempt))
			return nil
		}

		metrics.BatchPass(s.cfg.Source, "failure")
		s.logger.Error("pass failed", zap.Int("attempt", attempt), zap.Error(err))
		s.notify(ctx, fmt.Sprintf("%s: error during catalog pass for %s.\nError details: %v", s.timestamp(), s.cfg.Source, err))

		if ctx.Err() != nil {
			return err
		}
		if s.cfg.MaxRestarts > 0 && attempt > s.cfg.MaxRestarts {
			s.logger.Error("restart budget spent, giving up", zap.Int("attempts", attempt))
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		delay := time.Duration(attempt) * s.cfg.RestartDelay
		s.notify(ctx, fmt.Sprintf("sleeping for %s before restarting", delay))
		s.sleep(ctx, delay)
	}
}

// notify sends a lifecycle message. Send failures are logged and
// dropped; the notifier is an observer, never a dependency.
func (s *Supervisor) notify(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification send failed", zap.Error(err))
	}
}

func (s *Supervisor) timestamp() string {
	if s.clock == nil {
		return time.Now().UTC().Format("2006-01-02-15-04-05")
	}
	return s.clock.Now().Format("2006-01-02-15-04-05")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
