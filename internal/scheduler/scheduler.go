// Package scheduler runs the four repeating tasks (hunter, tracker,
// historian, tuner) under one errgroup. Every sleep is jittered and
// interruptible, so shutdown cancels all tasks mid-sleep and Run returns only
// after each loop has acknowledged the cancellation.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avaldezmx/promopulse/internal/config"
)

// Runner is one pipeline cycle. The scheduler owns timing and failure
// accounting; the runner owns the work.
type Runner interface {
	RunHunterCycle(ctx context.Context) error
	RunTrackerCycle(ctx context.Context) error
	RunHistorianCycle(ctx context.Context) error
}

// Tuner is the periodic recalibration hook.
type Tuner interface {
	RunCycle(ctx context.Context) error
}

type Scheduler struct {
	cfg    *config.Config
	runner Runner
	tuner  Tuner
}

func New(cfg *config.Config, runner Runner, tuner Tuner) *Scheduler {
	return &Scheduler{cfg: cfg, runner: runner, tuner: tuner}
}

// Run blocks until the context is cancelled or a task fails fatally. Only the
// hunter can fail fatally (too many consecutive fetch failures means the site
// layout changed or we are blocked, and a restart under fresh supervision
// beats retrying forever); the other loops log and keep their cadence.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.hunterLoop(ctx) })
	g.Go(func() error { return s.trackerLoop(ctx) })
	g.Go(func() error { return s.historianLoop(ctx) })
	g.Go(func() error { return s.tunerLoop(ctx) })

	slog.Info("Scheduler started",
		"hunter_interval", s.cfg.HunterIntervalMin,
		"tracker_interval", s.cfg.TrackerInterval,
		"tuner_interval", s.cfg.TunerInterval)
	return g.Wait()
}

func (s *Scheduler) hunterLoop(ctx context.Context) error {
	consecutiveFailures := 0
	for {
		err := s.runner.RunHunterCycle(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			consecutiveFailures++
			slog.Error("Hunter cycle failed",
				"error", err, "consecutive", consecutiveFailures, "max", s.cfg.MaxFetchFailures)
			if consecutiveFailures >= s.cfg.MaxFetchFailures {
				return fmt.Errorf("hunter failed %d consecutive cycles: %w", consecutiveFailures, err)
			}
		default:
			consecutiveFailures = 0
		}

		if err := sleepJittered(ctx, s.cfg.HunterIntervalMin, s.cfg.HunterIntervalMax); err != nil {
			return err
		}
	}
}

func (s *Scheduler) trackerLoop(ctx context.Context) error {
	for {
		if err := s.runner.RunTrackerCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Tracker cycle failed", "error", err)
		}
		// Jitter up to a third on top of the base interval.
		if err := sleepJittered(ctx, s.cfg.TrackerInterval, s.cfg.TrackerInterval*4/3); err != nil {
			return err
		}
	}
}

func (s *Scheduler) historianLoop(ctx context.Context) error {
	for {
		if err := sleepJittered(ctx, s.cfg.HistorianIntervalMin, s.cfg.HistorianIntervalMax); err != nil {
			return err
		}
		if err := s.runner.RunHistorianCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Historian cycle failed", "error", err)
		}
	}
}

func (s *Scheduler) tunerLoop(ctx context.Context) error {
	for {
		if err := sleepJittered(ctx, s.cfg.TunerInterval, s.cfg.TunerInterval*7/6); err != nil {
			return err
		}
		if err := s.tuner.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Tuning cycle failed", "error", err)
		}
	}
}

// sleepJittered sleeps a uniform random duration in [min, max], returning
// early with the context error on cancellation.
func sleepJittered(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
