// Package runner schedules processing cycles: continuous mode re-scans after
// a fixed inter-cycle delay, daily mode runs one cycle at a configured
// time-of-day. Start and Stop are safe to call from the API while a cycle is in
// flight; stop is cooperative and waits for the current candidate to finish.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxlab/curator/internal/config"
	"github.com/fluxlab/curator/internal/events"
	"github.com/fluxlab/curator/internal/pipeline"
)

// Runner owns the background worker goroutine driving the loop.
type Runner struct {
	cfg    *config.Config
	loop   *pipeline.Loop
	hub    *events.Hub
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	now func() time.Time
}

// New creates a stopped runner.
func New(cfg *config.Config, loop *pipeline.Loop, hub *events.Hub, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		loop:   loop,
		hub:    hub,
		logger: logger.With("component", "runner"),
		now:    time.Now,
	}
}

// Start launches the worker. Returns an error if already running or if daily
// mode is configured with an unparseable time-of-day.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	switch r.cfg.Service.Mode {
	case config.ModeDaily:
		hour, minute, err := config.ParseTimeOfDay(r.cfg.Service.DailyAt)
		if err != nil {
			cancel()
			return fmt.Errorf("daily schedule: %w", err)
		}
		r.wg.Add(1)
		go r.dailyLoop(runCtx, hour, minute)
	default:
		r.wg.Add(1)
		go r.continuousLoop(runCtx)
	}

	r.cancel = cancel
	r.running = true
	r.loop.State().SetRunning(true)
	r.logger.Info("worker started", "mode", r.cfg.Service.Mode)
	return nil
}

// Stop signals the worker and waits for it to exit. Bounded by at most one
// candidate's processing time plus one delay.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()

	r.mu.Lock()
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	r.logger.Info("worker stopped")
	r.hub.Publish(events.TypeLoopStopped, nil)
}

// Running reports whether the worker goroutine is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) continuousLoop(ctx context.Context) {
	defer r.wg.Done()
	defer r.markStopped()

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.loop.RunCycle(ctx); err != nil {
			// Scan-level failure. Log and retry after the normal delay; a
			// transient mount outage should not kill the worker.
			if !r.reportCycleFailure(err, "cycle failed") {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.Service.CycleInterval):
		}
	}
}

func (r *Runner) dailyLoop(ctx context.Context, hour, minute int) {
	defer r.wg.Done()
	defer r.markStopped()

	for {
		next := config.NextDailyRun(r.now(), hour, minute)
		wait := next.Sub(r.now())
		r.logger.Info("next scheduled cycle", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if _, err := r.loop.RunCycle(ctx); err != nil {
			if !r.reportCycleFailure(err, "scheduled cycle failed") {
				return
			}
		}
	}
}

// reportCycleFailure alarms observers about a failed cycle and reports whether
// the worker should keep running. Cancellation bubbling out of a cycle is
// normal shutdown: nothing is logged or published, and the worker exits.
func (r *Runner) reportCycleFailure(err error, msg string) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	r.logger.Error(msg, "error", err)
	r.hub.Publish(events.TypeLoopError, map[string]any{"error": err.Error()})
	return true
}

// markStopped keeps Running() and the observable loop state accurate when the
// worker exits on its own (parent context cancelled) rather than through Stop.
func (r *Runner) markStopped() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	r.loop.State().SetRunning(false)
}
