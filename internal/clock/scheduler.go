package clock

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// JobFunc is a unit of scheduled work. It must check ctx for cancellation
// between sub-steps (spec §5 cancellation model).
type JobFunc func(ctx context.Context) error

// Options configures a scheduled job.
type Options struct {
	// Jitter adds a random delay in [0, Jitter) before each tick's job run,
	// to avoid thundering-herd behavior across many scheduled loops.
	Jitter time.Duration
	// MaxParallel caps the number of concurrent job executions; additional
	// ticks are skipped (logged) while MaxParallel executions are in flight.
	// Zero means 1 (the default — jobs never overlap themselves).
	MaxParallel int
}

// Every runs job on every tick of interval (per the given Clock) until ctx
// is cancelled. It returns immediately; the loop runs in a background
// goroutine. This is the single implementation every background loop in
// §4.C/D/E is built on (the idle/cost loops, benchmark scheduler, swarm
// health/rebalance loops).
func Every(ctx context.Context, clk Clock, interval time.Duration, job JobFunc, opts Options, logger *slog.Logger) {
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)

	ticker := clk.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				if opts.Jitter > 0 {
					select {
					case <-clk.After(time.Duration(rand.Int63n(int64(opts.Jitter)))):
					case <-ctx.Done():
						return
					}
				}
				select {
				case sem <- struct{}{}:
				default:
					if logger != nil {
						logger.Warn("scheduler: skipping tick, previous run still in flight")
					}
					continue
				}
				go func() {
					defer func() { <-sem }()
					if err := job(ctx); err != nil && logger != nil {
						logger.Error("scheduler: job failed", "error", err)
					}
				}()
			}
		}
	}()
}
