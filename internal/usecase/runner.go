package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner calls fn on a fixed interval until stopped. Each worker owns its
// own runner so one slow tick never delays another worker.
type Runner struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewRunner(name string, interval time.Duration, logger *slog.Logger, fn func(ctx context.Context)) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Start runs fn once right away and then on every tick. Calling Start on a
// running runner does nothing.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(runCtx, r.done)
	r.logger.Info("worker started", "worker", r.name, "interval", r.interval)
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fn(ctx)
		}
	}
}

// Stop cancels the loop and waits for an in-flight tick to return. It is
// safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	r.logger.Info("worker stopped", "worker", r.name)
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
