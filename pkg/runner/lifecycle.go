package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("runner already started")
	ErrDrainTimeout   = errors.New("drain timeout")
)

type Options struct {
	Drainer      Drainer
	Hooks        Hooks
	DrainTimeout time.Duration
	// Banner receives the startup banner; nil skips it.
	Banner   io.Writer
	Subtitle string
	Logger   *slog.Logger
}

type LifecycleRunner struct {
	state    atomic.Int32
	opts     Options
	logger   *slog.Logger
	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
	onceStop sync.Once
	stopErr  error
}

func NewLifecycleRunner(opts Options) *LifecycleRunner {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &LifecycleRunner{opts: opts, logger: opts.Logger}
	r.state.Store(int32(StateNew))
	return r
}

// Run starts the lifecycle and blocks until ctx is cancelled or Stop is
// called, then drains. It may only be called once.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if r.opts.Banner != nil {
		PrintBanner(r.opts.Banner, r.opts.Subtitle)
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return r.stop()
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	if r.opts.Hooks.OnStart != nil {
		if err := r.opts.Hooks.OnStart(ctx); err != nil {
			r.logger.Error("runner_start_failed", "error", err.Error())
			_ = r.stop()
			return err
		}
	}
	r.state.Store(int32(StateRunning))
	r.logger.Debug("runner_running")
	<-ctx.Done()
	return r.stop()
}

// Stop cancels a running lifecycle and waits for the drain.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.state.Store(int32(StateDraining))
		if r.opts.Drainer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.DrainTimeout)
			done := make(chan error, 1)
			go func() { done <- r.opts.Drainer.Drain(ctx) }()
			select {
			case err := <-done:
				r.stopErr = err
			case <-ctx.Done():
				r.stopErr = ErrDrainTimeout
			}
			cancel()
			if r.stopErr != nil {
				r.logger.Warn("runner_drain_failed", "error", r.stopErr.Error())
			}
		}
		if r.opts.Hooks.OnStop != nil {
			r.opts.Hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
	})
	return r.stopErr
}
