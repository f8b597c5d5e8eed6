package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunDrainsOnCancel(t *testing.T) {
	var drained, stopped bool
	started := make(chan struct{})
	r := NewLifecycleRunner(Options{
		Drainer: DrainFunc(func(ctx context.Context) error {
			drained = true
			return nil
		}),
		Hooks: Hooks{
			OnStart: func(ctx context.Context) error { close(started); return nil },
			OnStop:  func() { stopped = true },
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	<-started
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !drained || !stopped {
		t.Fatalf("drained=%v stopped=%v", drained, stopped)
	}
	if r.State() != StateStopped {
		t.Fatalf("state = %s", r.State())
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second run: %v", err)
	}
}

func TestStartFailureStops(t *testing.T) {
	boom := errors.New("no camera")
	r := NewLifecycleRunner(Options{Hooks: Hooks{OnStart: func(context.Context) error { return boom }}})
	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("run: %v", err)
	}
	if r.State() != StateStopped {
		t.Fatalf("state = %s", r.State())
	}
}

func TestDrainTimeout(t *testing.T) {
	r := NewLifecycleRunner(Options{
		DrainTimeout: 20 * time.Millisecond,
		Drainer: DrainFunc(func(ctx context.Context) error {
			time.Sleep(time.Second)
			return nil
		}),
	})
	if err := r.Stop(); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("stop: %v", err)
	}
	if err := r.Stop(); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("repeat stop: %v", err)
	}
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "mode: video")
	out := buf.String()
	if !strings.Contains(out, "Version: "+Version) || !strings.Contains(out, "mode: video") {
		t.Fatalf("banner = %q", out)
	}
}
