// Package runner drives the process lifecycle of the client: banner, start
// hook, wait for cancellation, bounded drain, stop hook.
package runner

import (
	"bytes"
	"context"
	"io"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks run around the lifecycle. OnStart failing aborts Run.
type Hooks struct {
	OnStart func(ctx context.Context) error
	OnStop  func()
}

// Drainer releases what the process holds before it exits.
type Drainer interface {
	Drain(ctx context.Context) error
}

// DrainFunc adapts a function to Drainer.
type DrainFunc func(ctx context.Context) error

func (f DrainFunc) Drain(ctx context.Context) error { return f(ctx) }

// Version is stamped at build time with -ldflags "-X .../runner.Version=...".
var Version = "dev"

// PrintBanner writes the startup banner; subtitle is shown under the version.
func PrintBanner(w io.Writer, subtitle string) {
	tpl := "{{ .Title \"SIGNBRIDGE\" \"\" 0 }}\nVersion: " + Version + "\n"
	if subtitle != "" {
		tpl += subtitle + "\n"
	}
	banner.Init(w, true, false, bytes.NewBufferString(tpl))
}
