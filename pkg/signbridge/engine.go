// Package signbridge wires configuration, devices, transport, rendering and
// observability into ready-to-run translation sessions.
package signbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/adapters/playback"
	"github.com/harunnryd/signbridge/pkg/logging"
	"github.com/harunnryd/signbridge/pkg/metrics"
	"github.com/harunnryd/signbridge/pkg/observers"
	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/harunnryd/signbridge/pkg/redact"
	"github.com/harunnryd/signbridge/pkg/render"
	"github.com/harunnryd/signbridge/pkg/session"
	"github.com/harunnryd/signbridge/pkg/transports"
	"github.com/harunnryd/signbridge/pkg/transports/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	observerBuffer    = 2048
	retentionInterval = time.Hour
)

type EngineOptions struct {
	Config  Config
	Devices *DeviceRegistry
	// Dialer defaults to the websocket dialer built from the transport section.
	Dialer transports.Dialer
	Logger *slog.Logger
	// Observers receive every session event next to the built-in ones.
	Observers []metrics.Observer
}

// Engine owns what sessions share: the renderer and its player, the dialer and
// the observer chain. Sessions are created per mode and at most one per mode.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	devices  *DeviceRegistry
	dialer   transports.Dialer
	player   playback.Player
	renderer *render.Renderer

	asyncObs *metrics.AsyncObserver
	timeline *observers.TimelineObserver
	usage    *observers.UsageObserver
	prom     *observers.PrometheusObserver
	events   io.Closer

	mu       sync.Mutex
	sessions map[protocol.Mode]*session.Controller
	closed   bool
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)
	devices := opts.Devices
	if devices == nil {
		devices = NewDeviceRegistry()
	}

	logger.Info("signbridge_init",
		"video_endpoint", cfg.Endpoints.Video,
		"audio_endpoint", cfg.Endpoints.Audio,
		"camera", cfg.Devices.Camera.Provider,
		"microphone", cfg.Devices.Microphone.Provider,
		"speaker", cfg.Devices.Speaker.Provider,
	)

	env := DeviceEnv{Logger: logging.NewComponentLogger(logger, "device"), SampleRate: cfg.Audio.SampleRate}
	player, err := devices.BuildSpeaker(cfg.Devices.Speaker, env)
	if err != nil {
		return nil, fmt.Errorf("speaker: %w", err)
	}
	renderer, err := render.New(render.Config{
		HistoryCap:    cfg.Render.HistoryCap,
		DisplayWidth:  cfg.Render.DisplayWidth,
		DisplayHeight: cfg.Render.DisplayHeight,
		OutputDir:     cfg.Render.OutputDir,
		Player:        player,
		Logger:        logging.NewComponentLogger(logger, "render"),
	})
	if err != nil {
		_ = player.Close()
		return nil, err
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.NewDialer(websocket.Config{
			HandshakeTimeout: time.Duration(cfg.Transport.HandshakeTimeoutMS) * time.Millisecond,
			WriteBuffer:      cfg.Transport.WriteBuffer,
			WriteTimeout:     time.Duration(cfg.Transport.WriteTimeoutMS) * time.Millisecond,
			Logger:           logging.NewComponentLogger(logger, "transport"),
		})
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		devices:  devices,
		dialer:   dialer,
		player:   player,
		renderer: renderer,
		sessions: make(map[protocol.Mode]*session.Controller),
	}
	if err := e.buildObservers(opts.Observers); err != nil {
		_ = renderer.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) buildObservers(extra []metrics.Observer) error {
	e.prom = observers.NewPrometheusObserver()
	latency := observers.NewLatencyObserver(logging.NewComponentLogger(e.logger, "latency"))
	latency.OnSample(e.prom.ObserveLatency)
	logObs := metrics.NewSamplingObserver(
		observers.NewLoggerObserver(logging.NewComponentLogger(e.logger, "metrics")),
		e.cfg.Observability.LogSampleRate,
	)
	multi := observers.NewMultiObserver(logObs, latency, e.prom)
	if dir := strings.TrimSpace(e.cfg.Observability.ArtifactsDir); dir != "" {
		if days := e.cfg.Observability.RetentionDays; days > 0 {
			if n, err := observers.PurgeArtifacts(dir, retentionAge(days)); err != nil {
				e.logger.Warn("artifact_purge_failed", "dir", dir, "error", err.Error())
			} else if n > 0 {
				e.logger.Info("artifacts_purged", "dir", dir, "count", n)
			}
		}
		e.timeline = observers.NewTimelineObserver(dir)
		e.usage = observers.NewUsageObserver(dir)
		multi.Add(e.timeline)
		multi.Add(e.usage)
	}
	if path := strings.TrimSpace(e.cfg.Observability.EventsPath); path != "" {
		w, err := openEvents(path)
		if err != nil {
			return fmt.Errorf("events file: %w", err)
		}
		if c, ok := w.(io.Closer); ok && w != io.Writer(os.Stderr) {
			e.events = c
		}
		multi.Add(metrics.NewJSONLObserver(w))
	}
	for _, obs := range extra {
		multi.Add(obs)
	}
	e.asyncObs = metrics.NewAsyncObserver(multi, observerBuffer)
	return nil
}

func openEvents(path string) (io.Writer, error) {
	if path == "-" {
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func retentionAge(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func (e *Engine) Config() Config                            { return e.cfg }
func (e *Engine) Renderer() *render.Renderer                { return e.renderer }
func (e *Engine) Prometheus() *observers.PrometheusObserver { return e.prom }

// NewSession builds the controller for mode, acquiring nothing yet. onError
// receives failures that ended a running session. Asking twice for the same
// mode returns the existing controller.
func (e *Engine) NewSession(mode protocol.Mode, onError func(error)) (*session.Controller, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("engine closed")
	}
	if c := e.sessions[mode]; c != nil {
		return c, nil
	}

	env := DeviceEnv{Logger: logging.NewComponentLogger(e.logger, "device"), SampleRate: e.cfg.Audio.SampleRate}
	cfg := session.Config{
		Mode:              mode,
		URL:               e.cfg.Endpoint(mode),
		Dialer:            e.dialer,
		Renderer:          e.renderer,
		FrameInterval:     e.cfg.FrameInterval(),
		FlushInterval:     e.cfg.FlushInterval(),
		Quality:           e.cfg.Video.Quality,
		DefaultWidth:      e.cfg.Video.DefaultWidth,
		DefaultHeight:     e.cfg.Video.DefaultHeight,
		DefaultSampleRate: e.cfg.Audio.SampleRate,
		Observer:          e.asyncObs,
		Logger:            logging.NewComponentLogger(e.logger, "session"),
		OnError:           onError,
	}
	var err error
	switch mode {
	case protocol.ModeVideo:
		cfg.Camera, err = e.devices.BuildCamera(e.cfg.Devices.Camera, env)
	case protocol.ModeAudio:
		cfg.Microphone, err = e.devices.BuildMicrophone(e.cfg.Devices.Microphone, env)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	c, err := session.New(cfg)
	if err != nil {
		return nil, err
	}
	e.sessions[mode] = c
	return c, nil
}

// Run serves the metrics exporter and the artifact retention sweep until ctx
// ends. With neither configured it just waits.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if addr := strings.TrimSpace(e.cfg.Observability.MetricsAddr); addr != "" {
		exporter := observers.NewExporter(addr, e.prom.Registry())
		g.Go(func() error {
			e.logger.Info("metrics_exporter_listening", "addr", addr)
			return exporter.Run(ctx)
		})
	}
	if dir := strings.TrimSpace(e.cfg.Observability.ArtifactsDir); dir != "" && e.cfg.Observability.RetentionDays > 0 {
		g.Go(func() error {
			observers.RunRetention(ctx, dir, retentionAge(e.cfg.Observability.RetentionDays), retentionInterval, e.logger)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// Drain stops every session and releases shared resources; it satisfies
// runner.Drainer.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- e.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every session, waits for playback, flushes the observers and
// closes the artifact files. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	sessions := make([]*session.Controller, 0, len(e.sessions))
	for _, c := range e.sessions {
		sessions = append(sessions, c)
	}
	e.mu.Unlock()

	var errs []error
	for _, c := range sessions {
		errs = append(errs, c.Stop())
	}
	errs = append(errs, e.renderer.Close())
	e.asyncObs.Close()
	if e.timeline != nil {
		errs = append(errs, e.timeline.Close())
	}
	if e.usage != nil {
		errs = append(errs, e.usage.Close())
	}
	if e.events != nil {
		errs = append(errs, e.events.Close())
	}
	e.logger.Info("signbridge_closed")
	return errors.Join(errs...)
}
