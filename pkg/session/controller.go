// Package session runs one capture-and-translate session against the
// inference service: it owns the device handle, the connection and the
// sampler timers, and routes replies to the renderer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/signbridge/pkg/adapters/capture"
	"github.com/harunnryd/signbridge/pkg/codec"
	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/harunnryd/signbridge/pkg/frames"
	"github.com/harunnryd/signbridge/pkg/metrics"
	"github.com/harunnryd/signbridge/pkg/priority"
	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/harunnryd/signbridge/pkg/render"
	"github.com/harunnryd/signbridge/pkg/transports"
)

const (
	DefaultFrameInterval = 150 * time.Millisecond
	DefaultFlushInterval = 2000 * time.Millisecond
	DefaultSampleRate    = 44100
	DefaultFrameWidth    = 640
	DefaultFrameHeight   = 480
)

type Config struct {
	Mode   protocol.Mode
	URL    string
	Dialer transports.Dialer

	// Camera is required in video mode, Microphone in audio mode.
	Camera     capture.VideoSource
	Microphone capture.AudioSource
	Renderer   *render.Renderer

	FrameInterval     time.Duration
	FlushInterval     time.Duration
	Quality           float64
	DefaultWidth      int
	DefaultHeight     int
	DefaultSampleRate int

	Observer metrics.Observer
	Logger   *slog.Logger

	// OnError receives failures that ended a running session. The session has
	// already stopped itself when it is called.
	OnError func(error)
}

func (c Config) withDefaults() Config {
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Quality <= 0 {
		c.Quality = codec.DefaultJPEGQuality
	}
	if c.DefaultWidth <= 0 {
		c.DefaultWidth = DefaultFrameWidth
	}
	if c.DefaultHeight <= 0 {
		c.DefaultHeight = DefaultFrameHeight
	}
	if c.DefaultSampleRate <= 0 {
		c.DefaultSampleRate = DefaultSampleRate
	}
	if c.Observer == nil {
		c.Observer = metrics.NoopObserver{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) validate() error {
	switch c.Mode {
	case protocol.ModeVideo:
		if c.Camera == nil {
			return errors.New("video session requires a camera")
		}
	case protocol.ModeAudio:
		if c.Microphone == nil {
			return errors.New("audio session requires a microphone")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.URL == "" {
		return errors.New("endpoint url is required")
	}
	if c.Dialer == nil {
		return errors.New("dialer is required")
	}
	if c.Renderer == nil {
		return errors.New("renderer is required")
	}
	return nil
}

// Stats counts what a controller did across all of its sessions.
type Stats struct {
	FramesSent     int64
	FramesSkipped  int64
	Inbound        int64
	InboundDropped int64
	QueueDropped   int64
}

// Controller drives one session at a time. All handlers run under mu, so no
// two of them ever overlap; every handler first compares the event's
// generation with the current one and drops stale work.
type Controller struct {
	cfg     Config
	logger  *slog.Logger
	fsm     *stateMachine
	encoder codec.ImageEncoder
	pts     *frames.PTSGen

	mu      sync.Mutex
	pending []func()
	gen     uint64

	sessionID string
	status    string
	queue     *priority.Queue[loopEvent]
	loopStop  context.CancelFunc
	dialStop  context.CancelFunc
	conn      transports.Conn
	video     capture.VideoStream
	audio     capture.AudioStream
	rate      int
	acc       *Accumulator
	timer     *ticker
	encoding  bool
	stats     Stats
}

func New(cfg Config) (*Controller, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:     cfg,
		logger:  cfg.Logger.With("mode", string(cfg.Mode)),
		fsm:     newStateMachine(),
		encoder: codec.ImageEncoder{Quality: cfg.Quality},
		pts:     frames.NewPTSGen(),
		status:  StatusIdle,
		acc:     NewAccumulator(),
	}, nil
}

func (c *Controller) Mode() protocol.Mode { return c.cfg.Mode }

func (c *Controller) State() State { return c.fsm.State() }

// OnStateChange registers fn for lifecycle transitions. Transitions happen
// under the controller lock; fn runs once it is released.
func (c *Controller) OnStateChange(fn func(StateChange)) {
	if fn == nil {
		return
	}
	c.fsm.AddListener(func(ev StateChange) {
		c.after(func() { fn(ev) })
	})
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	if c.queue != nil {
		st.QueueDropped += c.queue.Stats().Dropped
	}
	return st
}

// SocketState reports the connection state of the running session. Before the
// dial completes it is Connecting; with no session it is Closed.
func (c *Controller) SocketState() transports.SocketState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fsm.State() != StateStreaming {
		return transports.Closed
	}
	if c.conn == nil {
		return transports.Connecting
	}
	return c.conn.State()
}

// unlock releases mu and then runs callbacks queued with after.
func (c *Controller) unlock() {
	fns := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *Controller) after(fn func()) {
	c.pending = append(c.pending, fn)
}

// Start acquires the device and opens the connection. It is a no-op unless
// the controller is idle. Device failures are returned as errorsx.DeviceError
// and leave the controller idle. A Stop that lands while the device is being
// acquired wins: the device is released and Start returns nil.
func (c *Controller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.fsm.State() != StateIdle {
		c.unlock()
		return nil
	}
	if err := c.fsm.Transition(StateAcquiring, "start"); err != nil {
		c.unlock()
		return err
	}
	c.gen++
	gen := c.gen
	q := priority.New[loopEvent](64, 1024)
	c.queue = q
	c.unlock()

	video, audio, acc, rate, err := c.acquire(ctx)

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.fsm.State() != StateAcquiring {
		// The buffer belongs to this attempt only; a newer session has its own.
		release(video, audio)
		return nil
	}
	if err != nil {
		derr := err
		if !errorsx.IsDeviceError(err) {
			derr = errorsx.NewDeviceError(c.deviceName(), err)
		}
		c.gen++
		c.queue = nil
		c.status = c.deviceErrorStatus()
		_ = c.fsm.Transition(StateIdle, "device_error")
		c.record(metrics.NewEvent(metrics.EventDeviceError, "", string(c.cfg.Mode)).
			With(metrics.TagReason, string(errorsx.Reason(derr))))
		c.logger.Warn("device_acquire_failed", "device", c.deviceName(), "reason", string(errorsx.Reason(derr)), "error", derr.Error())
		return derr
	}

	c.sessionID = uuid.NewString()
	c.video, c.audio = video, audio
	if acc != nil {
		c.acc = acc
	}
	c.rate = rate
	c.encoding = false

	loopCtx, loopStop := context.WithCancel(context.Background())
	dialCtx, dialStop := context.WithCancel(context.WithoutCancel(ctx))
	c.loopStop, c.dialStop = loopStop, dialStop
	go c.loop(loopCtx, q)

	if c.cfg.Mode == protocol.ModeAudio {
		c.timer = startTicker(c.cfg.FlushInterval, func() {
			q.Offer(priority.High, flushTick{gen: gen})
		})
	}
	go c.dial(dialCtx, gen)

	c.status = StatusStreaming
	_ = c.fsm.Transition(StateStreaming, "device_acquired")
	c.record(c.event(metrics.EventSessionStarted))
	c.logger.Info("session_started", "session_id", c.sessionID, "url", c.cfg.URL, "device", c.deviceName())
	return nil
}

// acquire opens the mode's device. In audio mode the microphone feeds a fresh
// accumulator that becomes the session buffer only if the start commits.
func (c *Controller) acquire(ctx context.Context) (capture.VideoStream, capture.AudioStream, *Accumulator, int, error) {
	if c.cfg.Mode == protocol.ModeVideo {
		vs, err := c.cfg.Camera.Open(ctx)
		return vs, nil, nil, 0, err
	}
	acc := NewAccumulator()
	as, err := c.cfg.Microphone.Open(ctx, func(block []float32) {
		cp := make([]float32, len(block))
		copy(cp, block)
		acc.Append(cp)
	})
	if err != nil {
		return nil, nil, nil, 0, err
	}
	rate := as.SampleRate()
	if rate <= 0 {
		rate = c.cfg.DefaultSampleRate
	}
	return nil, as, acc, rate, nil
}

func (c *Controller) dial(ctx context.Context, gen uint64) {
	conn, err := c.cfg.Dialer.Dial(ctx, c.cfg.URL)

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.fsm.State() != StateStreaming {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		if !errorsx.IsTransportError(err) {
			err = errorsx.NewTransportError(c.cfg.URL, "dial", err, errorsx.ReasonTransportConnect)
		}
		c.failLocked(err)
		return
	}
	c.conn = conn
	q := c.queue
	go pump(conn, q, gen)
	go c.watch(conn, gen)
	if c.cfg.Mode == protocol.ModeVideo {
		c.timer = startTicker(c.cfg.FrameInterval, func() {
			q.Offer(priority.High, frameTick{gen: gen})
		})
	}
	c.record(c.event(metrics.EventTransportOpen))
	c.logger.Info("transport_open", "session_id", c.sessionID, "url", conn.URL())
}

// pump forwards inbound frames into the session queue until the connection ends.
func pump(conn transports.Conn, q *priority.Queue[loopEvent], gen uint64) {
	for msg := range conn.Recv() {
		q.Offer(priority.Low, inbound{gen: gen, msg: msg})
	}
}

func (c *Controller) watch(conn transports.Conn, gen uint64) {
	<-conn.Done()
	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.conn != conn {
		return
	}
	err := conn.Err()
	if err == nil {
		err = errorsx.NewTransportError(c.cfg.URL, "read", errors.New("closed by peer"), errorsx.ReasonTransportClosed)
	}
	c.failLocked(err)
}

// failLocked ends the running session after a transport failure and reports it.
func (c *Controller) failLocked(err error) {
	c.record(c.event(metrics.EventTransportError).With(metrics.TagReason, string(errorsx.Reason(err))))
	c.logger.Warn("transport_error", "session_id", c.sessionID, "reason", string(errorsx.Reason(err)), "error", err.Error())
	c.stopLocked("transport_error")
	if fn := c.cfg.OnError; fn != nil {
		c.after(func() { fn(err) })
	}
}

// Stop ends the session. It is idempotent and returns once every owned
// resource is released.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.unlock()
	c.stopLocked("stop")
	return nil
}

func (c *Controller) stopLocked(reason string) {
	switch c.fsm.State() {
	case StateIdle, StateStopping:
		return
	case StateAcquiring:
		c.gen++
		c.queue = nil
		_ = c.fsm.Transition(StateIdle, reason)
		return
	}
	_ = c.fsm.Transition(StateStopping, reason)

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cfg.Mode == protocol.ModeAudio {
		c.flushLocked()
	}
	c.gen++
	if c.dialStop != nil {
		c.dialStop()
		c.dialStop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	release(c.video, c.audio)
	c.video, c.audio = nil, nil
	if c.loopStop != nil {
		c.loopStop()
		c.loopStop = nil
	}
	c.queue = nil
	c.acc.Reset()
	c.encoding = false
	c.after(c.cfg.Renderer.Reset)

	c.record(c.event(metrics.EventSessionStopped).With(metrics.TagReason, reason))
	c.logger.Info("session_stopped", "session_id", c.sessionID, "reason", reason)
	c.pts.Forget(c.sessionID)
	c.status = StatusStopped
	_ = c.fsm.Transition(StateIdle, reason)
}

// SendTranslation asks the service to emit the translation collected so far.
// It is only meaningful in video mode and is dropped unless the connection is open.
func (c *Controller) SendTranslation() error {
	c.mu.Lock()
	defer c.unlock()
	if c.cfg.Mode != protocol.ModeVideo || c.fsm.State() != StateStreaming || !c.openLocked() {
		c.logger.Debug("send_translation_dropped", "state", c.fsm.State().String())
		return nil
	}
	f := frames.NewControlFrame(c.sessionID, c.pts.Next(c.sessionID), protocol.ActionSendTranslation, c.meta())
	c.sendLocked(f, "control")
	return nil
}

func (c *Controller) openLocked() bool {
	return c.conn != nil && c.conn.State() == transports.Open
}

func (c *Controller) sendLocked(f frames.Frame, kind string) bool {
	if err := c.conn.Send(f); err != nil {
		c.skipLocked(skipReason(err))
		return false
	}
	c.stats.FramesSent++
	ev := c.event(metrics.EventFrameOut).With(metrics.TagKind, kind)
	ev.Fields = map[string]any{"bytes": len(f.Payload())}
	if af, ok := f.(frames.AudioFrame); ok {
		ev.Fields["duration_sec"] = af.Duration().Seconds()
	}
	c.record(ev)
	return true
}

func (c *Controller) skipLocked(reason string) {
	c.stats.FramesSkipped++
	c.record(c.event(metrics.EventFrameSkipped).With(metrics.TagReason, reason))
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, transports.ErrNotOpen):
		return "not_open"
	case errors.Is(err, transports.ErrSendQueueFull):
		return "send_queue_full"
	default:
		return "send_failed"
	}
}

func (c *Controller) event(name string) metrics.MetricsEvent {
	return metrics.NewEvent(name, c.sessionID, string(c.cfg.Mode))
}

func (c *Controller) record(ev metrics.MetricsEvent) {
	c.cfg.Observer.RecordEvent(ev)
}

func (c *Controller) meta() map[string]string {
	return map[string]string{frames.MetaMode: string(c.cfg.Mode)}
}

func (c *Controller) deviceName() string {
	if c.cfg.Mode == protocol.ModeVideo {
		return c.cfg.Camera.Name()
	}
	return c.cfg.Microphone.Name()
}

func release(video capture.VideoStream, audio capture.AudioStream) {
	if video != nil {
		_ = video.Close()
	}
	if audio != nil {
		_ = audio.Close()
	}
}
