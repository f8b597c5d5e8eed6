// Package render turns inbound service messages into user-visible state:
// the prediction overlay, the annotated-image history, the last structured
// payload and audio playback.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/signbridge/pkg/adapters/playback"
	"github.com/harunnryd/signbridge/pkg/codec"
	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/harunnryd/signbridge/pkg/redact"
)

// ChangeKind names what a Change updated.
type ChangeKind string

const (
	ChangeImage       ChangeKind = "image"
	ChangePredictions ChangeKind = "predictions"
	ChangeStructured  ChangeKind = "structured"
	ChangePlayback    ChangeKind = "playback"
	ChangeReset       ChangeKind = "reset"
)

type Change struct {
	Kind ChangeKind
	Err  error
}

type Config struct {
	HistoryCap    int
	DisplayWidth  int
	DisplayHeight int
	// OutputDir, when set, receives each annotated JPEG, the overlay snapshot
	// and the last structured payload.
	OutputDir string
	Player    playback.Player
	Logger    *slog.Logger
}

type Renderer struct {
	cfg     Config
	logger  *slog.Logger
	history *History
	overlay *Overlay

	mu         sync.RWMutex
	canvas     *image.RGBA
	structured *protocol.InboundMessage
	listeners  []func(Change)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	seq    atomic.Int64
}

func New(cfg Config) (*Renderer, error) {
	if cfg.DisplayWidth <= 0 {
		cfg.DisplayWidth = DefaultDisplayWidth
	}
	if cfg.DisplayHeight <= 0 {
		cfg.DisplayHeight = DefaultDisplayHeight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("render output dir: %w", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Renderer{
		cfg:     cfg,
		logger:  cfg.Logger,
		history: NewHistory(cfg.HistoryCap),
		overlay: NewOverlay(),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (r *Renderer) History() *History { return r.history }
func (r *Renderer) Overlay() *Overlay { return r.overlay }

// OnChange registers fn for every state change. Callbacks run synchronously
// on the caller's goroutine, except playback results which arrive from the
// playback goroutine.
func (r *Renderer) OnChange(fn func(Change)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Renderer) notify(c Change) {
	r.mu.RLock()
	listeners := append([]func(Change){}, r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(c)
	}
}

// ShowImage prepends an annotated frame to the history.
func (r *Renderer) ShowImage(data []byte) {
	r.history.Add(Image{Data: data, Received: time.Now()})
	if r.cfg.OutputDir != "" {
		name := fmt.Sprintf("received-%d-%04d.jpg", time.Now().UnixMilli(), r.seq.Add(1))
		r.writeFile(name, data)
	}
	r.notify(Change{Kind: ChangeImage})
}

// ShowPredictions replaces the overlay and redraws it at the display size.
// The labelled canvas is kept for Canvas and, with OutputDir, saved as
// overlay.png.
func (r *Renderer) ShowPredictions(preds []protocol.Prediction) {
	r.overlay.Set(preds)
	canvas := r.redraw()
	if r.cfg.OutputDir != "" {
		f, err := os.Create(filepath.Join(r.cfg.OutputDir, "overlay.png"))
		if err == nil {
			err = png.Encode(f, canvas)
			f.Close()
		}
		if err != nil {
			r.logger.Warn("render_overlay_write_failed", "error", err.Error())
		}
	}
	r.notify(Change{Kind: ChangePredictions})
}

// Canvas is the overlay as last drawn, or nil before the first predictions.
// The image is shared; callers must not modify it.
func (r *Renderer) Canvas() *image.RGBA {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canvas
}

func (r *Renderer) redraw() *image.RGBA {
	canvas := r.overlay.Redraw(r.cfg.DisplayWidth, r.cfg.DisplayHeight)
	r.overlay.Annotate(canvas)
	r.mu.Lock()
	r.canvas = canvas
	r.mu.Unlock()
	return canvas
}

// ShowStructured keeps msg as the last known structured state.
func (r *Renderer) ShowStructured(msg protocol.InboundMessage) {
	r.mu.Lock()
	r.structured = &msg
	r.mu.Unlock()
	if r.cfg.OutputDir != "" {
		if b, err := json.MarshalIndent(redact.Value(msg.Value), "", "  "); err == nil {
			r.writeFile("structured.json", b)
		}
	}
	r.notify(Change{Kind: ChangeStructured})
}

// Structured returns the last structured payload, if any.
func (r *Renderer) Structured() (protocol.InboundMessage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.structured == nil {
		return protocol.InboundMessage{}, false
	}
	return *r.structured, true
}

// Play decodes and plays one clip on its own goroutine. Clips are never queued
// behind each other; overlapping playback is allowed.
func (r *Renderer) Play(data []byte) {
	if r.cfg.Player == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.play(data)
		if err != nil {
			r.logger.Warn("playback_failed", "reason", string(errorsx.Reason(err)), "error", err.Error(), "bytes", len(data))
		}
		r.notify(Change{Kind: ChangePlayback, Err: err})
	}()
}

func (r *Renderer) play(data []byte) error {
	pcm, err := codec.DecodeAudio(data)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPlaybackDecode)
	}
	if err := r.cfg.Player.Play(r.ctx, pcm); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPlaybackDevice)
	}
	return nil
}

// Reset clears the overlay (redrawing an empty canvas), the history and the
// structured state. Clips already playing run to completion.
func (r *Renderer) Reset() {
	r.overlay.Clear()
	r.redraw()
	r.history.Clear()
	r.mu.Lock()
	r.structured = nil
	r.mu.Unlock()
	r.notify(Change{Kind: ChangeReset})
}

// Wait blocks until every playback goroutine has returned.
func (r *Renderer) Wait() { r.wg.Wait() }

// Close aborts playback and waits for it to end.
func (r *Renderer) Close() error {
	r.cancel()
	r.wg.Wait()
	if r.cfg.Player != nil {
		return r.cfg.Player.Close()
	}
	return nil
}

func (r *Renderer) writeFile(name string, data []byte) {
	if err := os.WriteFile(filepath.Join(r.cfg.OutputDir, name), data, 0o644); err != nil {
		r.logger.Warn("render_write_failed", "file", name, "error", err.Error())
	}
}
