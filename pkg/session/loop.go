package session

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/harunnryd/signbridge/pkg/codec"
	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/harunnryd/signbridge/pkg/frames"
	"github.com/harunnryd/signbridge/pkg/metrics"
	"github.com/harunnryd/signbridge/pkg/priority"
	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/harunnryd/signbridge/pkg/redact"
	"github.com/harunnryd/signbridge/pkg/transports"
)

// loopEvent is anything the session loop handles. Each carries the
// generation it was produced for; events from an earlier run are discarded.
type loopEvent interface{ generation() uint64 }

// Ticks and encode results ride the high lane; inbound frames the low lane.
type (
	frameTick struct{ gen uint64 }
	flushTick struct{ gen uint64 }
	inbound   struct {
		gen uint64
		msg transports.Message
	}
	encoded struct {
		gen    uint64
		data   []byte
		width  int
		height int
		err    error
	}
)

func (e frameTick) generation() uint64 { return e.gen }
func (e flushTick) generation() uint64 { return e.gen }
func (e inbound) generation() uint64   { return e.gen }
func (e encoded) generation() uint64   { return e.gen }

func (c *Controller) loop(ctx context.Context, q *priority.Queue[loopEvent]) {
	for {
		ev, err := q.Pop(ctx)
		if err != nil {
			return
		}
		c.mu.Lock()
		c.handleLocked(ctx, q, ev)
		c.unlock()
	}
}

func (c *Controller) handleLocked(ctx context.Context, q *priority.Queue[loopEvent], ev loopEvent) {
	if c.fsm.State() != StateStreaming || ev.generation() != c.gen {
		return
	}
	switch e := ev.(type) {
	case frameTick:
		c.captureFrameLocked(ctx, q)
	case encoded:
		c.sendEncodedLocked(e)
	case flushTick:
		c.flushLocked()
	case inbound:
		c.dispatchLocked(e.msg)
	}
}

// captureFrameLocked samples the camera and compresses the frame off-loop.
// While an encode is pending further ticks are skipped.
func (c *Controller) captureFrameLocked(ctx context.Context, q *priority.Queue[loopEvent]) {
	if !c.openLocked() {
		c.skipLocked("not_open")
		return
	}
	if c.encoding {
		c.skipLocked("encode_pending")
		return
	}
	img, ok := c.video.Latest()
	if !ok {
		img = blankFrame(c.cfg.DefaultWidth, c.cfg.DefaultHeight)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		w, h = c.cfg.DefaultWidth, c.cfg.DefaultHeight
	}
	c.encoding = true
	gen := c.gen
	enc := c.encoder
	go func() {
		data, err := enc.Encode(codec.Rasterize(img, w, h))
		_ = q.Push(ctx, priority.High, encoded{gen: gen, data: data, width: w, height: h, err: err})
	}()
}

func (c *Controller) sendEncodedLocked(e encoded) {
	c.encoding = false
	if e.err != nil {
		c.logger.Warn("frame_encode_failed", "session_id", c.sessionID, "error", e.err.Error())
		c.skipLocked(string(errorsx.ReasonEncodeImage))
		return
	}
	if !c.openLocked() {
		c.skipLocked("not_open")
		return
	}
	f := frames.NewImageFrame(c.sessionID, c.pts.Next(c.sessionID), e.data, e.width, e.height, c.meta())
	c.sendLocked(f, string(frames.KindImage))
}

// flushLocked sends the accumulated microphone audio as one WAV clip. While
// the connection is not open the buffer is kept for the next flush.
func (c *Controller) flushLocked() {
	if c.acc.Total() == 0 {
		return
	}
	if !c.openLocked() {
		c.logger.Debug("flush_deferred", "session_id", c.sessionID, "samples", c.acc.Total())
		return
	}
	chunks, total := c.acc.Drain()
	wav := codec.EncodeWAV(codec.MergeFloat32(chunks, total), c.rate)
	f := frames.NewAudioFrame(c.sessionID, c.pts.Next(c.sessionID), wav, c.rate, total, c.meta())
	c.sendLocked(f, string(frames.KindAudio))
}

// dispatchLocked routes one inbound frame. Undecodable structured payloads are
// dropped and counted; the session keeps running.
func (c *Controller) dispatchLocked(m transports.Message) {
	msg, err := protocol.Classify(c.cfg.Mode, m.Binary, m.Data)
	if err != nil {
		c.stats.InboundDropped++
		ev := c.event(metrics.EventInboundDropped).With(metrics.TagReason, string(errorsx.Reason(err)))
		ev.Fields = map[string]any{"bytes": len(m.Data)}
		c.record(ev)
		c.logger.Debug("inbound_dropped", "session_id", c.sessionID, "bytes", len(m.Data), "error", err.Error())
		return
	}
	c.stats.Inbound++

	kind := msg.Kind.String()
	switch msg.Kind {
	case protocol.KindBinaryImage:
		c.cfg.Renderer.ShowImage(msg.Data)
	case protocol.KindBinaryAudio:
		c.cfg.Renderer.Play(msg.Data)
	case protocol.KindStructured:
		if c.cfg.Mode == protocol.ModeVideo {
			if !msg.HasPredictions {
				kind = "ignored"
				break
			}
			kind = "predictions"
			c.cfg.Renderer.ShowPredictions(msg.Predictions)
			break
		}
		c.cfg.Renderer.ShowStructured(msg)
		c.logger.Debug("structured_received", "session_id", c.sessionID, "payload", redact.Value(msg.Value))
	}
	ev := c.event(metrics.EventInbound).With(metrics.TagKind, kind)
	ev.Time = receivedAt(m)
	ev.Fields = map[string]any{"bytes": len(m.Data)}
	c.record(ev)
}

func receivedAt(m transports.Message) time.Time {
	if m.Received.IsZero() {
		return time.Now()
	}
	return m.Received
}

func blankFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

// ticker calls fn every interval on its own goroutine. Stop joins it.
type ticker struct {
	stop chan struct{}
	done chan struct{}
}

func startTicker(interval time.Duration, fn func()) *ticker {
	t := &ticker{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				fn()
			}
		}
	}()
	return t
}

func (t *ticker) Stop() {
	close(t.stop)
	<-t.done
}
