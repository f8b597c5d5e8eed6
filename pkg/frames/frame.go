// Package frames defines the outbound payloads a session puts on the wire.
package frames

import (
	"maps"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/protocol"
)

type Kind string

const (
	KindImage   Kind = "image"
	KindAudio   Kind = "audio"
	KindControl Kind = "control"
)

// Metadata keys.
const (
	MetaSessionID = "session_id"
	MetaMode      = "mode"
	MetaMIME      = "mime"
)

// Frame is one outbound payload. Frames are immutable and sent at most once.
type Frame interface {
	Kind() Kind
	PTS() int64
	Meta() map[string]string
	// Payload is the exact bytes put on the wire.
	Payload() []byte
	// Binary reports whether the payload travels as a binary message.
	Binary() bool
}

// header is what every frame carries besides its payload.
type header struct {
	pts  int64
	data []byte
	meta map[string]string
}

func newHeader(sessionID string, pts int64, data []byte, meta map[string]string, mime string) header {
	m := make(map[string]string, len(meta)+2)
	if sessionID != "" {
		m[MetaSessionID] = sessionID
	}
	if mime != "" {
		m[MetaMIME] = mime
	}
	maps.Copy(m, meta)
	return header{pts: pts, data: data, meta: m}
}

func (h header) PTS() int64              { return h.pts }
func (h header) Payload() []byte         { return h.data }
func (h header) Meta() map[string]string { return maps.Clone(h.meta) }

// ImageFrame is one JPEG camera snapshot.
type ImageFrame struct {
	header
	width, height int
}

func NewImageFrame(sessionID string, pts int64, jpeg []byte, width, height int, meta map[string]string) ImageFrame {
	return ImageFrame{header: newHeader(sessionID, pts, jpeg, meta, "image/jpeg"), width: width, height: height}
}

func (ImageFrame) Kind() Kind     { return KindImage }
func (ImageFrame) Binary() bool   { return true }
func (f ImageFrame) Width() int   { return f.width }
func (f ImageFrame) Height() int  { return f.height }

// AudioFrame is one WAV clip cut from the microphone accumulator.
type AudioFrame struct {
	header
	rate, samples int
}

func NewAudioFrame(sessionID string, pts int64, wav []byte, rate, samples int, meta map[string]string) AudioFrame {
	return AudioFrame{header: newHeader(sessionID, pts, wav, meta, "audio/wav"), rate: rate, samples: samples}
}

func (AudioFrame) Kind() Kind     { return KindAudio }
func (AudioFrame) Binary() bool   { return true }
func (f AudioFrame) Rate() int    { return f.rate }
func (f AudioFrame) Samples() int { return f.samples }

// Duration is the clip length at its sample rate, zero for an unknown rate.
func (f AudioFrame) Duration() time.Duration {
	if f.rate <= 0 {
		return 0
	}
	return time.Duration(f.samples) * time.Second / time.Duration(f.rate)
}

// ControlFrame is a JSON control action, sent as a text message.
type ControlFrame struct {
	header
	action string
}

func NewControlFrame(sessionID string, pts int64, action string, meta map[string]string) ControlFrame {
	return ControlFrame{header: newHeader(sessionID, pts, protocol.Control(action), meta, ""), action: action}
}

func (ControlFrame) Kind() Kind       { return KindControl }
func (ControlFrame) Binary() bool     { return false }
func (f ControlFrame) Action() string { return f.action }

// PTSGen stamps frames with nanoseconds since a session's first frame. Values
// for one session strictly increase even when the clock does not move.
type PTSGen struct {
	mu    sync.Mutex
	clock map[string]*ptsClock
	now   func() time.Time
}

type ptsClock struct {
	origin time.Time
	last   int64
}

func NewPTSGen() *PTSGen {
	return &PTSGen{clock: make(map[string]*ptsClock), now: time.Now}
}

func (g *PTSGen) Next(sessionID string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	c, ok := g.clock[sessionID]
	if !ok {
		g.clock[sessionID] = &ptsClock{origin: now}
		return 0
	}
	c.last = max(now.Sub(c.origin).Nanoseconds(), c.last+1)
	return c.last
}

// Forget restarts the clock for sessionID.
func (g *PTSGen) Forget(sessionID string) {
	g.mu.Lock()
	delete(g.clock, sessionID)
	g.mu.Unlock()
}
