package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/metrics"
)

// LatencyObserver measures the round trip from the first frame sent after a
// reply to the next reply of the service, per session.
type LatencyObserver struct {
	mu       sync.Mutex
	pending  map[string]time.Time
	log      *slog.Logger
	onSample []func(mode string, d time.Duration)
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{pending: make(map[string]time.Time), log: log}
}

// OnSample registers fn for every measured round trip.
func (o *LatencyObserver) OnSample(fn func(mode string, d time.Duration)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSample = append(o.onSample, fn)
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Tags[metrics.TagSessionID]
	if id == "" {
		return
	}
	mode := ev.Tags[metrics.TagMode]

	o.mu.Lock()
	var (
		d     time.Duration
		ready bool
	)
	switch ev.Name {
	case metrics.EventFrameOut:
		if _, ok := o.pending[id]; !ok {
			o.pending[id] = ev.Time
		}
	case metrics.EventInbound:
		if sent, ok := o.pending[id]; ok {
			d = ev.Time.Sub(sent)
			ready = true
			delete(o.pending, id)
		}
	case metrics.EventSessionStopped:
		delete(o.pending, id)
	}
	hooks := o.onSample
	o.mu.Unlock()

	if !ready {
		return
	}
	o.log.Debug("round_trip_latency",
		"session_id", id,
		"mode", mode,
		"kind", ev.Tags[metrics.TagKind],
		"latency_ms", d.Milliseconds(),
	)
	for _, fn := range hooks {
		fn(mode, d)
	}
}
