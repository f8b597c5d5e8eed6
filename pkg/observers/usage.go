package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/metrics"
)

// UsageSummary is the per-session traffic written next to the timeline.
type UsageSummary struct {
	SessionID       string  `json:"session_id"`
	Mode            string  `json:"mode,omitempty"`
	FramesSent      int     `json:"frames_sent"`
	BytesSent       int64   `json:"bytes_sent"`
	AudioSentSec    float64 `json:"audio_sent_seconds"`
	FramesSkipped   int     `json:"frames_skipped"`
	InboundMessages int     `json:"inbound_messages"`
	InboundDropped  int     `json:"inbound_dropped"`
	StartedAtUTC    string  `json:"started_at_utc,omitempty"`
	StoppedAtUTC    string  `json:"stopped_at_utc,omitempty"`
}

// UsageObserver aggregates traffic per session and writes
// <dir>/<session>.usage.json when the session stops.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	if strings.TrimSpace(o.dir) == "" {
		return
	}
	id := ev.Tags[metrics.TagSessionID]
	if id == "" {
		return
	}
	o.mu.Lock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{SessionID: id, Mode: ev.Tags[metrics.TagMode]}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventSessionStarted:
		stat.StartedAtUTC = ev.Time.UTC().Format(time.RFC3339)
	case metrics.EventFrameOut:
		stat.FramesSent++
		stat.BytesSent += int64(intField(ev.Fields, "bytes"))
		stat.AudioSentSec += floatField(ev.Fields, "duration_sec")
	case metrics.EventFrameSkipped:
		stat.FramesSkipped++
	case metrics.EventInbound:
		stat.InboundMessages++
	case metrics.EventInboundDropped:
		stat.InboundDropped++
	}
	var done *UsageSummary
	if ev.Name == metrics.EventSessionStopped {
		stat.StoppedAtUTC = ev.Time.UTC().Format(time.RFC3339)
		done = stat
		delete(o.stats, id)
	}
	o.mu.Unlock()
	if done != nil {
		_ = o.write(done)
	}
}

// Close writes every summary still open.
func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	pending := o.stats
	o.stats = make(map[string]*UsageSummary)
	o.mu.Unlock()
	var errOut error
	for _, stat := range pending {
		errOut = errors.Join(errOut, o.write(stat))
	}
	return errOut
}

func (o *UsageObserver) write(stat *UsageSummary) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(o.dir, fileStem(stat.SessionID)+".usage.json"), b, 0o644)
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatField(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

var _ metrics.Observer = (*UsageObserver)(nil)
