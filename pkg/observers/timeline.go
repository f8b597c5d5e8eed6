package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/harunnryd/signbridge/pkg/metrics"
	"github.com/harunnryd/signbridge/pkg/redact"
)

// TimelineObserver keeps a JSONL trace per session in dir, named after the
// session id. A trace is closed on session_stopped; a later event with the same
// id appends to the same file.
type TimelineObserver struct {
	dir string

	mu     sync.Mutex
	traces map[string]*trace
}

type trace struct {
	file    *os.File
	enc     *json.Encoder
	started time.Time
}

type traceLine struct {
	Time      time.Time         `json:"time"`
	ElapsedMS int64             `json:"elapsed_ms"`
	Event     string            `json:"event"`
	SessionID string            `json:"session_id"`
	Mode      string            `json:"mode,omitempty"`
	Value     float64           `json:"value,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Fields    map[string]any    `json:"fields,omitempty"`
}

func NewTimelineObserver(dir string) *TimelineObserver {
	return &TimelineObserver{dir: strings.TrimSpace(dir), traces: make(map[string]*trace)}
}

func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	name := fileStem(ev.Tags[metrics.TagSessionID])
	if name == "" || o.dir == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	tr, err := o.open(name, ev.Time)
	if err != nil {
		return
	}
	_ = tr.enc.Encode(traceLine{
		Time:      ev.Time.UTC(),
		ElapsedMS: ev.Time.Sub(tr.started).Milliseconds(),
		Event:     ev.Name,
		SessionID: ev.Tags[metrics.TagSessionID],
		Mode:      ev.Tags[metrics.TagMode],
		Value:     ev.Value,
		Tags:      withoutIdentity(ev.Tags),
		Fields:    redactFields(ev.Fields),
	})
	if ev.Name == metrics.EventSessionStopped {
		_ = tr.file.Close()
		delete(o.traces, name)
	}
}

// Close closes every trace still open.
func (o *TimelineObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for name, tr := range o.traces {
		errs = append(errs, tr.file.Close())
		delete(o.traces, name)
	}
	return errors.Join(errs...)
}

func (o *TimelineObserver) open(name string, at time.Time) (*trace, error) {
	if tr, ok := o.traces[name]; ok {
		return tr, nil
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(o.dir, name+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	tr := &trace{file: f, enc: json.NewEncoder(f), started: at}
	o.traces[name] = tr
	return tr, nil
}

// fileStem turns a session id into a safe file name; anything outside
// letters, digits, dot, dash and underscore becomes an underscore.
func fileStem(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.", r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func withoutIdentity(tags map[string]string) map[string]string {
	var out map[string]string
	for k, v := range tags {
		if k == metrics.TagSessionID || k == metrics.TagMode {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(tags))
		}
		out[k] = v
	}
	return out
}

// redactFields copies fields with translated text masked.
func redactFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = redact.Value(v)
	}
	return out
}

var _ metrics.Observer = (*TimelineObserver)(nil)
