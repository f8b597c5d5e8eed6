package metrics

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/redact"
)

// JSONLObserver appends each event to w as a single JSON object, one per line,
// in the shape log shippers expect.
type JSONLObserver struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type jsonlRecord struct {
	Event  string            `json:"event"`
	At     time.Time         `json:"at"`
	Value  float64           `json:"value,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Fields map[string]any    `json:"fields,omitempty"`
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	return &JSONLObserver{enc: json.NewEncoder(w)}
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	rec := jsonlRecord{Event: ev.Name, At: ev.Time.UTC(), Value: ev.Value, Tags: ev.Tags}
	if len(ev.Fields) > 0 {
		rec.Fields = redact.Value(ev.Fields).(map[string]any)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	// An unencodable field loses the line, not the stream.
	_ = o.enc.Encode(rec)
}
