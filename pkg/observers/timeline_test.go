package observers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/signbridge/pkg/metrics"
	"github.com/harunnryd/signbridge/pkg/redact"
)

func TestTimelineObserverWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.NewEvent(metrics.EventSessionStarted, "session-1", "video"))
	obs.RecordEvent(metrics.NewEvent(metrics.EventFrameOut, "session-1", "video").With(metrics.TagKind, "image"))
	obs.RecordEvent(metrics.NewEvent(metrics.EventSessionStopped, "session-1", "video"))
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "session-1.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], `"event":"frame_out"`) || !strings.Contains(lines[1], `"kind":"image"`) {
		t.Fatalf("unexpected frame_out line %s", lines[1])
	}
}

func TestTimelineRedactsStructuredFields(t *testing.T) {
	redact.SetEnabled(true)
	defer redact.SetEnabled(false)

	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	ev := metrics.NewEvent(metrics.EventInbound, "s", "audio")
	ev.Fields = map[string]any{"payload": map[string]any{"asl_text": "mail me a@b.com"}}
	obs.RecordEvent(ev)
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "s.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(b), "a@b.com") {
		t.Fatalf("email leaked into timeline: %s", b)
	}
}

func TestLatencyObserverMeasuresRoundTrip(t *testing.T) {
	obs := NewLatencyObserver(nil)
	var got []time.Duration
	obs.OnSample(func(mode string, d time.Duration) {
		if mode != "video" {
			t.Errorf("unexpected mode %s", mode)
		}
		got = append(got, d)
	})

	base := time.Now()
	out := metrics.NewEvent(metrics.EventFrameOut, "s", "video")
	out.Time = base
	obs.RecordEvent(out)
	second := out
	second.Time = base.Add(50 * time.Millisecond)
	obs.RecordEvent(second)
	in := metrics.NewEvent(metrics.EventInbound, "s", "video")
	in.Time = base.Add(120 * time.Millisecond)
	obs.RecordEvent(in)
	obs.RecordEvent(in)

	if len(got) != 1 || got[0] != 120*time.Millisecond {
		t.Fatalf("expected one 120ms sample, got %v", got)
	}
}

func TestUsageObserverWritesSummary(t *testing.T) {
	dir := t.TempDir()
	obs := NewUsageObserver(dir)
	out := metrics.NewEvent(metrics.EventFrameOut, "s", "audio")
	out.Fields = map[string]any{"bytes": 744, "duration_sec": 2.0}
	obs.RecordEvent(metrics.NewEvent(metrics.EventSessionStarted, "s", "audio"))
	obs.RecordEvent(out)
	obs.RecordEvent(metrics.NewEvent(metrics.EventInboundDropped, "s", "audio"))
	obs.RecordEvent(metrics.NewEvent(metrics.EventSessionStopped, "s", "audio"))

	b, err := os.ReadFile(filepath.Join(dir, "s.usage.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	for _, want := range []string{`"frames_sent": 1`, `"bytes_sent": 744`, `"inbound_dropped": 1`} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("expected %s in %s", want, b)
		}
	}
}

func TestPurgeArtifactsKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"a.jsonl", "notes.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	n, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removal, got %d (%v)", n, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("foreign file removed")
	}
}
