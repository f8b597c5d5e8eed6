package disk

import (
	"context"
	"os"
	"testing"

	"github.com/harunnryd/signbridge/pkg/codec"
)

func TestPlayWritesWAV(t *testing.T) {
	dir := t.TempDir()
	p, err := New(Settings{Dir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	pcm := codec.PCM{Samples: []float32{0.5, 0.5, -0.5, -0.5}, SampleRate: 8000, Channels: 2}
	if err := p.Play(context.Background(), pcm); err != nil {
		t.Fatalf("play: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one file, got %d (%v)", len(entries), err)
	}
	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := codec.DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Channels != 1 || got.SampleRate != 8000 || len(got.Samples) != 2 {
		t.Fatalf("unexpected clip %+v", got)
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New(Settings{}); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
