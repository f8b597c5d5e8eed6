package frames

import (
	"testing"
	"time"

	"github.com/harunnryd/signbridge/pkg/protocol"
)

func TestControlFramePayload(t *testing.T) {
	f := NewControlFrame("s1", 1, protocol.ActionSendTranslation, nil)
	if f.Binary() {
		t.Fatalf("control frame must be text")
	}
	if string(f.Payload()) != `{"action":"send_translation"}` {
		t.Fatalf("unexpected payload %s", f.Payload())
	}
	if f.Meta()[MetaSessionID] != "s1" {
		t.Fatalf("missing session id")
	}
}

func TestMetaIsCopied(t *testing.T) {
	f := NewImageFrame("s1", 1, []byte{1}, 640, 480, map[string]string{MetaMode: "video"})
	m := f.Meta()
	m[MetaMode] = "audio"
	if f.Meta()[MetaMode] != "video" {
		t.Fatalf("meta mutated through copy")
	}
	if f.Meta()[MetaMIME] != "image/jpeg" {
		t.Fatalf("expected default mime, got %q", f.Meta()[MetaMIME])
	}
}

func TestAudioFrameDuration(t *testing.T) {
	f := NewAudioFrame("s1", 1, nil, 44100, 88200, nil)
	if f.Duration() != 2*time.Second {
		t.Fatalf("expected 2s, got %s", f.Duration())
	}
}

func TestPTSGenMonotonic(t *testing.T) {
	g := NewPTSGen()
	fixed := time.Unix(100, 0)
	g.now = func() time.Time { return fixed }
	a := g.Next("s")
	b := g.Next("s")
	if a != 0 || b != 1 {
		t.Fatalf("expected 0 then 1, got %d %d", a, b)
	}
	g.Forget("s")
	if g.Next("s") != 0 {
		t.Fatalf("expected reset after forget")
	}
}
