package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/harunnryd/signbridge/pkg/frames"
	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/harunnryd/signbridge/pkg/transports"
)

// echoServer answers every binary frame with the same bytes and every text
// frame with a predictions document.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	up := gorilla.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if mt == gorilla.BinaryMessage {
				_ = ws.WriteMessage(gorilla.BinaryMessage, data)
				continue
			}
			_ = ws.WriteMessage(gorilla.TextMessage, []byte(`{"predictions":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvOne(t *testing.T, c transports.Conn) transports.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Recv():
		if !ok {
			t.Fatalf("recv channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return transports.Message{}
}

func TestDialSendReceive(t *testing.T) {
	srv := echoServer(t)
	d := NewDialer(Config{})
	c, err := d.Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if c.State() != transports.Open {
		t.Fatalf("expected open, got %s", c.State())
	}

	img := frames.NewImageFrame("s1", 1, []byte{0xFF, 0xD8, 0x01}, 640, 480, nil)
	if err := c.Send(img); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg := recvOne(t, c)
	if !msg.Binary || string(msg.Data) != string(img.Payload()) {
		t.Fatalf("unexpected echo %+v", msg)
	}

	if err := c.Send(frames.NewControlFrame("s1", 2, protocol.ActionSendTranslation, nil)); err != nil {
		t.Fatalf("send control: %v", err)
	}
	msg = recvOne(t, c)
	if msg.Binary {
		t.Fatalf("expected text frame")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := echoServer(t)
	c, err := NewDialer(Config{}).Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if c.State() != transports.Closed {
		t.Fatalf("expected closed, got %s", c.State())
	}
	if c.Err() != nil {
		t.Fatalf("local close must not report an error, got %v", c.Err())
	}
	if err := c.Send(frames.NewImageFrame("s1", 1, []byte{1}, 1, 1, nil)); err != transports.ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestRemoteCloseReportsTransportError(t *testing.T) {
	up := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = ws.Close()
	}))
	defer srv.Close()

	c, err := NewDialer(Config{}).Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection did not end")
	}
	if !errorsx.IsTransportError(c.Err()) {
		t.Fatalf("expected transport error, got %v", c.Err())
	}
	if errorsx.Reason(c.Err()) != errorsx.ReasonTransportClosed {
		t.Fatalf("unexpected reason %s", errorsx.Reason(c.Err()))
	}
}

func TestDialFailure(t *testing.T) {
	_, err := NewDialer(Config{HandshakeTimeout: 200 * time.Millisecond}).Dial(context.Background(), "ws://127.0.0.1:1/ws/deaf")
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if errorsx.Reason(err) != errorsx.ReasonTransportConnect {
		t.Fatalf("unexpected reason %s", errorsx.Reason(err))
	}
}

// recordingServer forwards every binary frame it reads to got.
func recordingServer(t *testing.T, got chan<- []byte) *httptest.Server {
	t.Helper()
	up := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if mt == gorilla.BinaryMessage {
				got <- data
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCloseDeliversQueuedFrames(t *testing.T) {
	got := make(chan []byte, 8)
	srv := recordingServer(t, got)
	c, err := NewDialer(Config{}).Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	for i := byte(1); i <= 3; i++ {
		if err := c.Send(frames.NewAudioFrame("s1", int64(i), []byte{'R', 'I', 'F', 'F', i}, 44100, 1, nil)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Err() != nil {
		t.Fatalf("local close must not report an error, got %v", c.Err())
	}
	for i := byte(1); i <= 3; i++ {
		select {
		case data := <-got:
			if len(data) != 5 || data[4] != i {
				t.Fatalf("frame %d arrived as %v", i, data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d queued before Close never reached the server", i)
		}
	}
}
