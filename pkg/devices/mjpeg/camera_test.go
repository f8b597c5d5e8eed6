package mjpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harunnryd/signbridge/pkg/errorsx"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestStreamDeliversLatestFrame(t *testing.T) {
	frame := jpegBytes(t, 40, 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		fl := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			_, _ = w.Write(frame)
			_, _ = w.Write([]byte("\r\n"))
			fl.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	cam, err := New(Settings{URL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s, err := cam.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if img, ok := s.Latest(); ok {
			if img.Bounds().Dx() != 40 {
				t.Fatalf("unexpected width %d", img.Bounds().Dx())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no frame received")
}

func TestOpenForbiddenIsDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cam, err := New(Settings{URL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = cam.Open(context.Background())
	if errorsx.Reason(err) != errorsx.ReasonDeviceDenied {
		t.Fatalf("expected device_denied, got %v", err)
	}
}

func TestOpenRejectsNonMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	cam, _ := New(Settings{URL: srv.URL}, nil)
	_, err := cam.Open(context.Background())
	if !errorsx.IsDeviceError(err) {
		t.Fatalf("expected device error, got %v", err)
	}
}
