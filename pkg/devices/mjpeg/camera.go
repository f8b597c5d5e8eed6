// Package mjpeg reads camera frames from an MJPEG-over-HTTP feed
// (multipart/x-mixed-replace), as served by IP cameras and tools like
// ffmpeg or mjpg-streamer.
package mjpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/adapters/capture"
	"github.com/harunnryd/signbridge/pkg/codec"
	"github.com/harunnryd/signbridge/pkg/configutil"
	"github.com/harunnryd/signbridge/pkg/errorsx"
)

type Settings struct {
	URL              string `mapstructure:"url"`
	ConnectTimeoutMS int    `mapstructure:"connect_timeout_ms"`
}

var Schema = configutil.Schema{Required: []string{"url"}, Optional: []string{"connect_timeout_ms"}}

type Camera struct {
	cfg    Settings
	client *http.Client
	logger *slog.Logger
}

func New(cfg Settings, logger *slog.Logger) (*Camera, error) {
	if err := configutil.RequireString(cfg.URL, "devices.camera.settings.url"); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeoutMS <= 0 {
		cfg.ConnectTimeoutMS = 5000
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond
	client := &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: timeout,
	}}
	return &Camera{cfg: cfg, client: client, logger: logger.With("url", cfg.URL)}, nil
}

func (c *Camera) Name() string { return "mjpeg_camera" }

// Open connects to the feed and returns once the multipart stream is established.
func (c *Camera) Open(ctx context.Context) (capture.VideoStream, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		cancel()
		return nil, errorsx.NewDeviceError(c.Name(), err)
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, errorsx.NewDeviceError(c.Name(), err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		cancel()
		return nil, errorsx.NewDeviceError(c.Name(), fmt.Errorf("%w: %s", errorsx.ErrPermissionDenied, resp.Status))
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		cancel()
		return nil, errorsx.NewDeviceError(c.Name(), fmt.Errorf("bad status: %s", resp.Status))
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, errorsx.NewDeviceError(c.Name(), fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	s := &stream{cancel: cancel, body: resp.Body, done: make(chan struct{}), logger: c.logger}
	go s.readLoop(multipart.NewReader(resp.Body, params["boundary"]))
	return s, nil
}

type stream struct {
	mu     sync.RWMutex
	img    image.Image
	cancel context.CancelFunc
	body   io.ReadCloser
	once   sync.Once
	done   chan struct{}
	logger *slog.Logger
}

func (s *stream) readLoop(mr *multipart.Reader) {
	defer close(s.done)
	var buf bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.logger.Debug("mjpeg_stream_ended", "error", err.Error())
			}
			return
		}
		buf.Reset()
		_, err = io.Copy(&buf, part)
		part.Close()
		if err != nil {
			continue
		}
		img, err := codec.DecodeJPEG(buf.Bytes())
		if err != nil {
			s.logger.Debug("mjpeg_frame_invalid", "bytes", buf.Len(), "error", err.Error())
			continue
		}
		s.mu.Lock()
		s.img = img
		s.mu.Unlock()
	}
}

func (s *stream) Latest() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img, s.img != nil
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.cancel()
		_ = s.body.Close()
		<-s.done
	})
	return nil
}
