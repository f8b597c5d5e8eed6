// Package mock provides synthetic devices for tests, demos and headless runs.
package mock

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/adapters/capture"
	"github.com/harunnryd/signbridge/pkg/configutil"
	"github.com/harunnryd/signbridge/pkg/errorsx"
)

// CameraSettings configures the synthetic camera.
type CameraSettings struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	FPS    int    `mapstructure:"fps"`
	Fail   string `mapstructure:"fail"` // "denied" or "unavailable"
}

var CameraSchema = configutil.Schema{Optional: []string{"width", "height", "fps", "fail"}}

func (s CameraSettings) withDefaults() CameraSettings {
	if s.Width <= 0 {
		s.Width = 640
	}
	if s.Height <= 0 {
		s.Height = 480
	}
	if s.FPS <= 0 {
		s.FPS = 15
	}
	return s
}

// Camera paints a moving bar over a gradient.
type Camera struct {
	cfg   CameraSettings
	mu    sync.Mutex
	opens int
}

func NewCamera(cfg CameraSettings) *Camera {
	return &Camera{cfg: cfg.withDefaults()}
}

func (c *Camera) Name() string { return "mock_camera" }

// Opens is the number of successful acquisitions.
func (c *Camera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

func (c *Camera) Open(ctx context.Context) (capture.VideoStream, error) {
	if err := failure(c.Name(), c.cfg.Fail); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.opens++
	c.mu.Unlock()

	s := &cameraStream{cfg: c.cfg, stop: make(chan struct{}), done: make(chan struct{})}
	s.paint(0)
	go s.run()
	return s, nil
}

type cameraStream struct {
	cfg  CameraSettings
	mu   sync.RWMutex
	img  *image.RGBA
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (s *cameraStream) run() {
	defer close(s.done)
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()
	n := 1
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.paint(n)
			n++
		}
	}
}

func (s *cameraStream) paint(n int) {
	w, h := s.cfg.Width, s.cfg.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bar := (n * 8) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 96, A: 255}
			if x >= bar && x < bar+w/16 {
				c = color.RGBA{R: 240, G: 240, B: 240, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

func (s *cameraStream) Latest() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil, false
	}
	return s.img, true
}

func (s *cameraStream) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func failure(device, mode string) error {
	switch mode {
	case "":
		return nil
	case "denied":
		return errorsx.NewDeviceError(device, errorsx.ErrPermissionDenied)
	default:
		return errorsx.NewDeviceError(device, nil)
	}
}
