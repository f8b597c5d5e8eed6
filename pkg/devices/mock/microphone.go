package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/harunnryd/signbridge/pkg/adapters/capture"
	"github.com/harunnryd/signbridge/pkg/configutil"
)

// MicrophoneSettings configures the tone generator.
type MicrophoneSettings struct {
	SampleRate int     `mapstructure:"sample_rate"`
	BlockSize  int     `mapstructure:"block_size"`
	Frequency  float64 `mapstructure:"frequency"`
	Amplitude  float64 `mapstructure:"amplitude"`
	// Manual disables the real-time generator; blocks only arrive through Push.
	Manual bool   `mapstructure:"manual"`
	Fail   string `mapstructure:"fail"`
}

var MicrophoneSchema = configutil.Schema{
	Optional: []string{"sample_rate", "block_size", "frequency", "amplitude", "manual", "fail"},
}

func (s MicrophoneSettings) withDefaults() MicrophoneSettings {
	if s.SampleRate < 0 {
		s.SampleRate = 0
	}
	if s.BlockSize <= 0 {
		s.BlockSize = 4096
	}
	if s.Frequency <= 0 {
		s.Frequency = 440
	}
	if s.Amplitude <= 0 {
		s.Amplitude = 0.2
	}
	return s
}

// Microphone emits a sine tone in device-sized blocks.
type Microphone struct {
	cfg MicrophoneSettings

	mu     sync.Mutex
	active *micStream
	opens  int
}

func NewMicrophone(cfg MicrophoneSettings) *Microphone {
	return &Microphone{cfg: cfg.withDefaults()}
}

func (m *Microphone) Name() string { return "mock_microphone" }

func (m *Microphone) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *Microphone) Open(ctx context.Context, fn capture.BlockHandler) (capture.AudioStream, error) {
	if err := failure(m.Name(), m.cfg.Fail); err != nil {
		return nil, err
	}
	s := &micStream{cfg: m.cfg, fn: fn, stop: make(chan struct{}), done: make(chan struct{})}
	m.mu.Lock()
	m.active = s
	m.opens++
	m.mu.Unlock()
	if m.cfg.Manual {
		close(s.done)
	} else {
		go s.run()
	}
	return s, nil
}

// Push delivers block to the open stream, if any. It returns false when closed.
func (m *Microphone) Push(block []float32) bool {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return false
	}
	return s.deliver(block)
}

type micStream struct {
	cfg    MicrophoneSettings
	fn     capture.BlockHandler
	mu     sync.Mutex
	closed bool
	once   sync.Once
	stop   chan struct{}
	done   chan struct{}
}

func (s *micStream) SampleRate() int { return s.cfg.SampleRate }

func (s *micStream) deliver(block []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.fn(block)
	return true
}

func (s *micStream) run() {
	defer close(s.done)
	rate := s.cfg.SampleRate
	if rate == 0 {
		rate = 44100
	}
	period := time.Duration(s.cfg.BlockSize) * time.Second / time.Duration(rate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	block := make([]float32, s.cfg.BlockSize)
	step := 2 * math.Pi * s.cfg.Frequency / float64(rate)
	phase := 0.0
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for i := range block {
				block[i] = float32(s.cfg.Amplitude * math.Sin(phase))
				phase += step
			}
			phase = math.Mod(phase, 2*math.Pi)
			s.deliver(block)
		}
	}
}

func (s *micStream) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stop)
		<-s.done
	})
	return nil
}
