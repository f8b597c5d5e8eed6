//go:build portaudio

// Package portaudio binds the microphone and speaker to the host audio stack.
// It needs the PortAudio C library and is only built with -tags portaudio.
package portaudio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/harunnryd/signbridge/pkg/adapters/capture"
	"github.com/harunnryd/signbridge/pkg/codec"
	"github.com/harunnryd/signbridge/pkg/configutil"
	"github.com/harunnryd/signbridge/pkg/errorsx"
)

type MicrophoneSettings struct {
	SampleRate      int `mapstructure:"sample_rate"`
	FramesPerBuffer int `mapstructure:"frames_per_buffer"`
}

var MicrophoneSchema = configutil.Schema{Optional: []string{"sample_rate", "frames_per_buffer"}}

type SpeakerSettings struct {
	FramesPerBuffer int `mapstructure:"frames_per_buffer"`
}

var SpeakerSchema = configutil.Schema{Optional: []string{"frames_per_buffer"}}

// Microphone captures mono float32 blocks from the default input device.
type Microphone struct {
	cfg MicrophoneSettings
}

func NewMicrophone(cfg MicrophoneSettings) *Microphone {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 4096
	}
	return &Microphone{cfg: cfg}
}

func (m *Microphone) Name() string { return "portaudio_microphone" }

func (m *Microphone) Open(ctx context.Context, fn capture.BlockHandler) (capture.AudioStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errorsx.NewDeviceError(m.Name(), classify(err))
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.cfg.SampleRate), m.cfg.FramesPerBuffer, func(in []float32) {
		fn(in)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, errorsx.NewDeviceError(m.Name(), classify(err))
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, errorsx.NewDeviceError(m.Name(), classify(err))
	}
	return &micStream{stream: stream, rate: m.cfg.SampleRate}, nil
}

type micStream struct {
	stream *portaudio.Stream
	rate   int
	once   sync.Once
}

func (s *micStream) SampleRate() int { return s.rate }

// Close stops the callback stream; Stop waits for the running callback to return.
func (s *micStream) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.stream.Stop()
		err = s.stream.Close()
		_ = portaudio.Terminate()
	})
	return err
}

// Speaker plays each clip on its own blocking output stream, so overlapping
// clips are mixed by the host audio system.
type Speaker struct {
	cfg SpeakerSettings
}

func NewSpeaker(cfg SpeakerSettings) *Speaker {
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 1024
	}
	return &Speaker{cfg: cfg}
}

func (s *Speaker) Name() string { return "portaudio_speaker" }

func (s *Speaker) Play(ctx context.Context, pcm codec.PCM) error {
	if pcm.Channels <= 0 || pcm.SampleRate <= 0 || len(pcm.Samples) == 0 {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return errorsx.Wrap(fmt.Errorf("portaudio init: %w", err), errorsx.ReasonPlaybackDevice)
	}
	defer portaudio.Terminate()

	out := make([]float32, s.cfg.FramesPerBuffer*pcm.Channels)
	stream, err := portaudio.OpenDefaultStream(0, pcm.Channels, float64(pcm.SampleRate), s.cfg.FramesPerBuffer, out)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("open output stream: %w", err), errorsx.ReasonPlaybackDevice)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return errorsx.Wrap(fmt.Errorf("start output stream: %w", err), errorsx.ReasonPlaybackDevice)
	}
	defer stream.Stop()

	for off := 0; off < len(pcm.Samples); off += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, pcm.Samples[off:])
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil {
			return errorsx.Wrap(fmt.Errorf("write output stream: %w", err), errorsx.ReasonPlaybackDevice)
		}
	}
	return nil
}

func (s *Speaker) Close() error { return nil }

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized") {
		return fmt.Errorf("%w: %v", errorsx.ErrPermissionDenied, err)
	}
	return err
}
