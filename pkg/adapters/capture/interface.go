package capture

import (
	"context"
	"image"
)

// VideoSource opens a camera. Open fails with an errorsx.DeviceError when the
// device is missing or access is refused.
type VideoSource interface {
	// Name returns the provider name for logging/metrics.
	Name() string
	// Open acquires the device and starts producing frames.
	Open(ctx context.Context) (VideoStream, error)
}

// VideoStream is an acquired camera handle.
type VideoStream interface {
	// Latest returns the most recent frame. ok is false until the first frame arrives.
	Latest() (img image.Image, ok bool)
	// Close releases the device. It is safe to call more than once.
	Close() error
}

// BlockHandler receives one block of mono float samples in [-1, 1]. The slice
// may be reused by the device after the call returns.
type BlockHandler func(block []float32)

// AudioSource opens a microphone.
type AudioSource interface {
	// Name returns the provider name for logging/metrics.
	Name() string
	// Open acquires the device and starts delivering blocks to fn.
	Open(ctx context.Context, fn BlockHandler) (AudioStream, error)
}

// AudioStream is an acquired microphone handle.
type AudioStream interface {
	// SampleRate is the device rate in Hz, or 0 when unknown.
	SampleRate() int
	// Close stops delivery and releases the device. No block is delivered after
	// Close returns. It is safe to call more than once.
	Close() error
}
