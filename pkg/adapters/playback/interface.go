package playback

import (
	"context"

	"github.com/harunnryd/signbridge/pkg/codec"
)

// Player renders decoded audio. Play blocks until the clip finished or ctx ends.
// Several Play calls may run at the same time; implementations either mix or
// serialize them.
type Player interface {
	// Name returns the provider name for logging/metrics.
	Name() string
	Play(ctx context.Context, pcm codec.PCM) error
	Close() error
}
