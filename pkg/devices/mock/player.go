package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/signbridge/pkg/codec"
)

// Player records every clip it is asked to play.
type Player struct {
	mu     sync.Mutex
	clips  []codec.PCM
	played chan codec.PCM
	Err    error
}

func NewPlayer() *Player {
	return &Player{played: make(chan codec.PCM, 64)}
}

func (p *Player) Name() string { return "mock_player" }

func (p *Player) Play(ctx context.Context, pcm codec.PCM) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	p.clips = append(p.clips, pcm)
	p.mu.Unlock()
	select {
	case p.played <- pcm:
	default:
	}
	return nil
}

func (p *Player) Close() error { return nil }

// Clips returns every recorded clip.
func (p *Player) Clips() []codec.PCM {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]codec.PCM(nil), p.clips...)
}

// Played signals each clip as it is recorded.
func (p *Player) Played() <-chan codec.PCM { return p.played }
