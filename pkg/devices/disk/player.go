// Package disk provides a player that stores received clips instead of playing them.
package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/harunnryd/signbridge/pkg/codec"
	"github.com/harunnryd/signbridge/pkg/configutil"
	"github.com/harunnryd/signbridge/pkg/errorsx"
)

type Settings struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

var Schema = configutil.Schema{Required: []string{"dir"}, Optional: []string{"prefix"}}

// Player writes each clip to <dir>/<prefix>-<unix-ms>-<seq>.wav as mono PCM16.
type Player struct {
	cfg Settings
	seq atomic.Int64
}

func New(cfg Settings) (*Player, error) {
	if err := configutil.RequireString(cfg.Dir, "devices.speaker.settings.dir"); err != nil {
		return nil, err
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "clip"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errorsx.NewDeviceError("disk_player", err)
	}
	return &Player{cfg: cfg}, nil
}

func (p *Player) Name() string { return "disk_player" }

func (p *Player) Play(ctx context.Context, pcm codec.PCM) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mono := codec.Mono(pcm)
	n := p.seq.Add(1)
	name := fmt.Sprintf("%s-%d-%04d.wav", p.cfg.Prefix, time.Now().UnixMilli(), n)
	path := filepath.Join(p.cfg.Dir, name)
	if err := os.WriteFile(path, codec.EncodeWAV(mono.Samples, mono.SampleRate), 0o644); err != nil {
		return errorsx.Wrap(fmt.Errorf("write clip: %w", err), errorsx.ReasonPlaybackDevice)
	}
	return nil
}

func (p *Player) Close() error { return nil }
