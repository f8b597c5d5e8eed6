package session

import "github.com/harunnryd/signbridge/pkg/protocol"

// User-facing status strings.
const (
	StatusIdle        = "idle"
	StatusStreaming   = "streaming"
	StatusStopped     = "stopped"
	StatusMicError    = "mic error"
	StatusCameraError = "camera error"
)

// Status is the short status line shown to the user.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) deviceErrorStatus() string {
	if c.cfg.Mode == protocol.ModeAudio {
		return StatusMicError
	}
	return StatusCameraError
}
