package transports

import (
	"context"
	"errors"
	"time"

	"github.com/harunnryd/signbridge/pkg/frames"
)

// SocketState mirrors the lifecycle of a client connection.
type SocketState int32

const (
	Connecting SocketState = iota
	Open
	Closing
	Closed
)

func (s SocketState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotOpen is returned by Send when the connection cannot carry frames.
var ErrNotOpen = errors.New("connection not open")

// ErrSendQueueFull is returned by Send when the writer is backed up.
var ErrSendQueueFull = errors.New("send queue full")

// Message is one inbound wire frame. Binary reports the frame type the peer used.
type Message struct {
	Binary   bool
	Data     []byte
	Received time.Time
}

// Conn is a client connection to the inference service. A Conn is closed exactly
// once and never reused.
type Conn interface {
	URL() string
	State() SocketState
	// Send queues f for writing. It never blocks on the network.
	Send(f frames.Frame) error
	// Recv yields inbound frames and is closed when the connection ends.
	Recv() <-chan Message
	// Done is closed once the connection is fully closed.
	Done() <-chan struct{}
	// Err reports why the connection ended. It is nil after a local Close.
	Err() error
	Close() error
}

// Dialer opens connections. Dial blocks until the handshake completes or fails.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
