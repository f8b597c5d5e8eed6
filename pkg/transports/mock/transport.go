package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/harunnryd/signbridge/pkg/frames"
	"github.com/harunnryd/signbridge/pkg/transports"
)

// Conn is an in-memory connection for local testing and dry runs.
// It implements transports.Conn without any network dependency.
type Conn struct {
	url    string
	state  atomic.Int32
	recvCh chan transports.Message
	done   chan struct{}
	sentCh chan frames.Frame

	mu     sync.Mutex
	sent   []frames.Frame
	err    error
	once   sync.Once
	closes atomic.Int32
}

func NewConn(url string) *Conn {
	c := &Conn{
		url:    url,
		recvCh: make(chan transports.Message, 256),
		done:   make(chan struct{}),
		sentCh: make(chan frames.Frame, 256),
	}
	c.state.Store(int32(transports.Open))
	return c
}

func (c *Conn) URL() string                     { return c.url }
func (c *Conn) State() transports.SocketState   { return transports.SocketState(c.state.Load()) }
func (c *Conn) Recv() <-chan transports.Message { return c.recvCh }
func (c *Conn) Done() <-chan struct{}           { return c.done }

func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SetState forces the reported socket state.
func (c *Conn) SetState(s transports.SocketState) { c.state.Store(int32(s)) }

func (c *Conn) Send(f frames.Frame) error {
	if c.State() != transports.Open {
		return transports.ErrNotOpen
	}
	c.mu.Lock()
	c.sent = append(c.sent, f)
	c.mu.Unlock()
	select {
	case c.sentCh <- f:
	default:
	}
	return nil
}

func (c *Conn) Close() error {
	c.closes.Add(1)
	c.end(nil)
	return nil
}

// CloseRemote simulates the peer dropping the connection.
func (c *Conn) CloseRemote(err error) {
	if err == nil {
		err = errors.New("connection reset by peer")
	}
	c.end(errorsx.NewTransportError(c.url, "read", err, errorsx.ReasonTransportClosed))
}

func (c *Conn) end(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.state.Store(int32(transports.Closed))
		close(c.recvCh)
		close(c.done)
		c.mu.Unlock()
	})
}

// Push injects an inbound frame into the connection.
func (c *Conn) Push(binary bool, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == transports.Closed {
		return
	}
	select {
	case c.recvCh <- transports.Message{Binary: binary, Data: data, Received: time.Now()}:
	default:
	}
}

// Sent returns a copy of every frame written so far.
func (c *Conn) Sent() []frames.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frames.Frame(nil), c.sent...)
}

// SentCh exposes outbound frames as they are written.
func (c *Conn) SentCh() <-chan frames.Frame { return c.sentCh }

// Closes is the number of Close calls observed.
func (c *Conn) Closes() int { return int(c.closes.Load()) }

// Dialer hands out mock connections. Err fails every dial; Gate, when set,
// holds each dial until it is closed or receives a value.
type Dialer struct {
	Err  error
	Gate chan struct{}

	mu    sync.Mutex
	conns []*Conn
	dials atomic.Int32
}

func NewDialer() *Dialer { return &Dialer{} }

func (d *Dialer) Dial(ctx context.Context, url string) (transports.Conn, error) {
	d.dials.Add(1)
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return nil, errorsx.NewTransportError(url, "dial", ctx.Err(), errorsx.ReasonTransportConnect)
		}
	}
	if d.Err != nil {
		return nil, errorsx.NewTransportError(url, "dial", d.Err, errorsx.ReasonTransportConnect)
	}
	c := NewConn(url)
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// Conns returns every connection dialed so far.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Last returns the most recent connection, or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Dials is the number of Dial calls, successful or not.
func (d *Dialer) Dials() int { return int(d.dials.Load()) }
