// Package websocket implements transports.Conn on top of gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/harunnryd/signbridge/pkg/frames"
	"github.com/harunnryd/signbridge/pkg/transports"
)

// closeGrace bounds how long Close waits for the peer to answer the close frame.
const closeGrace = time.Second

type Config struct {
	HandshakeTimeout time.Duration
	WriteBuffer      int
	ReadBuffer       int
	WriteTimeout     time.Duration
	Header           http.Header
	Logger           *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.WriteBuffer <= 0 {
		c.WriteBuffer = 64
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type Dialer struct {
	cfg Config
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults()}
}

func (d *Dialer) Dial(ctx context.Context, url string) (transports.Conn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	wd := gorilla.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}
	ws, resp, err := wd.DialContext(ctx, url, d.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errorsx.NewTransportError(url, "dial", err, errorsx.ReasonTransportConnect)
	}
	c := newConn(url, ws, d.cfg)
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

type outbound struct {
	binary bool
	data   []byte
}

type Conn struct {
	url    string
	ws     *gorilla.Conn
	cfg    Config
	logger *slog.Logger

	state   atomic.Int32
	sendCh  chan outbound
	recvCh  chan transports.Message
	closing chan struct{}
	flushed chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newConn(url string, ws *gorilla.Conn, cfg Config) *Conn {
	c := &Conn{
		url:     url,
		ws:      ws,
		cfg:     cfg,
		logger:  cfg.Logger.With("url", url),
		sendCh:  make(chan outbound, cfg.WriteBuffer),
		recvCh:  make(chan transports.Message, cfg.ReadBuffer),
		closing: make(chan struct{}),
		flushed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.state.Store(int32(transports.Open))
	return c
}

func (c *Conn) URL() string { return c.url }

func (c *Conn) State() transports.SocketState {
	return transports.SocketState(c.state.Load())
}

func (c *Conn) Recv() <-chan transports.Message { return c.recvCh }

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) Send(f frames.Frame) error {
	if f == nil {
		return nil
	}
	if c.State() != transports.Open {
		return transports.ErrNotOpen
	}
	select {
	case c.sendCh <- outbound{binary: f.Binary(), data: f.Payload()}:
		return nil
	default:
		return transports.ErrSendQueueFull
	}
}

// Close stops accepting frames, lets the writer put everything already
// queued on the wire followed by a normal close frame, then waits briefly for
// the peer to answer before tearing the socket down. Calling it again is a
// no-op.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.CompareAndSwap(int32(transports.Open), int32(transports.Closing))
		close(c.closing)
		<-c.flushed
		select {
		case <-c.done:
		case <-time.After(closeGrace):
		}
		_ = c.ws.Close()
	})
	<-c.done
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.recvCh)
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		msg := transports.Message{Data: data, Received: time.Now()}
		switch mt {
		case gorilla.BinaryMessage:
			msg.Binary = true
		case gorilla.TextMessage:
		default:
			continue
		}
		select {
		case c.recvCh <- msg:
		case <-c.closing:
			c.finish(nil)
			return
		}
	}
}

func (c *Conn) writeLoop() {
	defer close(c.flushed)
	for {
		select {
		case out := <-c.sendCh:
			if err := c.write(out); err != nil {
				c.logger.Debug("transport_write_failed", "error", err.Error())
			}
		case <-c.done:
			return
		case <-c.closing:
			c.drain()
			msg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "")
			_ = c.ws.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
			return
		}
	}
}

// drain writes whatever is still queued. Send refuses new frames once the
// state left Open, so the queue only shrinks here.
func (c *Conn) drain() {
	for {
		select {
		case out := <-c.sendCh:
			if err := c.write(out); err != nil {
				c.logger.Warn("transport_flush_failed", "pending", len(c.sendCh), "error", err.Error())
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(out outbound) error {
	mt := gorilla.TextMessage
	if out.binary {
		mt = gorilla.BinaryMessage
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteMessage(mt, out.data)
}

func (c *Conn) finish(readErr error) {
	select {
	case <-c.closing:
		readErr = nil
	default:
	}
	if readErr != nil {
		c.mu.Lock()
		c.err = errorsx.NewTransportError(c.url, "read", readErr, errorsx.ReasonTransportClosed)
		c.mu.Unlock()
		c.logger.Warn("transport_closed", "error", readErr.Error(), "normal", isNormalClose(readErr))
		_ = c.ws.Close()
	}
	c.state.Store(int32(transports.Closed))
	close(c.done)
}

func isNormalClose(err error) bool {
	var ce *gorilla.CloseError
	if errors.As(err, &ce) {
		return ce.Code == gorilla.CloseNormalClosure || ce.Code == gorilla.CloseGoingAway
	}
	return false
}
