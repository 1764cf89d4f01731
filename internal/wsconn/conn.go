// Package wsconn adapts a gorilla websocket to the hub's connection
// contract and runs its read loop.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/logger"
)

// ErrClosed is returned by Send after the connection was closed.
var ErrClosed = errors.New("websocket closed")

// Options tunes one connection. Zero values fall back to defaults.
type Options struct {
	ReadLimit    int64         // max inbound frame in bytes
	PingInterval time.Duration // keepalive ping period; the peer has twice this to answer
	WriteTimeout time.Duration // deadline for a write without a context deadline
	Concurrency  int           // in-flight message handlers
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	return o
}

// Handler receives the frames and the end of one connection.
type Handler interface {
	HandleMessage(ctx context.Context, conn domain.Conn, raw []byte) error
	Disconnect(conn domain.Conn)
}

// Conn is a websocket connection safe for concurrent Send and Close.
type Conn struct {
	id     string
	remote string
	ws     *websocket.Conn
	opts   Options

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

var _ domain.Conn = (*Conn)(nil)

// New wraps an upgraded websocket. remoteAddr is the resolved client
// address, which may differ from the socket peer behind a proxy.
func New(ws *websocket.Conn, remoteAddr string, opts Options) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		remote: remoteAddr,
		ws:     ws,
		opts:   opts.withDefaults(),
		closed: make(chan struct{}),
	}
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) RemoteAddr() string { return c.remote }

func (c *Conn) Done() <-chan struct{} { return c.closed }

// Send writes one text frame. The write deadline is the earlier of the
// context deadline and WriteTimeout.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the socket. Safe to call repeatedly.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// Serve reads frames until the peer goes away, handing each to h on its own
// goroutine (at most Concurrency at a time). Once reading stops the
// connection is closed and h.Disconnect runs right away; Serve then waits
// for in-flight handlers before returning. Handlers that register the
// connection must check Done afterwards. Cancelling ctx closes the
// connection.
func (c *Conn) Serve(ctx context.Context, h Handler, log logger.Logger) error {
	log = log.With(logger.ConnID(c.id), logger.String("remote", c.remote))
	pongWait := 2 * c.opts.PingInterval

	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopClose := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stopClose()

	stopPing := make(chan struct{})
	go c.pingLoop(stopPing)

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)

	var readErr error
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		g.Go(func() error {
			if err := h.HandleMessage(ctx, c, data); err != nil {
				log.Debug("message handler returned error", logger.Error(err))
			}
			return nil
		})
	}

	close(stopPing)
	_ = c.Close()
	h.Disconnect(c)
	_ = g.Wait()

	if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		log.Debug("connection closed by peer")
		return nil
	}
	log.Debug("connection read loop ended", logger.Error(readErr))
	return readErr
}

func (c *Conn) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
		case <-stop:
			return
		case <-c.closed:
			return
		}
	}
}
