// Package testutil provides fakes shared by the hub's package tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/yashkhare05/Uptime/internal/protocol"
)

// ErrConnClosed is returned by FakeConn.Send after Close.
var ErrConnClosed = errors.New("fake conn closed")

// FakeConn records every frame sent to it.
type FakeConn struct {
	id   string
	addr string

	mu     sync.Mutex
	sent   [][]byte
	closed bool
	done   chan struct{}
	notify chan struct{}
}

// NewFakeConn creates an open connection with the given ID.
func NewFakeConn(id string) *FakeConn {
	return &FakeConn{id: id, addr: "192.0.2.10:40000", done: make(chan struct{}), notify: make(chan struct{}, 1024)}
}

func (c *FakeConn) ID() string         { return c.id }
func (c *FakeConn) RemoteAddr() string { return c.addr }

func (c *FakeConn) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *FakeConn) Done() <-chan struct{} { return c.done }

func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Sent returns a copy of the raw frames sent so far.
func (c *FakeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Decoded returns the frames sent so far decoded as hub messages.
// Frames that fail to decode are skipped.
func (c *FakeConn) Decoded() []protocol.FromHub {
	var out []protocol.FromHub
	for _, raw := range c.Sent() {
		if msg, err := protocol.DecodeFromHub(raw); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

// ValidateRequests returns only the validate requests sent so far.
func (c *FakeConn) ValidateRequests() []protocol.ValidateRequest {
	var out []protocol.ValidateRequest
	for _, msg := range c.Decoded() {
		if req, ok := msg.(protocol.ValidateRequest); ok {
			out = append(out, req)
		}
	}
	return out
}

// Acks returns only the signup acks sent so far.
func (c *FakeConn) Acks() []protocol.SignupAck {
	var out []protocol.SignupAck
	for _, msg := range c.Decoded() {
		if ack, ok := msg.(protocol.SignupAck); ok {
			out = append(out, ack)
		}
	}
	return out
}
