package domain

import "context"

// Conn is a live, bidirectional channel to one validator node.
// Implementations must allow Send to be called from multiple goroutines.
type Conn interface {
	// ID is unique per connection for the lifetime of the process.
	ID() string
	// RemoteAddr is the peer address observed by the transport.
	RemoteAddr() string
	// Send writes one encoded message. It fails once the connection is closed.
	Send(ctx context.Context, payload []byte) error
	// Done is closed once the connection is closed from either side.
	Done() <-chan struct{}
	Close() error
}
