package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Transport errors.
var (
	// ErrTimeout indicates no datagram arrived within the Receive timeout.
	// It is a normal outcome of polling, not a link failure.
	ErrTimeout = errors.New("receive timed out")

	// ErrClosed indicates the transport was closed, locally or by losing
	// the underlying connection.
	ErrClosed = errors.New("transport closed")

	// ErrNotOpen indicates Send or Receive before Open.
	ErrNotOpen = errors.New("transport not open")
)

// WriteError wraps a link failure while transmitting a datagram. Callers
// can hand these to a write policy to decide between fire-and-forget and
// surfacing the failure.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("transport write failed: %v", e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError wraps a link failure while receiving. It excludes ErrTimeout
// and ErrClosed, which are ordinary outcomes of a bounded receive.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("transport read failed: %v", e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }

// Transport is a connected datagram link to a single peer.
//
// Send and Receive may be called concurrently with each other and with
// Close. Receive is intended for one reader at a time; the delivery engine
// owns it through a single receiver goroutine.
type Transport interface {
	// Open establishes the link. Calling Open on an open transport is a
	// no-op.
	Open() error

	// Send writes one datagram.
	Send(data []byte) error

	// Receive blocks for up to timeout for the next datagram. It returns
	// ErrTimeout when nothing arrived in time and ErrClosed once the
	// transport is closed.
	Receive(timeout time.Duration) ([]byte, error)

	// Close tears the link down and unblocks any pending Receive. It is
	// safe to call Close more than once.
	Close() error

	// RemoteAddr returns the peer address, or nil before Open.
	RemoteAddr() net.Addr
}
