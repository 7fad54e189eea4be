package transport

import (
	"net"
	"sync"
	"time"
)

// pipeQueueDepth is the per-direction datagram buffer of a pipe. A send
// into a full buffer drops the datagram, mimicking a lossy link rather
// than blocking the sender.
const pipeQueueDepth = 64

// PipeTransport is one end of an in-process datagram pair. It honors the
// full Transport contract and is intended for tests.
type PipeTransport struct {
	in  chan []byte
	out chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// Pipe creates a connected pair of in-process transports. Datagrams sent
// on one end arrive at the other in order, but are dropped once the
// receiving buffer is full.
func Pipe() (*PipeTransport, *PipeTransport) {
	ab := make(chan []byte, pipeQueueDepth)
	ba := make(chan []byte, pipeQueueDepth)
	a := &PipeTransport{in: ba, out: ab, done: make(chan struct{})}
	b := &PipeTransport{in: ab, out: ba, done: make(chan struct{})}
	return a, b
}

// Open is a no-op; a pipe is connected at creation.
func (t *PipeTransport) Open() error {
	select {
	case <-t.done:
		return ErrClosed
	default:
		return nil
	}
}

// Send queues one datagram for the peer. Datagrams are silently dropped
// when the peer's buffer is full, like UDP under load.
func (t *PipeTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.out <- data:
	default:
	}
	return nil
}

// Receive blocks for up to timeout for the next datagram from the peer.
func (t *PipeTransport) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-t.in:
		return data, nil
	case <-t.done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Close shuts this end down, unblocking any pending Receive. The peer end
// keeps working; its sends simply go nowhere, like UDP toward a dead host.
func (t *PipeTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	return nil
}

// RemoteAddr returns a placeholder address.
func (t *PipeTransport) RemoteAddr() net.Addr {
	return pipeAddr{}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// Compile-time interface satisfaction check.
var _ Transport = (*PipeTransport)(nil)
