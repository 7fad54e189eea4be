package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// streamQueueDepth bounds inbound datagrams buffered between the read
// loop and Receive before backpressure applies to the stream.
const streamQueueDepth = 64

// StreamTransport adapts a reliable byte stream to the datagram contract
// using length-prefixed framing. It exists for links where UDP is not
// available; the delivery engine retransmits over it all the same, so
// duplicate delivery is possible even though the stream itself is lossless.
type StreamTransport struct {
	dial func() (net.Conn, error)

	mu      sync.Mutex
	conn    net.Conn
	framer  *Framer
	readErr error
	started bool
	closed  bool

	frames chan []byte
	done   chan struct{}
}

// NewStreamTransport creates a transport that obtains its stream from dial
// on Open.
func NewStreamTransport(dial func() (net.Conn, error)) *StreamTransport {
	return &StreamTransport{
		dial:   dial,
		frames: make(chan []byte, streamQueueDepth),
		done:   make(chan struct{}),
	}
}

// DialStream creates a transport that dials network/addr on Open.
func DialStream(network, addr string) *StreamTransport {
	return NewStreamTransport(func() (net.Conn, error) {
		return net.Dial(network, addr)
	})
}

// WrapStream creates a transport over an already-established stream.
func WrapStream(conn net.Conn) *StreamTransport {
	t := NewStreamTransport(nil)
	t.conn = conn
	t.framer = NewFramer(conn)
	return t
}

// Open establishes the stream and starts the read loop.
func (t *StreamTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.started {
		return nil
	}
	if t.conn == nil {
		conn, err := t.dial()
		if err != nil {
			return fmt.Errorf("failed to dial: %w", err)
		}
		t.conn = conn
		t.framer = NewFramer(conn)
	}
	t.started = true
	go t.readLoop(t.framer)
	return nil
}

// Send writes one framed datagram to the stream.
func (t *StreamTransport) Send(data []byte) error {
	t.mu.Lock()
	framer := t.framer
	started := t.started
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !started || framer == nil {
		return ErrNotOpen
	}
	if err := framer.WriteFrame(data); err != nil {
		if t.isClosed() {
			return ErrClosed
		}
		return &WriteError{Err: err}
	}
	return nil
}

// Receive blocks for up to timeout for the next framed datagram.
func (t *StreamTransport) Receive(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return nil, ErrNotOpen
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data, ok := <-t.frames:
		if !ok {
			return nil, t.terminalError()
		}
		return data, nil
	case <-t.done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Close tears the stream down, unblocking any pending Receive.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	close(t.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// RemoteAddr returns the peer address, or nil before Open.
func (t *StreamTransport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

// readLoop pulls frames off the stream until it fails or the transport
// closes.
func (t *StreamTransport) readLoop(framer *Framer) {
	defer close(t.frames)
	for {
		data, err := framer.ReadFrame()
		if err != nil {
			t.mu.Lock()
			t.readErr = err
			t.mu.Unlock()
			return
		}
		select {
		case t.frames <- data:
		case <-t.done:
			return
		}
	}
}

// terminalError maps the read loop's exit cause to the contract errors.
// A clean peer close looks the same as a local close.
func (t *StreamTransport) terminalError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.readErr == io.EOF {
		return ErrClosed
	}
	if t.readErr != nil {
		return &ReadError{Err: t.readErr}
	}
	return ErrClosed
}

func (t *StreamTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Compile-time interface satisfaction check.
var _ Transport = (*StreamTransport)(nil)
