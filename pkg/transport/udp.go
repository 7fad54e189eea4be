package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// udpReadBufferSize bounds a single inbound datagram. Larger datagrams are
// truncated by the kernel and will fail to decode.
const udpReadBufferSize = 65536

// UDPTransport is a connected UDP socket to a single peer. Datagrams from
// other sources are filtered out by the kernel.
type UDPTransport struct {
	addr string

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool
}

// NewUDPTransport creates a transport that will connect to addr
// (host:port) on Open.
func NewUDPTransport(addr string) *UDPTransport {
	return &UDPTransport{addr: addr}
}

// Open resolves the peer address and connects the socket.
func (t *UDPTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.conn != nil {
		return nil
	}

	raddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", t.addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.addr, err)
	}
	t.conn = conn
	return nil
}

// Send writes one datagram to the peer.
func (t *UDPTransport) Send(data []byte) error {
	conn, err := t.socket()
	if err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		if t.isClosed() {
			return ErrClosed
		}
		return &WriteError{Err: err}
	}
	return nil
}

// Receive blocks for up to timeout for the next datagram.
func (t *UDPTransport) Receive(timeout time.Duration) ([]byte, error) {
	conn, err := t.socket()
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, &ReadError{Err: err}
	}

	buf := make([]byte, udpReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, ErrTimeout
		}
		if t.isClosed() || errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, &ReadError{Err: err}
	}
	return buf[:n], nil
}

// Close closes the socket, unblocking any pending Receive.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// RemoteAddr returns the connected peer address, or nil before Open.
func (t *UDPTransport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

// LocalAddr returns the local socket address, or nil before Open.
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

func (t *UDPTransport) socket() (*net.UDPConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if t.conn == nil {
		return nil, ErrNotOpen
	}
	return t.conn, nil
}

func (t *UDPTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Compile-time interface satisfaction check.
var _ Transport = (*UDPTransport)(nil)
