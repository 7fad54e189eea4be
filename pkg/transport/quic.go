package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// quicDialTimeout bounds the QUIC handshake on Open.
const quicDialTimeout = 10 * time.Second

// ALPNProtocol is the application protocol negotiated over QUIC.
const ALPNProtocol = "corelink"

// QUICTransport carries datagrams over a QUIC connection using the
// unreliable datagram extension (RFC 9221). QUIC encrypts the link but
// datagrams keep UDP loss semantics, so the delivery engine's
// retransmission applies unchanged.
type QUICTransport struct {
	addr    string
	tlsConf *tls.Config

	mu     sync.Mutex
	conn   *quic.Conn
	closed bool
}

// NewQUICTransport creates a transport that will dial addr on Open.
// tlsConf must carry the certificates the peer expects; ALPNProtocol is
// added to NextProtos if missing.
func NewQUICTransport(addr string, tlsConf *tls.Config) *QUICTransport {
	return &QUICTransport{addr: addr, tlsConf: tlsConf}
}

// WrapQUIC creates a transport over an already-established QUIC
// connection. The connection must have been opened with datagram support.
func WrapQUIC(conn *quic.Conn) *QUICTransport {
	return &QUICTransport{
		addr: conn.RemoteAddr().String(),
		conn: conn,
	}
}

// Open dials the peer and completes the QUIC handshake.
func (t *QUICTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.conn != nil {
		return nil
	}

	tlsConf := t.tlsConf
	if tlsConf == nil {
		tlsConf = &tls.Config{}
	} else {
		tlsConf = tlsConf.Clone()
	}
	if len(tlsConf.NextProtos) == 0 {
		tlsConf.NextProtos = []string{ALPNProtocol}
	}

	ctx, cancel := context.WithTimeout(context.Background(), quicDialTimeout)
	defer cancel()

	conn, err := quic.DialAddr(ctx, t.addr, tlsConf, &quic.Config{
		EnableDatagrams: true,
	})
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", t.addr, err)
	}
	t.conn = conn
	return nil
}

// Send writes one QUIC datagram.
func (t *QUICTransport) Send(data []byte) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	if err := conn.SendDatagram(data); err != nil {
		if t.isClosed() {
			return ErrClosed
		}
		return &WriteError{Err: err}
	}
	return nil
}

// Receive blocks for up to timeout for the next QUIC datagram.
func (t *QUICTransport) Receive(timeout time.Duration) ([]byte, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	data, err := conn.ReceiveDatagram(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		if t.isClosed() {
			return nil, ErrClosed
		}
		return nil, &ReadError{Err: err}
	}
	return data, nil
}

// Close terminates the QUIC connection, unblocking any pending Receive.
func (t *QUICTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		return t.conn.CloseWithError(0, "closed")
	}
	return nil
}

// RemoteAddr returns the peer address, or nil before Open.
func (t *QUICTransport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

func (t *QUICTransport) connection() (*quic.Conn, error) {
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

func (t *QUICTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Compile-time interface satisfaction check.
var _ Transport = (*QUICTransport)(nil)
