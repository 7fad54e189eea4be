package linksim

import (
	"net"
	"sync"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/message"
	"github.com/corelink-protocol/corelink-go/pkg/transport"
)

// Responder scripts the simulated peer: it is called after each send with
// the 1-based send count and the datagram, and its returned datagrams are
// queued as the peer's transmissions. A nil return means the peer stays
// silent.
type Responder func(n int, datagram []byte) [][]byte

// Link is an in-memory transport wired to a scripted peer.
type Link struct {
	mu        sync.Mutex
	opened    bool
	closed    bool
	sent      [][]byte
	recvCalls int
	readErrs  []error
	responder Responder

	inbound chan []byte
	done    chan struct{}
}

var _ transport.Transport = (*Link)(nil)

// New creates an unopened link with a silent peer.
func New() *Link {
	return &Link{
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

// SetResponder installs the peer script. Safe to swap between exchanges.
func (l *Link) SetResponder(r Responder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responder = r
}

// Open marks the link ready.
func (l *Link) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return transport.ErrClosed
	}
	l.opened = true
	return nil
}

// Send records the datagram and runs the peer script.
func (l *Link) Send(data []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return transport.ErrClosed
	}
	if !l.opened {
		l.mu.Unlock()
		return transport.ErrNotOpen
	}
	cp := append([]byte(nil), data...)
	l.sent = append(l.sent, cp)
	n := len(l.sent)
	responder := l.responder
	l.mu.Unlock()

	if responder != nil {
		for _, reply := range responder(n, cp) {
			l.Inject(reply)
		}
	}
	return nil
}

// Receive returns the next queued datagram, a queued read error, or
// transport.ErrTimeout.
func (l *Link) Receive(timeout time.Duration) ([]byte, error) {
	l.mu.Lock()
	l.recvCalls++
	if l.closed {
		l.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if !l.opened {
		l.mu.Unlock()
		return nil, transport.ErrNotOpen
	}
	if len(l.readErrs) > 0 {
		err := l.readErrs[0]
		l.readErrs = l.readErrs[1:]
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-l.inbound:
		return data, nil
	case <-l.done:
		return nil, transport.ErrClosed
	case <-timer.C:
		return nil, transport.ErrTimeout
	}
}

// Close tears the link down; blocked receives return transport.ErrClosed.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)
	return nil
}

// RemoteAddr names the simulated peer.
func (l *Link) RemoteAddr() net.Addr {
	return simAddr{}
}

// Inject queues a datagram as if the peer had sent it unprompted.
func (l *Link) Inject(data []byte) {
	select {
	case l.inbound <- append([]byte(nil), data...):
	case <-l.done:
	}
}

// InjectReadError queues an error for a future Receive call. Each queued
// error is returned exactly once, before any queued datagrams.
func (l *Link) InjectReadError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErrs = append(l.readErrs, err)
}

// Sent returns copies of every datagram written so far.
func (l *Link) Sent() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.sent))
	for i, d := range l.sent {
		out[i] = append([]byte(nil), d...)
	}
	return out
}

// SentCount returns the number of datagrams written so far.
func (l *Link) SentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

// SentMessages decodes every datagram written so far, skipping any that
// do not decode.
func (l *Link) SentMessages() []*message.Message {
	var msgs []*message.Message
	for _, data := range l.Sent() {
		if msg, err := message.Decode(data); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// ReceiveCalls returns how many times Receive has been entered.
func (l *Link) ReceiveCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recvCalls
}

type simAddr struct{}

func (simAddr) Network() string { return "linksim" }
func (simAddr) String() string  { return "peer" }
