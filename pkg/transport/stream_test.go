package transport

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

// streamPair wraps both ends of a net.Pipe as transports.
func streamPair(t *testing.T) (*StreamTransport, *StreamTransport) {
	t.Helper()
	c1, c2 := net.Pipe()
	a := WrapStream(c1)
	b := WrapStream(c2)
	if err := a.Open(); err != nil {
		t.Fatalf("Open a failed: %v", err)
	}
	if err := b.Open(); err != nil {
		t.Fatalf("Open b failed: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestStreamTransportRoundTrip(t *testing.T) {
	a, b := streamPair(t)

	payload := []byte{0x41, 0x01, 0x00, 0x30, 0x71}
	if err := a.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got, err := b.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Receive = % X, want % X", got, payload)
	}

	// Datagram boundaries survive framing in both directions.
	if err := b.Send([]byte{0xAA}); err != nil {
		t.Fatalf("Send back failed: %v", err)
	}
	if err := b.Send([]byte{0xBB, 0xCC}); err != nil {
		t.Fatalf("second Send back failed: %v", err)
	}

	first, err := a.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive first failed: %v", err)
	}
	second, err := a.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive second failed: %v", err)
	}
	if !bytes.Equal(first, []byte{0xAA}) || !bytes.Equal(second, []byte{0xBB, 0xCC}) {
		t.Errorf("boundaries lost: % X / % X", first, second)
	}
}

func TestStreamTransportReceiveTimeout(t *testing.T) {
	_, b := streamPair(t)

	_, err := b.Receive(30 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestStreamTransportBeforeOpen(t *testing.T) {
	tr := DialStream("tcp", "127.0.0.1:0")

	if err := tr.Send([]byte{1}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send before Open: expected ErrNotOpen, got %v", err)
	}
	if _, err := tr.Receive(time.Millisecond); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Receive before Open: expected ErrNotOpen, got %v", err)
	}
}

func TestStreamTransportCloseUnblocksReceive(t *testing.T) {
	_, b := streamPair(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Receive(5 * time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}

func TestStreamTransportPeerClose(t *testing.T) {
	a, b := streamPair(t)

	a.Close()

	// Drain until the peer close surfaces; it must look like ErrClosed.
	deadline := time.After(2 * time.Second)
	for {
		_, err := b.Receive(50 * time.Millisecond)
		if errors.Is(err, ErrClosed) {
			return
		}
		if err != nil && !errors.Is(err, ErrTimeout) {
			t.Fatalf("unexpected error: %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("peer close never surfaced")
		default:
		}
	}
}

func TestStreamTransportOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	client := DialStream("tcp", ln.Addr().String())
	if err := client.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer client.Close()

	server := WrapStream(<-accepted)
	if err := server.Open(); err != nil {
		t.Fatalf("server Open failed: %v", err)
	}
	defer server.Close()

	payload := []byte("over tcp")
	if err := client.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got, err := server.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Receive = %q, want %q", got, payload)
	}

	if client.RemoteAddr() == nil {
		t.Error("RemoteAddr is nil after Open")
	}
}
