package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	if err := a.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	payload := []byte{0x40, 0x01, 0x00, 0x01}
	if err := a.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got, err := b.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Receive = % X, want % X", got, payload)
	}
}

func TestPipePreservesOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	for i := byte(0); i < 10; i++ {
		if err := a.Send([]byte{i}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	for i := byte(0); i < 10; i++ {
		got, err := b.Receive(time.Second)
		if err != nil {
			t.Fatalf("Receive %d failed: %v", i, err)
		}
		if got[0] != i {
			t.Errorf("datagram %d = %d, want %d", i, got[0], i)
		}
	}
}

func TestPipeReceiveTimeout(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	start := time.Now()
	_, err := b.Receive(20 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Receive returned after %v, before the timeout", elapsed)
	}
}

func TestPipeCloseUnblocksReceive(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Receive(5 * time.Second)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
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

func TestPipeSendAfterClose(t *testing.T) {
	a, b := Pipe()
	defer b.Close()

	a.Close()
	if err := a.Send([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Double close must not panic.
	a.Close()
}

func TestPipeDropsWhenFull(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	// Overfill the buffer; excess datagrams are dropped, not blocked on.
	for i := 0; i < pipeQueueDepth+10; i++ {
		if err := a.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	count := 0
	for {
		_, err := b.Receive(10 * time.Millisecond)
		if err != nil {
			break
		}
		count++
	}
	if count != pipeQueueDepth {
		t.Errorf("received %d datagrams, want %d", count, pipeQueueDepth)
	}
}

func TestPipeSendToClosedPeer(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	b.Close()
	// Sending toward a closed peer succeeds silently, like UDP toward a
	// dead host.
	if err := a.Send([]byte{1}); err != nil {
		t.Errorf("Send failed: %v", err)
	}
}
