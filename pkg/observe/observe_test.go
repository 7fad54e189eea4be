package observe

import (
	"io"
	"log/slog"
	"testing"

	"github.com/corelink-protocol/corelink-go/pkg/message"
)

func newTestRegistry(max int) *Registry {
	return NewRegistryWithConfig(Config{
		MaxRegistrations: max,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func registerRequest(token []byte, path string) *message.Message {
	req := message.NewRequest(message.GET)
	req.Token = token
	req.SetPath(path)
	req.SetObserve(message.ObserveRegister)
	return req
}

func notification(token []byte, mid uint16, seq uint32) *message.Message {
	resp := &message.Message{
		Type:      message.NonConfirmable,
		Code:      message.Content,
		MessageID: mid,
		Token:     token,
	}
	resp.SetObserve(seq)
	return resp
}

func TestRegisterAndGet(t *testing.T) {
	g := newTestRegistry(0)

	reg, err := g.Register([]byte{0x01}, "/temperature")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !reg.IsActive() {
		t.Error("fresh registration should be active")
	}
	if reg.Path() != "/temperature" {
		t.Errorf("Path() = %q, want /temperature", reg.Path())
	}
	if string(reg.Token()) != "\x01" {
		t.Errorf("Token() = %x, want 01", reg.Token())
	}

	got, err := g.Get([]byte{0x01})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != reg {
		t.Error("Get returned a different registration")
	}
	if g.Count() != 1 {
		t.Errorf("Count() = %d, want 1", g.Count())
	}

	if _, err := g.Get([]byte{0x99}); err != ErrNotRegistered {
		t.Errorf("Get(unknown) = %v, want ErrNotRegistered", err)
	}
}

func TestRegisterRequiresToken(t *testing.T) {
	g := newTestRegistry(0)
	if _, err := g.Register(nil, "/x"); err != ErrNoToken {
		t.Errorf("Register(nil token) = %v, want ErrNoToken", err)
	}
}

func TestRegisterLimit(t *testing.T) {
	g := newTestRegistry(2)

	if _, err := g.Register([]byte{0x01}, "/a"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := g.Register([]byte{0x02}, "/b"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := g.Register([]byte{0x03}, "/c"); err != ErrTooManyRegistrations {
		t.Errorf("third Register = %v, want ErrTooManyRegistrations", err)
	}

	// Replacing a live token is not a new registration.
	old, _ := g.Get([]byte{0x01})
	replacement, err := g.Register([]byte{0x01}, "/a2")
	if err != nil {
		t.Fatalf("re-Register failed: %v", err)
	}
	if old.IsActive() {
		t.Error("replaced registration should be deactivated")
	}
	if !replacement.IsActive() || replacement.Path() != "/a2" {
		t.Error("replacement registration not installed")
	}
	if g.Count() != 2 {
		t.Errorf("Count() = %d, want 2", g.Count())
	}
}

func TestOnSendRegisterAndDeregister(t *testing.T) {
	g := newTestRegistry(0)
	token := []byte{0x10}

	g.OnSend(registerRequest(token, "/state"))
	if g.Count() != 1 {
		t.Fatalf("Count() = %d after register request, want 1", g.Count())
	}

	dereg := message.NewRequest(message.GET)
	dereg.Token = token
	dereg.SetPath("/state")
	dereg.SetObserve(message.ObserveDeregister)
	g.OnSend(dereg)
	if g.Count() != 0 {
		t.Errorf("Count() = %d after deregister request, want 0", g.Count())
	}
}

func TestOnSendIgnoresPlainRequests(t *testing.T) {
	g := newTestRegistry(0)
	req := message.NewRequest(message.GET)
	req.Token = []byte{0x11}
	req.SetPath("/plain")
	g.OnSend(req)
	if g.Count() != 0 {
		t.Errorf("Count() = %d, want 0 for a request without Observe", g.Count())
	}
}

func TestOnReceiveNotifications(t *testing.T) {
	g := newTestRegistry(0)
	token := []byte{0x20}
	g.OnSend(registerRequest(token, "/temperature"))

	if !g.OnReceive(notification(token, 100, 1)) {
		t.Fatal("initial notification should report a live observation")
	}
	if !g.OnReceive(notification(token, 101, 2)) {
		t.Fatal("second notification should report a live observation")
	}

	reg, err := g.Get(token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := reg.Notifications(); got != 2 {
		t.Errorf("Notifications() = %d, want 2", got)
	}
	seq, ok := reg.LastSequence()
	if !ok || seq != 2 {
		t.Errorf("LastSequence() = %d,%v, want 2,true", seq, ok)
	}
}

func TestOnReceiveUnknownToken(t *testing.T) {
	g := newTestRegistry(0)
	if g.OnReceive(notification([]byte{0xAB}, 1, 1)) {
		t.Error("unknown token should not report an observation")
	}
	if g.OnReceive(&message.Message{Code: message.Content}) {
		t.Error("tokenless response should not report an observation")
	}
}

func TestOnReceiveWithoutObserveEndsObservation(t *testing.T) {
	g := newTestRegistry(0)
	token := []byte{0x30}
	g.OnSend(registerRequest(token, "/gone"))

	final := &message.Message{
		Type:      message.NonConfirmable,
		Code:      message.Content,
		MessageID: 200,
		Token:     token,
	}
	if g.OnReceive(final) {
		t.Error("a response without Observe should end the observation")
	}
	if g.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after the final response", g.Count())
	}
}

func TestOnSendEmptyResetCancels(t *testing.T) {
	g := newTestRegistry(0)
	token := []byte{0x40}
	g.OnSend(registerRequest(token, "/noisy"))
	g.OnReceive(notification(token, 300, 1))
	g.OnReceive(notification(token, 301, 2))

	// Rejecting a stale notification does nothing.
	g.OnSendEmpty(message.EmptyReset(300))
	if g.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 after rejecting an old MID", g.Count())
	}

	// Rejecting the newest one cancels.
	g.OnSendEmpty(message.EmptyReset(301))
	if g.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after rejecting the newest MID", g.Count())
	}

	// Acknowledgements never cancel.
	g.OnSend(registerRequest([]byte{0x41}, "/other"))
	g.OnReceive(notification([]byte{0x41}, 400, 1))
	g.OnSendEmpty(message.EmptyAck(400))
	if g.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after an ack", g.Count())
	}
}

func TestCancelAndClear(t *testing.T) {
	g := newTestRegistry(0)
	g.OnSend(registerRequest([]byte{0x50}, "/a"))
	g.OnSend(registerRequest([]byte{0x51}, "/b"))

	reg, _ := g.Get([]byte{0x50})
	g.Cancel([]byte{0x50})
	if reg.IsActive() {
		t.Error("cancelled registration should be deactivated")
	}
	if g.Count() != 1 {
		t.Errorf("Count() = %d, want 1", g.Count())
	}
	g.Cancel([]byte{0x50}) // no-op

	g.Clear()
	if g.Count() != 0 {
		t.Errorf("Count() = %d after Clear, want 0", g.Count())
	}
}

func TestActiveSortedByPath(t *testing.T) {
	g := newTestRegistry(0)
	g.OnSend(registerRequest([]byte{0x60}, "/zebra"))
	g.OnSend(registerRequest([]byte{0x61}, "/alpha"))
	g.OnSend(registerRequest([]byte{0x62}, "/mango"))

	active := g.Active()
	if len(active) != 3 {
		t.Fatalf("Active() returned %d registrations, want 3", len(active))
	}
	want := []string{"/alpha", "/mango", "/zebra"}
	for i, reg := range active {
		if reg.Path() != want[i] {
			t.Errorf("Active()[%d].Path() = %q, want %q", i, reg.Path(), want[i])
		}
	}
}

func TestReorderedNotifications(t *testing.T) {
	g := newTestRegistry(0)
	token := []byte{0x70}
	g.OnSend(registerRequest(token, "/seq"))

	g.OnReceive(notification(token, 1, 5))
	g.OnReceive(notification(token, 2, 3)) // late arrival
	g.OnReceive(notification(token, 3, 6))

	reg, _ := g.Get(token)
	if got := reg.Reordered(); got != 1 {
		t.Errorf("Reordered() = %d, want 1", got)
	}
	if seq, _ := reg.LastSequence(); seq != 6 {
		t.Errorf("LastSequence() = %d, want 6", seq)
	}
}

func TestNewerSequence(t *testing.T) {
	tests := []struct {
		name               string
		current, candidate uint32
		want               bool
	}{
		{"next", 1, 2, true},
		{"same", 7, 7, false},
		{"older", 9, 4, false},
		{"far ahead", 0, 1 << 22, true},
		{"half space", 0, 1 << 23, false},
		{"wrap forward", 1<<24 - 1, 0, true},
		{"wrap backward", 0, 1<<24 - 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newerSequence(tt.current, tt.candidate); got != tt.want {
				t.Errorf("newerSequence(%d, %d) = %v, want %v",
					tt.current, tt.candidate, got, tt.want)
			}
		})
	}
}
