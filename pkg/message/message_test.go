package message

import (
	"testing"
)

func TestTypeString(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{Confirmable, "CON"},
		{NonConfirmable, "NON"},
		{Acknowledgement, "ACK"},
		{Reset, "RST"},
		{Type(7), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.typ.String(); got != tc.want {
			t.Errorf("Type(%d).String() = %q, want %q", tc.typ, got, tc.want)
		}
	}
}

func TestTypeIsValid(t *testing.T) {
	for typ := Type(0); typ < 4; typ++ {
		if !typ.IsValid() {
			t.Errorf("Type(%d).IsValid() = false, want true", typ)
		}
	}
	if Type(4).IsValid() {
		t.Error("Type(4).IsValid() = true, want false")
	}
}

func TestNewRequest(t *testing.T) {
	m := NewRequest(GET)
	if m.Type != Confirmable {
		t.Errorf("type = %v, want CON", m.Type)
	}
	if m.Code != GET {
		t.Errorf("code = %v, want GET", m.Code)
	}
	if !m.IsRequest() {
		t.Error("IsRequest() = false")
	}
	if m.IsResponse() {
		t.Error("IsResponse() = true")
	}
}

func TestNewPing(t *testing.T) {
	m := NewPing()
	if m.Type != Confirmable {
		t.Errorf("type = %v, want CON", m.Type)
	}
	if !m.IsEmpty() {
		t.Error("IsEmpty() = false")
	}
	if !m.IsConfirmable() {
		t.Error("IsConfirmable() = false")
	}
}

func TestEmptyAckAndReset(t *testing.T) {
	ack := EmptyAck(0x1234)
	if ack.Type != Acknowledgement || ack.Code != CodeEmpty || ack.MessageID != 0x1234 {
		t.Errorf("EmptyAck = %+v", ack)
	}
	rst := EmptyReset(0x4321)
	if rst.Type != Reset || rst.Code != CodeEmpty || rst.MessageID != 0x4321 {
		t.Errorf("EmptyReset = %+v", rst)
	}
}

func TestSuppressesResponse(t *testing.T) {
	m := NewRequest(PUT)
	m.Type = NonConfirmable
	if m.SuppressesResponse() {
		t.Error("SuppressesResponse() = true before SetNoResponse")
	}

	m.SetNoResponse()
	if !m.SuppressesResponse() {
		t.Error("SuppressesResponse() = false after SetNoResponse")
	}
	if v, ok := m.Options.GetUint(OptionNoResponse); !ok || v != NoResponseSuppressAll {
		t.Errorf("No-Response option = %d, %v; want %d, true", v, ok, NoResponseSuppressAll)
	}

	// Partial interest does not count as full suppression.
	m.Options.SetUint(OptionNoResponse, 2)
	if m.SuppressesResponse() {
		t.Error("SuppressesResponse() = true for partial suppression value")
	}
}

func TestObserve(t *testing.T) {
	m := NewRequest(GET)
	if _, ok := m.Observe(); ok {
		t.Error("Observe() present on fresh request")
	}
	m.SetObserve(ObserveRegister)
	if v, ok := m.Observe(); !ok || v != ObserveRegister {
		t.Errorf("Observe() = %d, %v; want 0, true", v, ok)
	}
	m.SetObserve(ObserveDeregister)
	if v, _ := m.Observe(); v != ObserveDeregister {
		t.Errorf("Observe() = %d after deregister, want 1", v)
	}
}

func TestPathHelpers(t *testing.T) {
	m := NewRequest(GET)
	m.SetPath("/sensors/temp")
	if got := m.Path(); got != "sensors/temp" {
		t.Errorf("Path() = %q, want %q", got, "sensors/temp")
	}
	m.SetPath("light")
	if got := m.Path(); got != "light" {
		t.Errorf("Path() = %q after reset, want %q", got, "light")
	}
}
