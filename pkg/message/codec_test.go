package message

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeGolden(t *testing.T) {
	m := NewRequest(GET)
	m.MessageID = 0x30
	m.Token = []byte{0x71}
	m.SetPath("temp")

	want := []byte{0x41, 0x01, 0x00, 0x30, 0x71, 0xB4, 0x74, 0x65, 0x6D, 0x70}
	got, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % X, want % X", got, want)
	}
}

func TestEncodeEmptyMessage(t *testing.T) {
	m := NewPing()
	m.MessageID = 0xABCD
	got, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	want := []byte{0x40, 0x00, 0xAB, 0xCD}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % X, want % X", got, want)
	}
}

func TestEncodeRejectsBadMessages(t *testing.T) {
	cases := []struct {
		name string
		m    *Message
		want error
	}{
		{
			name: "bad type",
			m:    &Message{Type: Type(9), Code: GET},
			want: ErrInvalidType,
		},
		{
			name: "token too long",
			m:    &Message{Type: Confirmable, Code: GET, Token: make([]byte, 9)},
			want: ErrInvalidTokenLength,
		},
		{
			name: "empty with token",
			m:    &Message{Type: Confirmable, Code: CodeEmpty, Token: []byte{1}},
			want: ErrInvalidEmptyMessage,
		},
		{
			name: "empty with payload",
			m:    &Message{Type: Acknowledgement, Code: CodeEmpty, Payload: []byte{1}},
			want: ErrInvalidEmptyMessage,
		},
		{
			name: "unsorted options",
			m: &Message{
				Type: Confirmable,
				Code: GET,
				Options: Options{
					{Number: OptionURIPath, Value: []byte("a")},
					{Number: OptionIfMatch, Value: []byte("x")},
				},
			},
			want: ErrInvalidOption,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Encode(tc.m); !errors.Is(err, tc.want) {
				t.Errorf("Encode() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	m := NewRequest(POST)
	m.MessageID = 0xBEEF
	m.Token = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	m.SetPath("sensors/temp")
	m.Options.SetUint(OptionContentFormat, FormatCBOR)
	m.Options.AddQuery("unit=c")
	m.SetNoResponse()
	m.Payload = []byte(`{"v":21.5}`)

	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if got.Type != m.Type || got.Code != m.Code || got.MessageID != m.MessageID {
		t.Errorf("header = %v %v %04X, want %v %v %04X",
			got.Type, got.Code, got.MessageID, m.Type, m.Code, m.MessageID)
	}
	if !bytes.Equal(got.Token, m.Token) {
		t.Errorf("token = %X, want %X", got.Token, m.Token)
	}
	if got.Path() != "sensors/temp" {
		t.Errorf("path = %q", got.Path())
	}
	if v, ok := got.Options.GetUint(OptionContentFormat); !ok || v != FormatCBOR {
		t.Errorf("content format = %d, %v", v, ok)
	}
	if !got.SuppressesResponse() {
		t.Error("No-Response option lost in transit")
	}
	if !bytes.Equal(got.Payload, m.Payload) {
		t.Errorf("payload = %q, want %q", got.Payload, m.Payload)
	}
}

func TestRoundTripExtendedOptions(t *testing.T) {
	// Delta 258 and a custom high number exercise the one- and two-byte
	// extended forms; a long value exercises extended lengths.
	m := NewRequest(GET)
	m.MessageID = 1
	m.Options.AddUint(OptionNoResponse, NoResponseSuppressAll)
	m.Options.Add(OptionNumber(2000), bytes.Repeat([]byte{0x5A}, 300))

	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if v, ok := got.Options.GetUint(OptionNoResponse); !ok || v != NoResponseSuppressAll {
		t.Errorf("No-Response = %d, %v", v, ok)
	}
	val, ok := got.Options.Get(OptionNumber(2000))
	if !ok || len(val) != 300 || val[0] != 0x5A {
		t.Errorf("option 2000 = %d bytes, ok=%v", len(val), ok)
	}
}

func TestDecodeEmptyMessage(t *testing.T) {
	m, err := Decode([]byte{0x70, 0x00, 0x12, 0x34})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if m.Type != Reset || !m.IsEmpty() || m.MessageID != 0x1234 {
		t.Errorf("Decode() = %+v", m)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", []byte{0x40, 0x00}, ErrMessageTooShort},
		{"bad version", []byte{0x80, 0x01, 0x00, 0x01}, ErrInvalidVersion},
		{"bad token length", []byte{0x49, 0x01, 0x00, 0x01}, ErrInvalidTokenLength},
		{"truncated token", []byte{0x42, 0x01, 0x00, 0x01, 0xAA}, ErrMessageTooShort},
		{"empty with trailing bytes", []byte{0x40, 0x00, 0x00, 0x01, 0xFF}, ErrInvalidEmptyMessage},
		{"reserved nibble", []byte{0x40, 0x01, 0x00, 0x01, 0xF0}, ErrInvalidOption},
		{"marker without payload", []byte{0x40, 0x01, 0x00, 0x01, 0xFF}, ErrMissingPayload},
		{"truncated option value", []byte{0x40, 0x01, 0x00, 0x01, 0xB4, 0x74}, ErrMessageTooShort},
		{"truncated extended delta", []byte{0x40, 0x01, 0x00, 0x01, 0xD0}, ErrMessageTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data); !errors.Is(err, tc.want) {
				t.Errorf("Decode(% X) error = %v, want %v", tc.data, err, tc.want)
			}
		})
	}
}

func TestDecodeCopiesInput(t *testing.T) {
	m := NewRequest(GET)
	m.MessageID = 7
	m.Token = []byte{0x01, 0x02}
	m.Payload = []byte("hello")
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	if !bytes.Equal(got.Token, []byte{0x01, 0x02}) {
		t.Errorf("token aliased input buffer: %X", got.Token)
	}
	if string(got.Payload) != "hello" {
		t.Errorf("payload aliased input buffer: %q", got.Payload)
	}
}

func TestCodeString(t *testing.T) {
	cases := []struct {
		code Code
		want string
	}{
		{GET, "GET"},
		{Content, "2.05 Content"},
		{NotFound, "4.04 Not Found"},
		{CodeEmpty, "Empty"},
		{Code(0xFF), "7.31"},
	}
	for _, tc := range cases {
		if got := tc.code.String(); got != tc.want {
			t.Errorf("Code(%#02x).String() = %q, want %q", uint8(tc.code), got, tc.want)
		}
	}
}
