package message

// Type distinguishes the four message-layer types.
type Type uint8

const (
	// Confirmable messages require acknowledgement and are retransmitted.
	Confirmable Type = 0
	// NonConfirmable messages are fire-and-forget at the message layer.
	NonConfirmable Type = 1
	// Acknowledgement confirms receipt of a Confirmable message.
	Acknowledgement Type = 2
	// Reset rejects a message the peer could not or would not process.
	Reset Type = 3
)

// String returns the conventional short name of the type.
func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether the type is one of the four defined values.
func (t Type) IsValid() bool {
	return t <= Reset
}

// MaxTokenLength is the longest permitted token. Token length fields of
// 9-15 are reserved and rejected by the codec.
const MaxTokenLength = 8

// Message is one unit exchanged over the link.
type Message struct {
	// Type is the message-layer type (CON/NON/ACK/RST).
	Type Type

	// Code is the request method or response status; CodeEmpty for pure
	// control messages (empty ACK, RST, ping).
	Code Code

	// MessageID correlates a message with its ACK/RST within a session.
	// Zero means "unassigned"; the delivery engine allocates one on send.
	MessageID uint16

	// Token correlates a request with its response(s); 0-8 bytes.
	Token []byte

	// Options is the ordered option list (ascending by number).
	Options Options

	// Payload is the message body; empty means no payload.
	Payload []byte

	// Delivery outcome. Owned by the delivery engine once the message has
	// been handed to Send; mutated under the transaction lock as the
	// exchange resolves. Not part of the wire encoding.
	Acknowledged bool
	Rejected     bool
	TimedOut     bool
}

// NewRequest creates a confirmable request with the given method code.
func NewRequest(code Code) *Message {
	return &Message{Type: Confirmable, Code: code}
}

// NewPing creates an empty confirmable message. The peer answers a ping
// with Reset, which the delivery engine surfaces as a rejected transaction.
func NewPing() *Message {
	return &Message{Type: Confirmable, Code: CodeEmpty}
}

// EmptyAck creates the empty acknowledgement for the given message ID.
func EmptyAck(mid uint16) *Message {
	return &Message{Type: Acknowledgement, Code: CodeEmpty, MessageID: mid}
}

// EmptyReset creates the empty reset for the given message ID.
func EmptyReset(mid uint16) *Message {
	return &Message{Type: Reset, Code: CodeEmpty, MessageID: mid}
}

// IsConfirmable reports whether the message requires acknowledgement.
func (m *Message) IsConfirmable() bool {
	return m.Type == Confirmable
}

// IsEmpty reports whether this is a pure control message (code 0).
func (m *Message) IsEmpty() bool {
	return m.Code == CodeEmpty
}

// IsRequest reports whether the code is a request method.
func (m *Message) IsRequest() bool {
	return m.Code.IsRequest()
}

// IsResponse reports whether the code is a response status.
func (m *Message) IsResponse() bool {
	return m.Code.IsResponse()
}

// SuppressesResponse reports whether the message carries the No-Response
// option asking the peer not to reply at all (value 26: all response
// classes suppressed). The sender of such a message does not wait for, or
// start a receiver for, any reply.
func (m *Message) SuppressesResponse() bool {
	v, ok := m.Options.GetUint(OptionNoResponse)
	return ok && v == NoResponseSuppressAll
}

// SetNoResponse marks the message with the No-Response option, suppressing
// all response classes.
func (m *Message) SetNoResponse() {
	m.Options.SetUint(OptionNoResponse, NoResponseSuppressAll)
}

// Observe returns the Observe option value, if present.
func (m *Message) Observe() (uint32, bool) {
	return m.Options.GetUint(OptionObserve)
}

// SetObserve sets the Observe option (ObserveRegister or ObserveDeregister
// on requests, the notification sequence number on responses).
func (m *Message) SetObserve(v uint32) {
	m.Options.SetUint(OptionObserve, v)
}

// Path returns the Uri-Path options joined with "/".
func (m *Message) Path() string {
	return m.Options.Path()
}

// SetPath replaces the Uri-Path options with the segments of path.
func (m *Message) SetPath(path string) {
	m.Options.SetPath(path)
}
