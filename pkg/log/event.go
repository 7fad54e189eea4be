package log

import (
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// EngineID uniquely identifies the delivery engine instance (UUID).
	EngineID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Datagram    *DatagramEvent    `cbor:"7,keyasint,omitempty"`  // Link layer (raw bytes)
	Message     *MessageEvent     `cbor:"8,keyasint,omitempty"`  // Message layer (decoded)
	Delivery    *DeliveryEvent    `cbor:"9,keyasint,omitempty"`  // Delivery layer (retransmission lifecycle)
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Engine/registration state
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerLink is the datagram transport layer (raw bytes).
	LayerLink Layer = 0
	// LayerMessage is the message codec layer (decoded messages).
	LayerMessage Layer = 1
	// LayerDelivery is the reliability layer (retransmission state).
	LayerDelivery Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "LINK"
	case LayerMessage:
		return "MESSAGE"
	case LayerDelivery:
		return "DELIVERY"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (request/response/control).
	CategoryMessage Category = 0
	// CategoryDelivery indicates a retransmission lifecycle event.
	CategoryDelivery Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryDelivery:
		return "DELIVERY"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DatagramEvent captures raw datagram data at the link layer.
type DatagramEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw datagram bytes (may be truncated for large datagrams).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded message at the message layer.
type MessageEvent struct {
	// Type is the message-layer type (CON/NON/ACK/RST).
	Type message.Type `cbor:"1,keyasint"`

	// Code is the request method or response status.
	Code message.Code `cbor:"2,keyasint"`

	// MessageID correlates the message with its ACK/RST.
	MessageID uint16 `cbor:"3,keyasint"`

	// Token correlates a request with its response(s).
	Token []byte `cbor:"4,keyasint,omitempty"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"5,keyasint,omitempty"`

	// Observe is the Observe option value, if present.
	Observe *uint32 `cbor:"6,keyasint,omitempty"`
}

// DeliveryEvent captures the retransmission lifecycle of a confirmable
// message at the delivery layer.
type DeliveryEvent struct {
	// Kind is the lifecycle step.
	Kind DeliveryKind `cbor:"1,keyasint"`

	// MessageID identifies the exchange.
	MessageID uint16 `cbor:"2,keyasint"`

	// Attempt is the retransmission count so far (0 for the initial send).
	Attempt int `cbor:"3,keyasint,omitempty"`

	// Backoff is the wait before the next retransmission, in nanoseconds.
	Backoff time.Duration `cbor:"4,keyasint,omitempty"`
}

// DeliveryKind is a retransmission lifecycle step.
type DeliveryKind uint8

const (
	// DeliveryArmed indicates retransmission tracking started for a send.
	DeliveryArmed DeliveryKind = 0
	// DeliveryRetransmit indicates the message was sent again.
	DeliveryRetransmit DeliveryKind = 1
	// DeliveryAcknowledged indicates the exchange was acknowledged.
	DeliveryAcknowledged DeliveryKind = 2
	// DeliveryRejected indicates the peer answered with Reset.
	DeliveryRejected DeliveryKind = 3
	// DeliveryTimedOut indicates the retransmission budget ran out.
	DeliveryTimedOut DeliveryKind = 4
	// DeliveryStopped indicates the engine shut down mid-exchange.
	DeliveryStopped DeliveryKind = 5
)

// String returns the delivery kind name.
func (k DeliveryKind) String() string {
	switch k {
	case DeliveryArmed:
		return "ARMED"
	case DeliveryRetransmit:
		return "RETRANSMIT"
	case DeliveryAcknowledged:
		return "ACKNOWLEDGED"
	case DeliveryRejected:
		return "REJECTED"
	case DeliveryTimedOut:
		return "TIMED_OUT"
	case DeliveryStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures engine and registration lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityEngine indicates an engine lifecycle change.
	StateEntityEngine StateEntity = 0
	// StateEntityObserve indicates an observe registration change.
	StateEntityObserve StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityEngine:
		return "ENGINE"
	case StateEntityObserve:
		return "OBSERVE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
