package message

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is the only protocol version this codec accepts.
const Version = 1

// PayloadMarker separates the option list from the payload.
const PayloadMarker = 0xFF

// Codec errors.
var (
	// ErrMessageTooShort indicates a datagram shorter than its header
	// and declared fields require.
	ErrMessageTooShort = errors.New("message too short")

	// ErrInvalidVersion indicates a version field other than 1.
	ErrInvalidVersion = errors.New("invalid protocol version")

	// ErrInvalidTokenLength indicates a token length outside 0..8.
	ErrInvalidTokenLength = errors.New("invalid token length")

	// ErrInvalidOption indicates a malformed option header.
	ErrInvalidOption = errors.New("invalid option encoding")

	// ErrMissingPayload indicates a payload marker followed by no bytes.
	ErrMissingPayload = errors.New("payload marker without payload")

	// ErrInvalidEmptyMessage indicates an empty-code message carrying a
	// token, options or payload.
	ErrInvalidEmptyMessage = errors.New("empty message with extra fields")

	// ErrInvalidType indicates a message type outside CON/NON/ACK/RST.
	ErrInvalidType = errors.New("invalid message type")
)

// Codec translates between Message values and datagram bytes. The engine
// holds one and never inspects bytes itself.
type Codec interface {
	Encode(m *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
}

// WireCodec is the standard binary codec.
type WireCodec struct{}

var _ Codec = WireCodec{}

// Encode implements Codec.
func (WireCodec) Encode(m *Message) ([]byte, error) { return Encode(m) }

// Decode implements Codec.
func (WireCodec) Decode(data []byte) (*Message, error) { return Decode(data) }

// Encode serializes a message into a datagram.
//
// Options must already be sorted ascending by number, which the Options
// helpers guarantee. Empty messages (code 0.00) must carry no token,
// options or payload.
func Encode(m *Message) ([]byte, error) {
	if !m.Type.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(m.Type))
	}
	if len(m.Token) > MaxTokenLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTokenLength, len(m.Token))
	}
	if m.Code == CodeEmpty && (len(m.Token) > 0 || len(m.Options) > 0 || len(m.Payload) > 0) {
		return nil, ErrInvalidEmptyMessage
	}

	buf := make([]byte, 0, 4+len(m.Token)+4*len(m.Options)+len(m.Payload)+1)
	buf = append(buf, Version<<6|uint8(m.Type)<<4|uint8(len(m.Token)))
	buf = append(buf, uint8(m.Code))
	buf = binary.BigEndian.AppendUint16(buf, m.MessageID)
	buf = append(buf, m.Token...)

	prev := OptionNumber(0)
	for _, opt := range m.Options {
		if opt.Number < prev {
			return nil, fmt.Errorf("%w: option %d after %d", ErrInvalidOption, opt.Number, prev)
		}
		delta := uint16(opt.Number - prev)
		length := len(opt.Value)
		if length > 0xFFFF {
			return nil, fmt.Errorf("%w: option %d value too long", ErrInvalidOption, opt.Number)
		}
		dn, dext := optionNibble(delta)
		ln, lext := optionNibble(uint16(length))
		buf = append(buf, dn<<4|ln)
		buf = append(buf, dext...)
		buf = append(buf, lext...)
		buf = append(buf, opt.Value...)
		prev = opt.Number
	}

	if len(m.Payload) > 0 {
		buf = append(buf, PayloadMarker)
		buf = append(buf, m.Payload...)
	}
	return buf, nil
}

// optionNibble splits a delta or length into its 4-bit nibble and extended
// bytes: values below 13 fit the nibble, 13..268 use one extended byte and
// larger values use two.
func optionNibble(v uint16) (uint8, []byte) {
	switch {
	case v < 13:
		return uint8(v), nil
	case v < 269:
		return 13, []byte{uint8(v - 13)}
	default:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, v-269)
		return 14, ext
	}
}

// Decode parses a datagram into a message. Token and payload are copied,
// so the input buffer may be reused afterwards.
func Decode(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, ErrMessageTooShort
	}
	if data[0]>>6 != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, data[0]>>6)
	}
	tkl := int(data[0] & 0x0F)
	if tkl > MaxTokenLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTokenLength, tkl)
	}

	m := &Message{
		Type:      Type(data[0] >> 4 & 0x03),
		Code:      Code(data[1]),
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}
	if m.Code == CodeEmpty {
		if len(data) != 4 {
			return nil, ErrInvalidEmptyMessage
		}
		return m, nil
	}
	if len(data) < 4+tkl {
		return nil, ErrMessageTooShort
	}
	if tkl > 0 {
		m.Token = append([]byte(nil), data[4:4+tkl]...)
	}

	rest := data[4+tkl:]
	prev := OptionNumber(0)
	for len(rest) > 0 {
		if rest[0] == PayloadMarker {
			if len(rest) == 1 {
				return nil, ErrMissingPayload
			}
			m.Payload = append([]byte(nil), rest[1:]...)
			return m, nil
		}
		dn := rest[0] >> 4
		ln := rest[0] & 0x0F
		if dn == 15 || ln == 15 {
			return nil, fmt.Errorf("%w: reserved nibble", ErrInvalidOption)
		}
		rest = rest[1:]

		delta, err := optionExtended(dn, &rest)
		if err != nil {
			return nil, err
		}
		length, err := optionExtended(ln, &rest)
		if err != nil {
			return nil, err
		}
		if len(rest) < int(length) {
			return nil, ErrMessageTooShort
		}
		num := prev + OptionNumber(delta)
		m.Options = append(m.Options, Option{
			Number: num,
			Value:  append([]byte(nil), rest[:length]...),
		})
		prev = num
		rest = rest[length:]
	}
	return m, nil
}

// optionExtended resolves a delta or length nibble against its extended
// bytes, consuming them from rest.
func optionExtended(nibble uint8, rest *[]byte) (uint16, error) {
	switch nibble {
	case 13:
		if len(*rest) < 1 {
			return 0, ErrMessageTooShort
		}
		v := uint16((*rest)[0]) + 13
		*rest = (*rest)[1:]
		return v, nil
	case 14:
		if len(*rest) < 2 {
			return 0, ErrMessageTooShort
		}
		v := binary.BigEndian.Uint16(*rest) + 269
		*rest = (*rest)[2:]
		return v, nil
	default:
		return uint16(nibble), nil
	}
}
