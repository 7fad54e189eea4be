// Package message defines the CoreLink wire message and its binary codec.
//
// A Message carries a type (Confirmable, NonConfirmable, Acknowledgement,
// Reset), a code (request method or response status), a 16-bit message ID,
// an opaque token for request/response correlation, an ordered option list,
// and an optional payload. The encoding follows the compact CoAP-style
// binary layout: a fixed 4-byte header, the token, delta-encoded options,
// and a 0xFF-marked payload.
//
// # Encoding
//
//	messageBytes, err := message.Encode(msg)
//	msg, err := message.Decode(messageBytes)
//
// Decode rejects malformed input (bad version, reserved token lengths,
// truncated or reserved option encodings, a payload marker with no payload)
// with sentinel errors; callers that drain untrusted links should treat any
// decode error as "discard this datagram".
//
// # Options
//
// Options maintain ascending number order on insertion, as the wire format
// requires. Helpers cover the common repeatable options (Uri-Path,
// Uri-Query) and unsigned integer values (Observe, Content-Format,
// No-Response).
//
// The delivery-outcome flags on Message (Acknowledged, Rejected, TimedOut)
// are owned by the delivery engine after the message is handed to Send; they
// are not part of the wire encoding.
package message
