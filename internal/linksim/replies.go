package linksim

import (
	"fmt"

	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// AckFor builds the empty acknowledgement for a request datagram.
func AckFor(req *message.Message) *message.Message {
	return message.EmptyAck(req.MessageID)
}

// ResetFor builds the empty reset for a request datagram.
func ResetFor(req *message.Message) *message.Message {
	return message.EmptyReset(req.MessageID)
}

// PiggybackFor builds a response riding on the request's acknowledgement.
func PiggybackFor(req *message.Message, code message.Code, payload []byte) *message.Message {
	return &message.Message{
		Type:      message.Acknowledgement,
		Code:      code,
		MessageID: req.MessageID,
		Token:     append([]byte(nil), req.Token...),
		Payload:   payload,
	}
}

// SeparateFor builds a standalone confirmable response reusing the
// request's token under a fresh message ID.
func SeparateFor(req *message.Message, mid uint16, code message.Code, payload []byte) *message.Message {
	return &message.Message{
		Type:      message.Confirmable,
		Code:      code,
		MessageID: mid,
		Token:     append([]byte(nil), req.Token...),
		Payload:   payload,
	}
}

// NotificationFor builds an observe notification for a registered token.
func NotificationFor(token []byte, mid uint16, seq uint32, payload []byte) *message.Message {
	resp := &message.Message{
		Type:      message.NonConfirmable,
		Code:      message.Content,
		MessageID: mid,
		Token:     append([]byte(nil), token...),
		Payload:   payload,
	}
	resp.SetObserve(seq)
	return resp
}

// MustEncode encodes a message or panics; simulation scripts have no
// error path to report through.
func MustEncode(msg *message.Message) []byte {
	data, err := message.Encode(msg)
	if err != nil {
		panic(fmt.Sprintf("linksim: encode failed: %v", err))
	}
	return data
}

// MustDecode decodes a datagram or panics.
func MustDecode(data []byte) *message.Message {
	msg, err := message.Decode(data)
	if err != nil {
		panic(fmt.Sprintf("linksim: decode failed: %v", err))
	}
	return msg
}

// Replies encodes a batch of messages for a Responder to return.
func Replies(msgs ...*message.Message) [][]byte {
	out := make([][]byte, len(msgs))
	for i, msg := range msgs {
		out[i] = MustEncode(msg)
	}
	return out
}
