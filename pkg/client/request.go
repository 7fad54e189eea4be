package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// RequestOptions adjusts a single request. The zero value (or nil) means
// a confirmable request expecting a response.
type RequestOptions struct {
	// NonConfirmable sends the request without message-layer reliability:
	// no acknowledgement is expected and nothing is retransmitted.
	NonConfirmable bool

	// NoResponse asks the peer to suppress responses of every class,
	// making the request fire-and-forget. The call returns (nil, nil)
	// once the datagram is on the wire.
	NoResponse bool

	// Queries are appended as Uri-Query options, after any query already
	// present in the path.
	Queries []string

	// Observe requests notification of resource changes; used internally
	// by Client.Observe.
	observe *uint32
}

// Response is the caller's view of a resolved exchange.
type Response struct {
	// Code is the response code; check Class or use Err for outcome
	// handling.
	Code message.Code

	// Payload is the raw response body, possibly empty.
	Payload []byte

	// Message is the full response message for option inspection.
	Message *message.Message
}

func newResponse(msg *message.Message) *Response {
	return &Response{
		Code:    msg.Code,
		Payload: msg.Payload,
		Message: msg,
	}
}

// IsSuccess reports whether the response carries a 2.xx code.
func (r *Response) IsSuccess() bool {
	return r.Code.Class() == 2
}

// Err returns nil for a 2.xx response and a *StatusError otherwise.
func (r *Response) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return &StatusError{Code: r.Code, Payload: r.Payload}
}

// ContentFormat returns the response's Content-Format option, if present.
func (r *Response) ContentFormat() (uint32, bool) {
	return r.Message.Options.GetUint(message.OptionContentFormat)
}

// DecodeCBOR unmarshals the response payload into v.
func (r *Response) DecodeCBOR(v any) error {
	return cbor.Unmarshal(r.Payload, v)
}

// StatusError reports a non-success response code. The payload, when
// present, is the peer's diagnostic text.
type StatusError struct {
	Code    message.Code
	Payload []byte
}

func (e *StatusError) Error() string {
	if len(e.Payload) > 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Payload)
	}
	return e.Code.String()
}

// Get retrieves the resource at path.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, c.newRequest(message.GET, path, nil, 0, false, opts))
}

// Post submits payload to the resource at path.
func (c *Client) Post(ctx context.Context, path string, format uint32, payload []byte, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, c.newRequest(message.POST, path, payload, format, true, opts))
}

// Put replaces the resource at path with payload.
func (c *Client) Put(ctx context.Context, path string, format uint32, payload []byte, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, c.newRequest(message.PUT, path, payload, format, true, opts))
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, c.newRequest(message.DELETE, path, nil, 0, false, opts))
}

// PostCBOR marshals body as CBOR and submits it to the resource at path.
func (c *Client) PostCBOR(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	data, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return c.Post(ctx, path, message.FormatCBOR, data, opts)
}

// PutCBOR marshals body as CBOR and replaces the resource at path with it.
func (c *Client) PutCBOR(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	data, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return c.Put(ctx, path, message.FormatCBOR, data, opts)
}

// newRequest assembles a request message. The path may carry a query
// string ("/res?key=val&flag"), split into Uri-Query options.
func (c *Client) newRequest(code message.Code, path string, payload []byte, format uint32, hasPayload bool, opts *RequestOptions) *message.Message {
	req := message.NewRequest(code)
	req.Token = newToken()

	p, queries := splitPathQuery(path)
	req.SetPath(p)
	for _, q := range queries {
		req.Options.AddQuery(q)
	}

	if hasPayload {
		req.Payload = payload
		req.Options.SetUint(message.OptionContentFormat, format)
	}

	if opts != nil {
		if opts.NonConfirmable {
			req.Type = message.NonConfirmable
		}
		for _, q := range opts.Queries {
			req.Options.AddQuery(q)
		}
		if opts.observe != nil {
			req.SetObserve(*opts.observe)
		}
		if opts.NoResponse {
			req.SetNoResponse()
		}
	}
	return req
}

// splitPathQuery separates a resource path from its query string.
func splitPathQuery(path string) (string, []string) {
	p, rawQuery, found := strings.Cut(path, "?")
	if !found || rawQuery == "" {
		return p, nil
	}
	return p, strings.Split(rawQuery, "&")
}
