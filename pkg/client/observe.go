package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// ErrObserveNotSupported indicates the peer answered a register request
// with a plain response, declining to open an observation.
var ErrObserveNotSupported = errors.New("peer does not support observation")

// NotifyFunc receives the observed resource's state: once for the initial
// response and again for every notification. A nil argument means the
// register request itself failed delivery; after the observation is
// established, the stream simply stops when it is cancelled, the peer
// sends a final plain response, or the client closes.
type NotifyFunc func(resp *Response)

// Observation is a live subscription to resource state changes.
type Observation struct {
	client *Client
	token  []byte
	path   string

	mu        sync.Mutex
	cancelled bool
}

// Token returns a copy of the observation's token.
func (o *Observation) Token() []byte {
	return append([]byte(nil), o.token...)
}

// Path returns the observed resource path.
func (o *Observation) Path() string {
	return o.path
}

// Observe registers interest in the resource at path. It blocks until the
// peer confirms the observation with its first notification, then streams
// every further notification to notify. The handler is called from engine
// goroutines and must not block for long.
func (c *Client) Observe(ctx context.Context, path string, notify NotifyFunc) (*Observation, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if notify == nil {
		return nil, errors.New("notify handler is required")
	}

	v := message.ObserveRegister
	req := c.newRequest(message.GET, path, nil, 0, false, &RequestOptions{observe: &v})

	tx, err := c.engine.Send(req, func(m *message.Message) {
		if m == nil {
			notify(nil)
			return
		}
		notify(newResponse(m))
	})
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	case <-tx.Done():
	}

	resp := tx.Response()
	switch {
	case resp == nil && tx.Rejected():
		return nil, ErrReset
	case resp == nil:
		return nil, ErrDeliveryTimeout
	case resp.Code.Class() != 2:
		return nil, &StatusError{Code: resp.Code, Payload: resp.Payload}
	}

	// A success response without a live registration means the peer
	// answered the request as a one-shot read.
	if _, err := c.registry.Get(req.Token); err != nil {
		return nil, ErrObserveNotSupported
	}

	return &Observation{
		client: c,
		token:  req.Token,
		path:   path,
	}, nil
}

// Cancel ends the observation with a deregister request reusing its
// token. A peer that already forgot the observation answers with Reset;
// that still counts as cancelled. Cancel is idempotent.
func (o *Observation) Cancel(ctx context.Context) error {
	o.mu.Lock()
	if o.cancelled {
		o.mu.Unlock()
		return nil
	}
	o.cancelled = true
	o.mu.Unlock()

	v := message.ObserveDeregister
	req := o.client.newRequest(message.GET, o.path, nil, 0, false, &RequestOptions{observe: &v})
	req.Token = o.token

	resp, err := o.client.do(ctx, req)
	if err != nil {
		if errors.Is(err, ErrReset) {
			return nil
		}
		return err
	}
	if resp == nil {
		return nil
	}
	return resp.Err()
}
