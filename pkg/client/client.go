package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corelink-protocol/corelink-go/pkg/block"
	"github.com/corelink-protocol/corelink-go/pkg/exchange"
	"github.com/corelink-protocol/corelink-go/pkg/log"
	"github.com/corelink-protocol/corelink-go/pkg/message"
	"github.com/corelink-protocol/corelink-go/pkg/observe"
	"github.com/corelink-protocol/corelink-go/pkg/transport"
)

// Client errors.
var (
	ErrClientClosed    = errors.New("client is closed")
	ErrRequestTimeout  = errors.New("request timed out")
	ErrDeliveryTimeout = errors.New("delivery timed out")
	ErrReset           = errors.New("request rejected by peer")
)

// DefaultTimeout is the per-request wait budget. It covers the worst-case
// retransmission schedule of the default transmission parameters with
// room to spare.
const DefaultTimeout = 60 * time.Second

// Config assembles a Client.
type Config struct {
	// Transport carries datagrams to and from the peer. Required; the
	// client owns it exclusively once New succeeds.
	Transport transport.Transport

	// Profile names an embedded transmission-parameter profile. Mutually
	// exclusive with Params.
	Profile string

	// Params are explicit transmission parameters. The zero value means
	// the defaults (or the profile, when one is named).
	Params exchange.Params

	// Timeout bounds each request's wait for resolution. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// MaxObservations bounds concurrent observations. Zero means the
	// registry default.
	MaxObservations int

	// PreferredBlockSize, when non-zero, is suggested to peers for
	// segmented responses. Must be a power of two between 16 and 1024.
	PreferredBlockSize int

	// ReadErrorPolicy and WriteErrorPolicy are handed to the engine.
	ReadErrorPolicy  exchange.ErrorPolicy
	WriteErrorPolicy exchange.ErrorPolicy

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives structured protocol events. Optional.
	ProtocolLogger log.Logger
}

// Client issues requests against a single peer. It is safe for concurrent
// use; exchanges interleave freely on the shared engine.
type Client struct {
	engine   *exchange.Engine
	registry *observe.Registry
	tracker  *block.Tracker
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New assembles a client and opens its transport.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Profile != "" && cfg.Params != (exchange.Params{}) {
		return nil, errors.New("profile and explicit parameters are mutually exclusive")
	}

	params := cfg.Params
	if cfg.Profile != "" {
		profile, err := exchange.LoadProfile(cfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		params = profile.Params
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	registry := observe.NewRegistryWithConfig(observe.Config{
		MaxRegistrations: cfg.MaxObservations,
		Logger:           logger,
	})
	tracker := block.NewTrackerWithConfig(block.Config{
		PreferredSize: cfg.PreferredBlockSize,
		Logger:        logger,
	})

	eng, err := exchange.New(exchange.Config{
		Transport:        cfg.Transport,
		Params:           params,
		ReadErrorPolicy:  cfg.ReadErrorPolicy,
		WriteErrorPolicy: cfg.WriteErrorPolicy,
		Observe:          registry,
		Block:            tracker,
		Logger:           logger,
		ProtocolLogger:   cfg.ProtocolLogger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		engine:   eng,
		registry: registry,
		tracker:  tracker,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Engine exposes the underlying delivery engine for callers that need
// message-level control (bare sends, message ID inspection).
func (c *Client) Engine() *exchange.Engine {
	return c.engine
}

// Observations returns the registry tracking this client's live
// observations.
func (c *Client) Observations() *observe.Registry {
	return c.registry
}

// Close shuts the client down: live exchanges fail, observations drop,
// and the transport is released. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.engine.Close()
	c.registry.Clear()
	c.tracker.Clear()
	return err
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Ping checks peer liveness with an empty confirmable message. A live
// peer rejects it with Reset; that rejection is the success outcome.
func (c *Client) Ping(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}

	tx, err := c.engine.SendControl(message.NewPing())
	if err != nil {
		return err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrRequestTimeout
	case <-tx.Done():
	}

	switch {
	case tx.Rejected(), tx.Acknowledged():
		// Either reaction proves the peer's message layer is alive.
		return nil
	default:
		return ErrDeliveryTimeout
	}
}

// do sends a request and blocks until the exchange resolves, the context
// is cancelled, or the client's timeout elapses. Cancelling the wait does
// not recall the datagram; an abandoned exchange finishes in the
// background.
func (c *Client) do(ctx context.Context, req *message.Message) (*Response, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}

	tx, err := c.engine.Send(req, nil)
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

	return resolve(tx)
}

// resolve translates a completed transaction into the caller's view.
func resolve(tx *exchange.Transaction) (*Response, error) {
	if resp := tx.Response(); resp != nil {
		return newResponse(resp), nil
	}
	switch {
	case tx.Rejected():
		return nil, ErrReset
	case tx.TimedOut():
		return nil, ErrDeliveryTimeout
	default:
		// Fire-and-forget: on the wire, nothing more to wait for.
		return nil, nil
	}
}

// newToken mints a fresh 8-byte token.
func newToken() []byte {
	id := uuid.New()
	return id[:8]
}
