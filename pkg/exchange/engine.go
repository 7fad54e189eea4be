package exchange

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corelink-protocol/corelink-go/pkg/log"
	"github.com/corelink-protocol/corelink-go/pkg/message"
	"github.com/corelink-protocol/corelink-go/pkg/transport"
)

// Engine errors.
var (
	ErrEngineClosed = errors.New("engine is closed")
	ErrNotRequest   = errors.New("message is not a request")
	ErrNotControl   = errors.New("message is not an empty control message")
)

// DefaultPollTimeout bounds a single receiver poll so the stop flag is
// observed promptly.
const DefaultPollTimeout = 100 * time.Millisecond

// BlockLayer is consulted on outbound requests and inbound responses to
// detect segmented transfers. pkg/block provides the implementation.
type BlockLayer interface {
	// OnSend may adjust an outbound request before encoding.
	OnSend(req *message.Message)

	// OnReceive inspects an inbound response; true means more body
	// segments are coming and the exchange is not complete.
	OnReceive(resp *message.Message) bool
}

// ObserveLayer tracks observation registrations by token. pkg/observe
// provides the implementation.
type ObserveLayer interface {
	// OnSend tracks registrations and deregistrations on an outbound
	// request.
	OnSend(req *message.Message)

	// OnSendEmpty observes outbound control messages.
	OnSendEmpty(msg *message.Message)

	// OnReceive inspects an inbound response; true means the exchange is
	// an active observation and will keep producing notifications.
	OnReceive(resp *message.Message) bool

	// Cancel drops the registration for token, if any.
	Cancel(token []byte)
}

// Config assembles an Engine.
type Config struct {
	// Transport carries datagrams to and from the peer. Required; the
	// engine owns it exclusively once New succeeds.
	Transport transport.Transport

	// Codec encodes and decodes messages. Defaults to message.WireCodec.
	Codec message.Codec

	// Params are the retransmission parameters. The zero value means
	// DefaultParams.
	Params Params

	// PollTimeout bounds a single receiver poll. Defaults to
	// DefaultPollTimeout.
	PollTimeout time.Duration

	// ReadErrorPolicy classifies receive failures. Absent means every
	// failure stops the engine.
	ReadErrorPolicy ErrorPolicy

	// WriteErrorPolicy classifies send failures. Absent means every
	// failure propagates to the caller.
	WriteErrorPolicy ErrorPolicy

	// Observe tracks observation registrations. Optional.
	Observe ObserveLayer

	// Block detects segmented transfers. Optional.
	Block BlockLayer

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives structured protocol events. Optional.
	ProtocolLogger log.Logger

	// EngineID identifies this engine in protocol logs. Defaults to a
	// random UUID.
	EngineID string
}

// DefaultConfig returns a Config for tr with default parameters.
func DefaultConfig(tr transport.Transport) Config {
	return Config{
		Transport: tr,
		Params:    DefaultParams(),
	}
}

// Engine provides reliable message delivery over a single transport. An
// Engine is safe for concurrent use.
type Engine struct {
	transport   transport.Transport
	codec       message.Codec
	params      Params
	pollTimeout time.Duration
	readPolicy  ErrorPolicy
	writePolicy ErrorPolicy
	observe     ObserveLayer
	block       BlockLayer

	logger     *slog.Logger
	plog       log.Logger
	engineID   string
	remoteAddr string

	table *Table

	// writeMu serializes all transport writes: application sends,
	// retransmissions, and generated control replies.
	writeMu sync.Mutex

	midMu sync.Mutex
	mid   uint16

	retransMu sync.Mutex
	retrans   map[*retransmitter]struct{}

	receiverOnce sync.Once
	receiverDone chan struct{}

	stateMu         sync.Mutex
	stopped         bool
	receiverRunning bool

	closeOnce sync.Once
	closeErr  error
}

// New assembles an engine and opens its transport.
func New(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Codec == nil {
		cfg.Codec = message.WireCodec{}
	}
	if cfg.Params == (Params{}) {
		cfg.Params = DefaultParams()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transmission parameters: %w", err)
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProtocolLogger == nil {
		cfg.ProtocolLogger = log.NoopLogger{}
	}
	if cfg.EngineID == "" {
		cfg.EngineID = uuid.New().String()
	}

	e := &Engine{
		transport:    cfg.Transport,
		codec:        cfg.Codec,
		params:       cfg.Params,
		pollTimeout:  cfg.PollTimeout,
		readPolicy:   cfg.ReadErrorPolicy,
		writePolicy:  cfg.WriteErrorPolicy,
		observe:      cfg.Observe,
		block:        cfg.Block,
		logger:       cfg.Logger,
		plog:         cfg.ProtocolLogger,
		engineID:     cfg.EngineID,
		table:        NewTable(),
		retrans:      make(map[*retransmitter]struct{}),
		receiverDone: make(chan struct{}),
		mid:          uint16(rand.Intn(1 << 16)),
	}

	if err := e.transport.Open(); err != nil {
		return nil, fmt.Errorf("failed to open transport: %w", err)
	}
	if addr := e.transport.RemoteAddr(); addr != nil {
		e.remoteAddr = addr.String()
	}

	e.logStateChange(log.StateEntityEngine, "", "RUNNING", "started")
	e.logger.Debug("delivery engine started",
		"engine_id", e.engineID, "remote", e.remoteAddr)
	return e, nil
}

// EngineID returns the identifier stamped on this engine's protocol
// events.
func (e *Engine) EngineID() string {
	return e.engineID
}

// Params returns the transmission parameters in effect.
func (e *Engine) Params() Params {
	return e.params
}

// RemoteAddr returns the peer address as a string.
func (e *Engine) RemoteAddr() string {
	return e.remoteAddr
}

// Pending returns the number of live transactions.
func (e *Engine) Pending() int {
	return e.table.Len()
}

// NextMID allocates the next message ID. IDs wrap around naturally and
// skip zero, which marks an unassigned ID.
func (e *Engine) NextMID() uint16 {
	e.midMu.Lock()
	defer e.midMu.Unlock()
	if e.mid == 0 {
		e.mid = 1
	}
	mid := e.mid
	e.mid++
	return mid
}

// CurrentMID returns the message ID the next allocation will hand out.
func (e *Engine) CurrentMID() uint16 {
	e.midMu.Lock()
	defer e.midMu.Unlock()
	if e.mid == 0 {
		return 1
	}
	return e.mid
}

// SetCurrentMID sets the next message ID to allocate. Deterministic test
// setups and session resumption use it; production traffic keeps the
// randomized start.
func (e *Engine) SetCurrentMID(mid uint16) {
	e.midMu.Lock()
	defer e.midMu.Unlock()
	e.mid = mid
}

// Send transmits a request and tracks its exchange. The callback fires
// with the response — repeatedly for subscription notifications — or with
// nil when delivery definitively fails. It may be nil for callers that
// wait on the returned Transaction instead.
//
// A request whose No-Response option suppresses every response class is
// fire-and-forget: its transaction completes as soon as the datagram is
// on the wire, and no receiver loop is started on its account.
func (e *Engine) Send(req *message.Message, callback ResponseFunc) (*Transaction, error) {
	if e.isStopped() {
		return nil, ErrEngineClosed
	}
	if !req.IsRequest() {
		return nil, ErrNotRequest
	}

	if e.observe != nil {
		e.observe.OnSend(req)
	}
	if e.block != nil {
		e.block.OnSend(req)
	}

	if req.MessageID == 0 {
		req.MessageID = e.NextMID()
	}

	tx := NewTransaction(req, callback)

	// A non-confirmable send that suppresses every response can never be
	// resolved by the peer; tracking it would leak a table entry.
	suppressed := req.SuppressesResponse()
	tracked := req.IsConfirmable() || !suppressed
	if tracked {
		if err := e.table.Register(tx); err != nil {
			return nil, err
		}
	}

	data, err := e.codec.Encode(req)
	if err != nil {
		if tracked {
			e.table.Remove(req.MessageID)
		}
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	// The receiver must be listening before the datagram goes out, or a
	// fast peer could answer into the void.
	if !suppressed {
		e.startReceiver()
	}

	e.logMessage(log.DirectionOut, req)
	if err := e.writeDatagram(data); err != nil {
		if tracked {
			e.table.Remove(req.MessageID)
		}
		return nil, err
	}

	if req.IsConfirmable() {
		e.armRetransmitter(tx, data)
	}
	if !tracked {
		tx.complete()
	}
	return tx, nil
}

// SendControl transmits a bare control message: a ping (empty
// confirmable), an empty acknowledgement, or a reset. No retransmission
// is armed. A ping is registered and returns a Transaction that resolves
// with the peer's reaction; a live peer answers it with Reset, so a
// rejected transaction is the expected success. Unanswerable controls
// (ACK, RST) return a nil Transaction.
func (e *Engine) SendControl(msg *message.Message) (*Transaction, error) {
	if e.isStopped() {
		return nil, ErrEngineClosed
	}
	if !msg.IsEmpty() {
		return nil, ErrNotControl
	}

	if e.observe != nil {
		e.observe.OnSendEmpty(msg)
	}

	var tx *Transaction
	if msg.IsConfirmable() {
		if msg.MessageID == 0 {
			msg.MessageID = e.NextMID()
		}
		tx = NewTransaction(msg, nil)
		if err := e.table.Register(tx); err != nil {
			return nil, err
		}
		e.startReceiver()
	}

	data, err := e.codec.Encode(msg)
	if err != nil {
		if tx != nil {
			e.table.Remove(msg.MessageID)
		}
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	e.logMessage(log.DirectionOut, msg)
	if err := e.writeDatagram(data); err != nil {
		if tx != nil {
			e.table.Remove(msg.MessageID)
		}
		return nil, err
	}
	return tx, nil
}

// Close stops the engine: every live retransmission task is signalled and
// joined, the receiver loop is joined, unresolved exchanges are failed,
// and the transport is released. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.markStopped()

		// Each task completes its transaction with a nil response on the
		// way out.
		for _, r := range e.liveRetransmitters() {
			<-r.done
		}

		e.stateMu.Lock()
		receiverRunning := e.receiverRunning
		e.stateMu.Unlock()
		if receiverRunning {
			<-e.receiverDone
		}

		// Whatever is left had no retransmission task: non-confirmable
		// exchanges and acknowledged ones still waiting for a separate
		// response. Completed subscriptions just drop their registration.
		for _, tx := range e.table.Drain() {
			if tx.completed() {
				continue
			}
			tx.markTimedOut()
			e.logDelivery(log.DeliveryStopped, tx.MessageID(), 0, 0)
			tx.invokeCallback(nil)
			tx.complete()
		}

		e.closeErr = e.transport.Close()
		e.logStateChange(log.StateEntityEngine, "RUNNING", "CLOSED", "close")
		e.logger.Debug("delivery engine closed", "engine_id", e.engineID)
	})
	return e.closeErr
}

// startReceiver launches the receiver loop, once per engine lifetime.
func (e *Engine) startReceiver() {
	e.receiverOnce.Do(func() {
		e.stateMu.Lock()
		e.receiverRunning = true
		e.stateMu.Unlock()
		go e.receiveLoop()
	})
}

// isStopped reports whether the engine has stopped accepting work.
func (e *Engine) isStopped() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.stopped
}

// markStopped sets the stop flag and fires every live retransmission stop
// signal. Idempotent; called by Close and by the receiver loop on an
// escalated read failure.
func (e *Engine) markStopped() {
	e.stateMu.Lock()
	if e.stopped {
		e.stateMu.Unlock()
		return
	}
	e.stopped = true
	e.stateMu.Unlock()

	for _, r := range e.liveRetransmitters() {
		r.fireStop()
	}
}

// writeDatagram performs one serialized transport write. Failures consult
// the write policy: Continue turns the loss into fire-and-forget,
// anything else propagates.
func (e *Engine) writeDatagram(data []byte) error {
	e.writeMu.Lock()
	err := e.transport.Send(data)
	e.writeMu.Unlock()

	if err != nil {
		e.logError(log.DirectionOut, log.LayerLink, err, "send")
		if e.writePolicy != nil && e.writePolicy(err) == Continue {
			e.logger.Debug("absorbed send error",
				"engine_id", e.engineID, "err", err)
			return nil
		}
		return err
	}
	e.logDatagram(log.DirectionOut, data)
	return nil
}

// armRetransmitter starts the retransmission task for a confirmable send.
func (e *Engine) armRetransmitter(tx *Transaction, data []byte) {
	r := newRetransmitter(e, tx, data)
	tx.setRetransmitter(r)
	e.trackRetransmitter(r)
	e.logDelivery(log.DeliveryArmed, tx.MessageID(), 0, r.backoff.Peek())
	go r.run()
}

// completeFailed finishes an exchange that will never resolve: removes
// it, reports the failure through the callback, and releases waiters.
func (e *Engine) completeFailed(tx *Transaction, kind log.DeliveryKind, attempts int) {
	e.table.Remove(tx.MessageID())
	e.table.RemoveToken(tx.Token())
	e.logDelivery(kind, tx.MessageID(), attempts, 0)
	e.logger.Warn("delivery failed",
		"engine_id", e.engineID,
		"mid", tx.MessageID(),
		"outcome", kind.String(),
		"retransmits", attempts)
	tx.invokeCallback(nil)
	tx.complete()
}

func (e *Engine) trackRetransmitter(r *retransmitter) {
	e.retransMu.Lock()
	defer e.retransMu.Unlock()
	e.retrans[r] = struct{}{}
}

// detachRetransmitter removes a finished task from the live set. Absence
// is not an error; Close may already hold a snapshot.
func (e *Engine) detachRetransmitter(r *retransmitter) {
	e.retransMu.Lock()
	defer e.retransMu.Unlock()
	delete(e.retrans, r)
}

func (e *Engine) liveRetransmitters() []*retransmitter {
	e.retransMu.Lock()
	defer e.retransMu.Unlock()
	out := make([]*retransmitter, 0, len(e.retrans))
	for r := range e.retrans {
		out = append(out, r)
	}
	return out
}
