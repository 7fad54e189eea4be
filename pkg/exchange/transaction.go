package exchange

import (
	"sync"

	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// ResponseFunc receives the outcome of an exchange: the response message,
// or nil when delivery definitively failed (retransmission budget
// exhausted, or the engine stopped with the exchange unresolved). It is
// called from engine goroutines and must not block for long.
type ResponseFunc func(resp *message.Message)

// Transaction tracks one outbound message from send to resolution. The
// receiver loop and the retransmission task coordinate through it; its
// mutable state is guarded by an internal mutex.
type Transaction struct {
	mu sync.Mutex

	request  *message.Message
	response *message.Message
	callback ResponseFunc

	// Live retransmission task, nil once it exits or for messages that
	// never armed one.
	retrans *retransmitter

	// subscription marks an exchange whose token stays registered to
	// receive repeated notifications.
	subscription bool

	// continuing marks an exchange waiting for further body segments.
	continuing bool

	// failed marks an exchange settled as a delivery failure. A response
	// racing the retransmission task's exit must not fire the callback a
	// second time.
	failed bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewTransaction wraps a message for tracking. callback may be nil.
func NewTransaction(req *message.Message, callback ResponseFunc) *Transaction {
	return &Transaction{
		request:  req,
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Request returns the tracked message. The message identity (ID, token)
// is fixed once the transaction is registered.
func (tx *Transaction) Request() *message.Message {
	return tx.request
}

// MessageID returns the tracked message's ID.
func (tx *Transaction) MessageID() uint16 {
	return tx.request.MessageID
}

// Token returns the tracked message's token.
func (tx *Transaction) Token() []byte {
	return tx.request.Token
}

// Response returns the response received for this exchange, or nil.
func (tx *Transaction) Response() *message.Message {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.response
}

// Acknowledged reports whether the peer acknowledged the message.
func (tx *Transaction) Acknowledged() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.request.Acknowledged
}

// Rejected reports whether the peer answered with Reset.
func (tx *Transaction) Rejected() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.request.Rejected
}

// TimedOut reports whether delivery failed without any peer reaction.
func (tx *Transaction) TimedOut() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.request.TimedOut
}

// IsSubscription reports whether the exchange carries an active
// observation delivering repeated notifications.
func (tx *Transaction) IsSubscription() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.subscription
}

// Done returns a channel closed when the exchange reaches a terminal
// outcome: response delivered, first notification delivered, rejected,
// timed out, or engine shutdown.
func (tx *Transaction) Done() <-chan struct{} {
	return tx.done
}

// complete closes the done channel. Safe to call more than once.
func (tx *Transaction) complete() {
	tx.doneOnce.Do(func() { close(tx.done) })
}

// completed reports whether the exchange already reached a terminal
// outcome.
func (tx *Transaction) completed() bool {
	select {
	case <-tx.done:
		return true
	default:
		return false
	}
}

// resolved reports whether the exchange has a terminal peer reaction:
// acknowledged, rejected, or a response in hand. The retransmission task
// checks it at every decision point.
func (tx *Transaction) resolved() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.request.Acknowledged || tx.request.Rejected || tx.response != nil
}

// markAcknowledged records the peer's acknowledgement and returns the
// live retransmission task for the caller to stop and join.
func (tx *Transaction) markAcknowledged() *retransmitter {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.failed {
		tx.request.Acknowledged = true
	}
	return tx.retrans
}

// markRejected records the peer's reset and returns the live
// retransmission task for the caller to stop and join.
func (tx *Transaction) markRejected() *retransmitter {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.failed {
		tx.request.Rejected = true
	}
	return tx.retrans
}

// markTimedOut records definitive delivery failure.
func (tx *Transaction) markTimedOut() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.request.TimedOut = true
}

// failIfUnresolved settles the exchange as a delivery failure unless a
// peer reaction already resolved it. The check and the state change are
// one critical section, so a response racing the retransmission task's
// exit produces exactly one terminal outcome.
func (tx *Transaction) failIfUnresolved() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.request.Acknowledged || tx.request.Rejected || tx.response != nil || tx.failed {
		return false
	}
	tx.request.TimedOut = true
	tx.failed = true
	return true
}

// deliver records a response. A piggybacked response doubles as the
// acknowledgement of the request's message ID. Returns the live
// retransmission task for the caller to stop and join, and whether the
// response was accepted; an exchange already settled as a delivery
// failure refuses it.
func (tx *Transaction) deliver(resp *message.Message, piggyback bool) (*retransmitter, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.failed {
		return tx.retrans, false
	}
	tx.response = resp
	if piggyback {
		tx.request.Acknowledged = true
	}
	return tx.retrans, true
}

// setRetransmitter attaches the live retransmission task.
func (tx *Transaction) setRetransmitter(r *retransmitter) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.retrans = r
}

// clearRetransmitter detaches the retransmission task on its way out.
func (tx *Transaction) clearRetransmitter() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.retrans = nil
}

// setSubscription flags the exchange as an active observation.
func (tx *Transaction) setSubscription(v bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.subscription = v
}

// setContinuing flags the exchange as awaiting further body segments.
func (tx *Transaction) setContinuing(v bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.continuing = v
}

// isContinuing reports whether the exchange awaits further body segments.
func (tx *Transaction) isContinuing() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.continuing
}

// invokeCallback runs the application callback outside the transaction
// lock, so callbacks may call back into the engine.
func (tx *Transaction) invokeCallback(resp *message.Message) {
	tx.mu.Lock()
	cb := tx.callback
	tx.mu.Unlock()
	if cb != nil {
		cb(resp)
	}
}
