package exchange

import (
	"sync"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/log"
)

// retransmitter drives the retransmission schedule for one confirmable
// message. One goroutine per armed message; it exits when the exchange
// resolves, the stop channel fires, or the budget runs out.
type retransmitter struct {
	engine *Engine
	tx     *Transaction

	// data is the datagram as first transmitted. Retransmissions put
	// exactly these bytes back on the wire; the message ID never changes
	// mid-exchange.
	data []byte

	backoff *Backoff
	max     int

	// count is the number of retransmissions performed. Only the run
	// goroutine touches it after construction.
	count int

	stop     chan struct{}
	stopOnce sync.Once

	// done closes after every cleanup step has finished, so a joiner
	// observes the engine set and the transaction handle already released.
	done chan struct{}
}

// newRetransmitter prepares the schedule for one armed message.
func newRetransmitter(e *Engine, tx *Transaction, data []byte) *retransmitter {
	return &retransmitter{
		engine:  e,
		tx:      tx,
		data:    data,
		backoff: NewBackoff(e.params),
		max:     e.params.MaxRetransmit,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// fireStop asks the task to wind down. Safe to call from multiple
// goroutines; the channel closes at most once.
func (r *retransmitter) fireStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// stopFired reports whether fireStop has been called.
func (r *retransmitter) stopFired() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// run executes the retransmission schedule. It holds no locks while
// waiting; transaction state is consulted under the transaction's own
// lock at each decision point.
func (r *retransmitter) run() {
	defer close(r.done)
	defer func() {
		r.engine.detachRetransmitter(r)
		r.tx.clearRetransmitter()
	}()

	// Every transmission gets a full acknowledgement window, the last
	// retransmission included: the loop waits one more interval after the
	// budget's final resend before giving up.
	for !r.tx.resolved() && !r.engine.isStopped() {
		delay := r.backoff.Next()

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-r.stop:
			timer.Stop()
		}

		if r.tx.resolved() || r.stopFired() || r.engine.isStopped() {
			break
		}
		if r.count == r.max {
			// The final retransmission waited out its window unanswered.
			break
		}

		r.count++
		if err := r.engine.writeDatagram(r.data); err != nil {
			// The write policy already had its say; a propagated failure
			// means further attempts are pointless.
			break
		}
		r.engine.logDelivery(log.DeliveryRetransmit, r.tx.MessageID(), r.count, r.backoff.Peek())
	}

	if !r.tx.failIfUnresolved() {
		// A peer reaction landed while this task was exiting; the
		// receiver settles the exchange.
		return
	}

	kind := log.DeliveryTimedOut
	if r.stopFired() || r.engine.isStopped() {
		kind = log.DeliveryStopped
	}
	r.engine.completeFailed(r.tx, kind, r.count)
}
