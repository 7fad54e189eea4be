package exchange

import (
	"bytes"
	"errors"

	"github.com/corelink-protocol/corelink-go/pkg/log"
	"github.com/corelink-protocol/corelink-go/pkg/message"
	"github.com/corelink-protocol/corelink-go/pkg/transport"
)

// receiveLoop polls the transport and routes inbound datagrams until the
// engine stops. At most one runs per engine, started lazily by the first
// send that can expect a reply.
func (e *Engine) receiveLoop() {
	defer close(e.receiverDone)

	for !e.isStopped() {
		data, err := e.transport.Receive(e.pollTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				// Nothing arrived; poll again so the stop flag is
				// observed promptly.
				continue
			}
			if errors.Is(err, transport.ErrClosed) {
				return
			}
			if e.readPolicy != nil && e.readPolicy(err) == Continue {
				e.logger.Debug("absorbed receive error",
					"engine_id", e.engineID, "err", err)
				continue
			}
			e.logError(log.DirectionIn, log.LayerLink, err, "receive")
			e.logger.Error("receive failed, stopping engine",
				"engine_id", e.engineID, "err", err)
			e.markStopped()
			return
		}
		e.handleDatagram(data)
	}
}

// handleDatagram decodes one inbound datagram and routes it. Malformed
// datagrams are discarded; they never terminate the loop.
func (e *Engine) handleDatagram(data []byte) {
	e.logDatagram(log.DirectionIn, data)

	msg, err := e.codec.Decode(data)
	if err != nil {
		e.logError(log.DirectionIn, log.LayerMessage, err, "decode")
		e.logger.Debug("discarding malformed datagram",
			"engine_id", e.engineID, "size", len(data), "err", err)
		return
	}
	e.logMessage(log.DirectionIn, msg)

	switch {
	case msg.IsEmpty():
		e.handleEmpty(msg)
	case msg.IsResponse():
		e.handleResponse(msg)
	case msg.IsRequest():
		e.handleRequest(msg)
	default:
		// Reserved code classes; nothing to do with them.
		e.logger.Debug("discarding message with reserved code",
			"engine_id", e.engineID, "code", msg.Code)
	}
}

// handleEmpty routes a pure control message (code 0) by message ID.
// Control messages resolve transactions without touching the application
// callback.
func (e *Engine) handleEmpty(msg *message.Message) {
	switch msg.Type {
	case message.Acknowledgement:
		tx, ok := e.table.LookupMID(msg.MessageID)
		if !ok {
			e.logger.Debug("acknowledgement for unknown message ID",
				"engine_id", e.engineID, "mid", msg.MessageID)
			return
		}
		e.stopAndJoin(tx.markAcknowledged())
		e.logDelivery(log.DeliveryAcknowledged, msg.MessageID, 0, 0)

		// A tokenless exchange cannot be answered further; the same goes
		// for one that asked the peer to suppress all responses. Anything
		// else keeps its token registered for the separate response.
		if len(tx.Token()) == 0 || tx.Request().SuppressesResponse() {
			e.table.Remove(msg.MessageID)
			tx.complete()
		} else {
			e.table.ReleaseMID(msg.MessageID)
		}

	case message.Reset:
		tx, ok := e.table.LookupMID(msg.MessageID)
		if !ok {
			e.logger.Debug("reset for unknown message ID",
				"engine_id", e.engineID, "mid", msg.MessageID)
			return
		}
		e.stopAndJoin(tx.markRejected())
		e.logDelivery(log.DeliveryRejected, msg.MessageID, 0, 0)
		e.table.Remove(msg.MessageID)
		if e.observe != nil && len(tx.Token()) > 0 {
			e.observe.Cancel(tx.Token())
			e.logStateChange(log.StateEntityObserve, "", "CANCELLED", "reset")
		}
		tx.complete()

	case message.Confirmable:
		// A ping. The only valid reaction is a reset.
		e.sendReset(msg.MessageID)
	}
}

// handleResponse routes a response (class 2-5) by token. A piggybacked
// response that misses the token index falls back to the message ID,
// which is the only correlator a tokenless exchange has.
func (e *Engine) handleResponse(resp *message.Message) {
	tx, ok := e.table.LookupToken(resp.Token)
	if !ok && resp.Type == message.Acknowledgement {
		if cand, found := e.table.LookupMID(resp.MessageID); found &&
			cand.Request().IsRequest() && bytes.Equal(cand.Token(), resp.Token) {
			tx, ok = cand, true
		}
	}
	if !ok {
		// Duplicate or stale; nothing to correlate it with.
		e.logger.Debug("response for unknown token",
			"engine_id", e.engineID, "mid", resp.MessageID)
		return
	}

	// Record the response before stopping the retransmission task, so the
	// task's exit checks see a resolved exchange. A piggybacked response
	// (type ACK) also acknowledges the request's message ID.
	piggyback := resp.Type == message.Acknowledgement
	r, accepted := tx.deliver(resp, piggyback)
	e.stopAndJoin(r)
	if !accepted {
		// The retransmission budget ran out first; the failure callback
		// already fired and the response is stale.
		e.logger.Debug("response for a failed exchange",
			"engine_id", e.engineID, "mid", resp.MessageID)
		return
	}
	if piggyback {
		e.logDelivery(log.DeliveryAcknowledged, tx.MessageID(), 0, 0)
	}

	// A separate confirmable response needs a message-layer
	// acknowledgement of its own.
	if !piggyback && resp.IsConfirmable() {
		e.sendAck(resp.MessageID)
	}

	if e.block != nil && e.block.OnReceive(resp) {
		// More body segments coming; the exchange stays open.
		tx.setContinuing(true)
		return
	}

	if e.observe != nil && e.observe.OnReceive(resp) {
		// Active observation: the token stays registered and the callback
		// fires for this and every subsequent notification.
		tx.setSubscription(true)
		e.table.ReleaseMID(tx.MessageID())
		tx.invokeCallback(resp)
		tx.complete()
		return
	}

	e.table.Remove(tx.MessageID())
	e.table.RemoveToken(resp.Token)
	tx.invokeCallback(resp)
	tx.complete()
}

// handleRequest reacts to an inbound request. This engine serves no
// resources, so confirmable requests are rejected and the rest dropped.
func (e *Engine) handleRequest(msg *message.Message) {
	if msg.IsConfirmable() {
		e.sendReset(msg.MessageID)
	}
}

// stopAndJoin signals a retransmission task and waits for it to finish.
// Joining outside the transaction lock keeps the task free to run its
// own final checks; once this returns, no further retransmission of the
// message is possible.
func (e *Engine) stopAndJoin(r *retransmitter) {
	if r == nil {
		return
	}
	r.fireStop()
	<-r.done
}

// sendAck emits an empty acknowledgement for the given message ID.
func (e *Engine) sendAck(mid uint16) {
	e.sendControlReply(message.EmptyAck(mid))
}

// sendReset emits an empty reset for the given message ID.
func (e *Engine) sendReset(mid uint16) {
	e.sendControlReply(message.EmptyReset(mid))
}

// sendControlReply encodes and writes a generated control message.
// Failures are logged and absorbed; the peer will retransmit if it cares.
func (e *Engine) sendControlReply(msg *message.Message) {
	data, err := e.codec.Encode(msg)
	if err != nil {
		e.logError(log.DirectionOut, log.LayerMessage, err, "encode control")
		return
	}
	e.logMessage(log.DirectionOut, msg)
	if err := e.writeDatagram(data); err != nil {
		e.logger.Debug("failed to send control reply",
			"engine_id", e.engineID, "mid", msg.MessageID, "err", err)
	}
}
