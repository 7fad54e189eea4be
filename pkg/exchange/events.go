package exchange

import (
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/log"
	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// maxLoggedDatagram bounds the raw bytes copied into link-layer events.
// Larger datagrams are recorded truncated with their full size.
const maxLoggedDatagram = 256

// newEvent stamps the shared envelope fields of a protocol event.
func (e *Engine) newEvent(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp:  time.Now(),
		EngineID:   e.engineID,
		Direction:  dir,
		Layer:      layer,
		Category:   cat,
		RemoteAddr: e.remoteAddr,
	}
}

// logDatagram emits a link-layer event for one datagram on the wire.
func (e *Engine) logDatagram(dir log.Direction, data []byte) {
	ev := e.newEvent(dir, log.LayerLink, log.CategoryMessage)
	de := &log.DatagramEvent{Size: len(data)}
	if len(data) > maxLoggedDatagram {
		de.Data = append([]byte(nil), data[:maxLoggedDatagram]...)
		de.Truncated = true
	} else {
		de.Data = append([]byte(nil), data...)
	}
	ev.Datagram = de
	e.plog.Log(ev)
}

// logMessage emits a message-layer event for one decoded message.
func (e *Engine) logMessage(dir log.Direction, msg *message.Message) {
	ev := e.newEvent(dir, log.LayerMessage, log.CategoryMessage)
	me := &log.MessageEvent{
		Type:        msg.Type,
		Code:        msg.Code,
		MessageID:   msg.MessageID,
		Token:       msg.Token,
		PayloadSize: len(msg.Payload),
	}
	if v, ok := msg.Observe(); ok {
		obs := v
		me.Observe = &obs
	}
	ev.Message = me
	e.plog.Log(ev)
}

// logDelivery emits a delivery-layer lifecycle event. The direction is
// always outbound: delivery events describe the fate of sent messages.
func (e *Engine) logDelivery(kind log.DeliveryKind, mid uint16, attempt int, backoff time.Duration) {
	ev := e.newEvent(log.DirectionOut, log.LayerDelivery, log.CategoryDelivery)
	ev.Delivery = &log.DeliveryEvent{
		Kind:      kind,
		MessageID: mid,
		Attempt:   attempt,
		Backoff:   backoff,
	}
	e.plog.Log(ev)
}

// logStateChange emits a state transition event.
func (e *Engine) logStateChange(entity log.StateEntity, oldState, newState, reason string) {
	ev := e.newEvent(log.DirectionOut, log.LayerDelivery, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   entity,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	e.plog.Log(ev)
}

// logError emits an error event at the given layer.
func (e *Engine) logError(dir log.Direction, layer log.Layer, err error, context string) {
	ev := e.newEvent(dir, layer, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
	}
	e.plog.Log(ev)
}
