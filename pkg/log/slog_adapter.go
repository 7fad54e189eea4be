package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("engine_id", event.EngineID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	// Add type-specific attributes
	switch {
	case event.Datagram != nil:
		attrs = append(attrs,
			slog.Int("datagram_size", event.Datagram.Size),
			slog.Bool("truncated", event.Datagram.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Message.Type.String()),
			slog.String("code", event.Message.Code.String()),
			slog.Uint64("mid", uint64(event.Message.MessageID)),
		)
		if len(event.Message.Token) > 0 {
			attrs = append(attrs, slog.String("token", hex.EncodeToString(event.Message.Token)))
		}
		if event.Message.PayloadSize > 0 {
			attrs = append(attrs, slog.Int("payload_size", event.Message.PayloadSize))
		}
		if event.Message.Observe != nil {
			attrs = append(attrs, slog.Uint64("observe", uint64(*event.Message.Observe)))
		}
	case event.Delivery != nil:
		attrs = append(attrs,
			slog.String("delivery", event.Delivery.Kind.String()),
			slog.Uint64("mid", uint64(event.Delivery.MessageID)),
			slog.Int("attempt", event.Delivery.Attempt),
		)
		if event.Delivery.Backoff > 0 {
			attrs = append(attrs, slog.Duration("backoff", event.Delivery.Backoff))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
