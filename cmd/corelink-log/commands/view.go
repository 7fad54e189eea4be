// Package commands implements the corelink-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	MessageID *uint16
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [engine:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	engineID := shortenEngineID(event.EngineID)
	dir := event.Direction.String()

	// Determine event type label
	var typeLabel string
	switch {
	case event.Datagram != nil:
		typeLabel = "Datagram"
	case event.Message != nil:
		typeLabel = event.Message.Type.String()
	case event.Delivery != nil:
		typeLabel = event.Delivery.Kind.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [engine:%s] %-3s %s %s\n", ts, engineID, dir, event.Layer.String(), typeLabel)

	// Type-specific details
	switch {
	case event.Datagram != nil:
		formatDatagramDetails(w, event.Datagram)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Delivery != nil:
		formatDeliveryDetails(w, event.Delivery)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenEngineID returns the first 8 characters of the engine ID.
func shortenEngineID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatDatagramDetails writes datagram-specific details.
func formatDatagramDetails(w io.Writer, d *log.DatagramEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", d.Size)
	if len(d.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(d.Data))
		if d.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatMessageDetails writes message-specific details.
func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  MessageID: %d\n", msg.MessageID)
	fmt.Fprintf(w, "  Code: %s\n", msg.Code.String())
	if len(msg.Token) > 0 {
		fmt.Fprintf(w, "  Token: %s\n", hex.EncodeToString(msg.Token))
	}
	if msg.Observe != nil {
		fmt.Fprintf(w, "  Observe: %d\n", *msg.Observe)
	}
	if msg.PayloadSize > 0 {
		fmt.Fprintf(w, "  PayloadSize: %d\n", msg.PayloadSize)
	}
}

// formatDeliveryDetails writes retransmission lifecycle details.
func formatDeliveryDetails(w io.Writer, d *log.DeliveryEvent) {
	fmt.Fprintf(w, "  MessageID: %d\n", d.MessageID)
	if d.Attempt > 0 {
		fmt.Fprintf(w, "  Attempt: %d\n", d.Attempt)
	}
	if d.Backoff > 0 {
		fmt.Fprintf(w, "  Backoff: %s\n", formatDuration(d.Backoff))
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	return parseLayer(s)
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "link":
		return log.LayerLink, nil
	case "message":
		return log.LayerMessage, nil
	case "delivery":
		return log.LayerDelivery, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be link, message, or delivery)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "delivery":
		return log.CategoryDelivery, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, delivery, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		// Apply filter
		if filter.Layer != nil && event.Layer != *filter.Layer {
			continue
		}
		if filter.Direction != nil && event.Direction != *filter.Direction {
			continue
		}
		if filter.Category != nil && event.Category != *filter.Category {
			continue
		}
		if filter.MessageID != nil && !matchesMessageID(event, *filter.MessageID) {
			continue
		}

		formatEvent(output, event)
	}

	return nil
}

// matchesMessageID reports whether the event belongs to the exchange with
// the given message ID.
func matchesMessageID(event log.Event, mid uint16) bool {
	switch {
	case event.Message != nil:
		return event.Message.MessageID == mid
	case event.Delivery != nil:
		return event.Delivery.MessageID == mid
	default:
		return false
	}
}
