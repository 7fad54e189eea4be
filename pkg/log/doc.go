// Package log provides structured protocol logging for CoreLink.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (link, message, delivery).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/corelink/client.clog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/corelink/client.clog"),
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Link: Raw datagram bytes (DatagramEvent)
//   - Message: Decoded messages (MessageEvent)
//   - Delivery: Retransmission lifecycle (DeliveryEvent)
//
// Engine state changes and errors have dedicated event types.
//
// # File Format
//
// Capture files use CBOR encoding with .clog extension. The corelink-log
// CLI tool provides viewing, filtering, and export capabilities.
package log
