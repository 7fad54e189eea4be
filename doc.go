// Package corelink is the root of the CoreLink protocol implementation.
//
// CoreLink is a lightweight request/response protocol for constrained
// datagram links, with message-layer reliability (acknowledgements and
// exponential-backoff retransmission), token-correlated exchanges,
// resource observation, and segmented transfers.
//
// The interesting packages live under pkg/:
//
//   - pkg/message: message model and wire codec
//   - pkg/exchange: the delivery engine (MID transactions, retransmission)
//   - pkg/transport: datagram transports (UDP, QUIC)
//   - pkg/client: high-level request API
//   - pkg/observe: observation registry
//   - pkg/block: segmented response tracking
//   - pkg/log: structured protocol event logging
//   - pkg/discovery: mDNS peer discovery
package corelink
