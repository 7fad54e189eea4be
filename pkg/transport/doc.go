// Package transport provides connected datagram links for CoreLink.
//
// A Transport carries whole datagrams between exactly two endpoints. The
// delivery engine drives it through a narrow contract: Open, Send, Receive
// with a timeout, Close. Reliability, retransmission and correlation live
// above this layer; the link itself may lose, duplicate or reorder
// datagrams.
//
// Four implementations are provided:
//   - UDPTransport: a connected UDP socket (the canonical link)
//   - QUICTransport: QUIC datagrams (RFC 9221), for links that need encryption
//   - StreamTransport: length-prefixed framing over any net.Conn
//   - PipeTransport: an in-process pair for tests
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│    Messages (pkg/message)      │
//	├────────────────────────────────┤
//	│    Delivery (pkg/exchange)     │
//	├────────────────────────────────┤
//	│  Datagram link (this package)  │
//	└────────────────────────────────┘
//
// # Timeouts
//
// Receive takes an explicit timeout and returns ErrTimeout when nothing
// arrived in time. The delivery engine polls with short timeouts so that
// shutdown is never blocked on a quiet link.
package transport
