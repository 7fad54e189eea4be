// Package exchange implements reliable message delivery over lossy
// datagram transports.
//
// This package handles:
//   - Transaction tracking by message ID and token
//   - Retransmission of confirmable messages with exponential backoff
//   - A receiver loop matching inbound datagrams to open transactions
//   - Separate responses, piggybacked responses, and empty controls
//
// # Retransmission Strategy
//
// A confirmable message is retransmitted until acknowledged, rejected, or
// the retransmission budget runs out:
//
//  1. Initial delay: drawn uniformly from
//     [AckTimeout, AckTimeout x AckRandomFactor]
//  2. Exponential increase: the delay doubles after each retransmission
//  3. Budget: at most MaxRetransmit retransmissions; the last one waits
//     out a full acknowledgement window before the exchange is failed
//  4. Defaults: AckTimeout 2s, AckRandomFactor 1.5, MaxRetransmit 4
//
// Every retransmission reuses the bytes of the original datagram; the
// message ID never changes mid-exchange.
//
// # Usage
//
// The Engine is the entry point. It owns its Transport exclusively and is
// safe for concurrent use:
//
//	tr := transport.NewUDPTransport("device.local:5683")
//	eng, err := exchange.New(exchange.DefaultConfig(tr))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	req := message.NewRequest(message.GET)
//	req.SetPath("/temperature")
//	tx, err := eng.Send(req, func(resp *message.Message) {
//	    // resp is nil when delivery definitively failed
//	})
//
// The callback fires once with the response (or repeatedly for
// subscription notifications), or once with nil when the retransmission
// budget is exhausted or the engine shuts down with the exchange
// unresolved. Callers that prefer blocking can wait on the returned
// Transaction's Done channel and inspect its state.
package exchange
