// Package linksim provides an in-memory link with a scriptable peer for
// tests and examples.
//
// A Link implements transport.Transport. Every datagram written to it is
// recorded and handed to the configured Responder, whose returned
// datagrams are queued for the next receives — enough to play a peer that
// acknowledges, answers, stays silent for the first k transmissions, or
// streams notifications. Builders construct the common reply shapes from
// a decoded request.
package linksim
