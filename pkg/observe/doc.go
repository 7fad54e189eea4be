// Package observe tracks observation registrations for the delivery engine.
//
// An observation is established by a GET request carrying the Observe
// option with value 0 (register). The peer then answers with the current
// resource state and keeps sending notifications — responses reusing the
// request's token — as the state changes. The Registry keeps one
// Registration per live token so the engine can tell a notification stream
// from an ordinary single-response exchange.
//
// # Cancellation
//
// An observation ends in one of four ways:
//   - a deregister request (Observe option value 1) reusing the token,
//   - the client rejecting a notification with Reset,
//   - the peer sending a response without the Observe option,
//   - an explicit Cancel (the engine does this when the peer resets the
//     original request, and on shutdown).
//
// # Sequence Tracking
//
// Notifications carry a sequence number in the Observe option, wrapping
// modulo 2^24. The Registry records the newest sequence seen per
// registration and counts reordered arrivals; it does not filter them —
// every notification still reaches the application callback.
//
// # Lifecycle
//
// Registrations do not survive the engine that produced them. There is no
// renewal: a peer that silently forgets an observation simply stops
// notifying, and it is up to the application to re-register.
package observe
