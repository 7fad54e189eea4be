// Package block handles segmented transfers at the option level.
//
// A peer that cannot fit a resource representation into one datagram
// splits it into numbered segments and describes each with the Block2
// option: segment number, a "more segments follow" flag, and the segment
// size encoded as a power-of-two exponent.
//
// The Tracker plugs into the delivery engine as its block layer. It
// detects continuation — a response whose Block2 option has the more flag
// set — so the engine keeps the exchange open instead of completing it on
// the first segment. The application callback fires once, with the final
// segment; the Tracker records per-transfer progress (segments seen, bytes
// carried, gaps) for inspection but does not buffer or reassemble payloads.
package block
