// Package discovery implements mDNS/DNS-SD discovery of CoreLink peers.
//
// Peers that accept datagram exchanges advertise a single service type:
//
// # Peer Discovery (_corelink._udp)
//
// Instance name format: the peer's friendly name, or "corelink-<peer-id>"
// when no friendly name is configured.
// TXT records include: id (peer identifier), v (protocol version),
// tp (comma-separated transports, e.g. "udp,quic"), and optionally
// fn (friendly name).
//
// Browsing aggregates announcements per instance name: a peer reachable
// over several interfaces appears once, with all of its addresses merged.
// When an interface's announcement goes away, only the addresses learned
// from it are dropped; the peer disappears once no address remains.
package discovery
