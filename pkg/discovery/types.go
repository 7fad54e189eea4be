package discovery

import (
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypePeer is the service type advertised by reachable peers.
	ServiceTypePeer = "_corelink._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default CoreLink port.
	DefaultPort = 5683
)

// TXT record key constants.
const (
	TXTKeyPeerID     = "id" // Peer identifier (required)
	TXTKeyVersion    = "v"  // Protocol version (required)
	TXTKeyTransports = "tp" // Supported transports, comma-separated (optional)
	TXTKeyName       = "fn" // Friendly name (optional)
)

// ProtocolVersion is the protocol version peers advertise.
const ProtocolVersion = "1"

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("peer not found")
)

// TransportKind names a transport a peer supports.
type TransportKind string

const (
	// TransportUDP is a plain UDP datagram transport.
	TransportUDP TransportKind = "udp"

	// TransportQUIC is a QUIC datagram transport.
	TransportQUIC TransportKind = "quic"

	// TransportSerial is a framed byte-stream link (serial, TCP tunnel).
	TransportSerial TransportKind = "serial"
)

// PeerInfo contains the information a peer advertises about itself.
type PeerInfo struct {
	// PeerID identifies this peer; typically a UUID.
	PeerID string

	// Transports lists the transports the peer accepts.
	Transports []TransportKind

	// Name is an optional friendly name; it doubles as the mDNS
	// instance name when set.
	Name string

	// Port is the service port. Zero means DefaultPort.
	Port uint16

	// Host is the hostname to advertise. Empty means the OS hostname.
	Host string
}

// Peer represents a peer found via mDNS.
type Peer struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the hostname (e.g. "sensor-7.local").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses across all interfaces.
	Addresses []string

	// PeerID is the peer identifier (from TXT "id").
	PeerID string

	// Version is the protocol version (from TXT "v").
	Version string

	// Transports lists supported transports (from TXT "tp").
	Transports []TransportKind

	// Name is the optional friendly name (from TXT "fn").
	Name string
}
