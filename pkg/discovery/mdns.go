package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Zero means DefaultTTL.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}

// Advertiser announces a CoreLink peer over mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates a new mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Advertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts announcing the peer. A second call replaces the
// running announcement.
func (a *Advertiser) Advertise(info *PeerInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing if any
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instanceName := InstanceName(info)
	if err := ValidateInstanceName(instanceName); err != nil {
		return err
	}

	txtStrings := TXTRecordsToStrings(EncodePeerTXT(info))

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instanceName,
		ServiceTypePeer,
		Domain,
		port,
		txtStrings,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register peer service: %w", err)
	}

	a.server = server
	return nil
}

// Update replaces the TXT records of the running announcement.
func (a *Advertiser) Update(info *PeerInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotFound
	}

	a.server.SetText(TXTRecordsToStrings(EncodePeerTXT(info)))
	return nil
}

// Stop withdraws the announcement. Safe to call when not advertising.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// InstanceName derives the mDNS instance name for a peer: its friendly
// name, or "corelink-<peer-id>" when no name is configured. The result is
// truncated to the DNS label limit.
func InstanceName(info *PeerInfo) string {
	name := info.Name
	if name == "" {
		name = "corelink-" + info.PeerID
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{Interface: ""}
}

// Browser searches for CoreLink peers over mDNS.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a new mDNS browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse searches for peers until the context is cancelled. Announcements
// are aggregated by instance name: addresses learned on multiple
// interfaces are merged into a single entry, and a peer is only dropped
// once every interface's announcement has gone away.
func (b *Browser) Browse(ctx context.Context) (<-chan *Peer, error) {
	out := make(chan *Peer)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	// Process entries with aggregation
	go func() {
		defer close(out)

		// Track peers by instance name, aggregating addresses
		peers := make(map[string]*Peer)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				peer := b.entryToPeer(entry)
				if peer == nil {
					continue
				}

				existing, found := peers[peer.InstanceName]
				if found {
					// Merge addresses into existing entry
					existing.Addresses = mergeAddresses(existing.Addresses, peer.Addresses)
				} else {
					// New peer - store and emit
					peers[peer.InstanceName] = peer
					select {
					case out <- peer:
					case <-ctx.Done():
						return
					}
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				// Remove addresses that came from this interface
				if existing, found := peers[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					// If no addresses remain, remove the peer
					if len(existing.Addresses) == 0 {
						delete(peers, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// Start browsing in background
	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypePeer, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindByID searches for a specific peer. Returns when found or when the
// context is cancelled.
func (b *Browser) FindByID(ctx context.Context, peerID string) (*Peer, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case peer, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if peer.PeerID == peerID {
				return peer, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// FindPeers collects every peer discovered within timeout.
func (b *Browser) FindPeers(ctx context.Context, timeout time.Duration) ([]*Peer, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	var peers []*Peer
	for {
		select {
		case peer, ok := <-results:
			if !ok {
				return peers, nil
			}
			peers = append(peers, peer)
		case <-ctx.Done():
			return peers, nil
		}
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToPeer converts a zeroconf entry to a Peer.
func (b *Browser) entryToPeer(entry *zeroconf.ServiceEntry) *Peer {
	txt := StringsToTXTRecords(entry.Text)
	peer, err := DecodePeerTXT(txt)
	if err != nil {
		return nil
	}

	// Collect addresses
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	peer.InstanceName = entry.Instance
	peer.Host = entry.HostName
	peer.Port = uint16(entry.Port)
	peer.Addresses = addrs
	return peer
}

// mergeAddresses adds new addresses to the existing list, avoiding duplicates.
func mergeAddresses(existing, fresh []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range fresh {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the addresses of a withdrawn announcement.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
