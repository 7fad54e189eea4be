// Command corelink-browse discovers CoreLink peers on the local network
// via mDNS.
//
// By default it browses for a fixed window and prints every peer found.
// With -watch it keeps running and reports peers as they appear. With
// -advertise it additionally announces this host as a peer, which is
// useful for testing discovery between two machines.
//
// Examples:
//
//	# List peers on the local network
//	corelink-browse
//
//	# Wait for a specific peer
//	corelink-browse -id 3f2a81c4
//
//	# Announce ourselves while watching
//	corelink-browse -watch -advertise -peer-id test-peer -port 5683
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/discovery"
)

// Config holds the command-line configuration.
type Config struct {
	Timeout   time.Duration
	Interface string
	Watch     bool
	FindID    string

	Advertise  bool
	PeerID     string
	Name       string
	Port       int
	Transports string
}

var config Config

func init() {
	flag.DurationVar(&config.Timeout, "timeout", discovery.BrowseTimeout, "How long to browse")
	flag.StringVar(&config.Interface, "interface", "", "Network interface to use (default: all)")
	flag.BoolVar(&config.Watch, "watch", false, "Keep browsing until interrupted")
	flag.StringVar(&config.FindID, "id", "", "Wait for the peer with this ID and print it")

	flag.BoolVar(&config.Advertise, "advertise", false, "Also announce this host as a peer")
	flag.StringVar(&config.PeerID, "peer-id", "", "Peer ID to advertise (required with -advertise)")
	flag.StringVar(&config.Name, "name", "", "Friendly name to advertise")
	flag.IntVar(&config.Port, "port", discovery.DefaultPort, "Port to advertise")
	flag.StringVar(&config.Transports, "transports", "udp", "Transports to advertise, comma-separated (udp, quic, serial)")
}

func main() {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if config.Advertise {
		stop, err := startAdvertiser()
		if err != nil {
			stdlog.Fatalf("Failed to advertise: %v", err)
		}
		defer stop()
	}

	browser := discovery.NewBrowser(discovery.BrowserConfig{
		Interface: config.Interface,
	})

	switch {
	case config.FindID != "":
		findPeer(ctx, browser)
	case config.Watch:
		watchPeers(ctx, browser)
	default:
		listPeers(ctx, browser)
	}
}

func startAdvertiser() (func(), error) {
	if config.PeerID == "" {
		return nil, fmt.Errorf("-peer-id is required with -advertise")
	}

	var transports []discovery.TransportKind
	for _, t := range strings.Split(config.Transports, ",") {
		transports = append(transports, discovery.TransportKind(strings.TrimSpace(t)))
	}

	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		Interface: config.Interface,
	})
	err := adv.Advertise(&discovery.PeerInfo{
		PeerID:     config.PeerID,
		Name:       config.Name,
		Port:       uint16(config.Port),
		Transports: transports,
	})
	if err != nil {
		return nil, err
	}
	stdlog.Printf("Advertising peer %s on port %d", config.PeerID, config.Port)
	return adv.Stop, nil
}

func findPeer(ctx context.Context, browser *discovery.Browser) {
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	stdlog.Printf("Waiting for peer %s...", config.FindID)
	peer, err := browser.FindByID(ctx, config.FindID)
	if err != nil {
		stdlog.Fatalf("Peer not found: %v", err)
	}
	printPeer(peer)
}

func watchPeers(ctx context.Context, browser *discovery.Browser) {
	results, err := browser.Browse(ctx)
	if err != nil {
		stdlog.Fatalf("Failed to browse: %v", err)
	}

	stdlog.Println("Watching for peers, press Ctrl+C to stop")
	for peer := range results {
		printPeer(peer)
	}
}

func listPeers(ctx context.Context, browser *discovery.Browser) {
	peers, err := browser.FindPeers(ctx, config.Timeout)
	if err != nil {
		stdlog.Fatalf("Failed to browse: %v", err)
	}

	if len(peers) == 0 {
		fmt.Println("No peers found")
		return
	}
	for _, peer := range peers {
		printPeer(peer)
	}
}

func printPeer(peer *discovery.Peer) {
	name := peer.InstanceName
	if peer.Name != "" && peer.Name != name {
		name = fmt.Sprintf("%s (%s)", name, peer.Name)
	}

	transports := make([]string, 0, len(peer.Transports))
	for _, t := range peer.Transports {
		transports = append(transports, string(t))
	}

	fmt.Printf("%s\n", name)
	fmt.Printf("  Peer ID:    %s\n", peer.PeerID)
	fmt.Printf("  Host:       %s:%d\n", peer.Host, peer.Port)
	if len(peer.Addresses) > 0 {
		fmt.Printf("  Addresses:  %s\n", strings.Join(peer.Addresses, ", "))
	}
	if len(transports) > 0 {
		fmt.Printf("  Transports: %s\n", strings.Join(transports, ", "))
	}
	fmt.Println()
}
