// Command corelink-cli is a CoreLink client for talking to a single peer.
//
// It runs one-shot operations against a peer, or an interactive session
// for exploring a peer's resources by hand.
//
// Usage:
//
//	corelink-cli [flags] <operation> [path] [payload]
//
// Operations:
//
//	get <path>              Retrieve a resource
//	post <path> <payload>   Submit a payload to a resource
//	put <path> <payload>    Replace a resource
//	delete <path>           Remove a resource
//	observe <path>          Subscribe to resource changes (runs until interrupted)
//	discover [query]        Fetch the peer's resource directory
//	ping                    Check peer liveness
//
// Examples:
//
//	# Read a resource over UDP
//	corelink-cli -peer 192.168.1.40:5683 get /sensors/temp
//
//	# Fire-and-forget update with response suppression
//	corelink-cli -peer 192.168.1.40:5683 -non -no-response put /actuators/led on
//
//	# Watch a resource, capturing a protocol log
//	corelink-cli -peer 192.168.1.40:5683 -protocol-log session.clog observe /sensors/temp
//
//	# Interactive session over QUIC with the lossy parameter profile
//	corelink-cli -peer 192.168.1.40:5684 -transport quic -profile lossy -interactive
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corelink-protocol/corelink-go/cmd/corelink-cli/interactive"
	"github.com/corelink-protocol/corelink-go/pkg/client"
	"github.com/corelink-protocol/corelink-go/pkg/exchange"
	"github.com/corelink-protocol/corelink-go/pkg/log"
	"github.com/corelink-protocol/corelink-go/pkg/message"
	"github.com/corelink-protocol/corelink-go/pkg/transport"
)

// Config holds the command-line configuration. Most fields can also be
// set from a yaml config file; explicit flags override the file.
type Config struct {
	Peer          string
	Transport     string
	Profile       string
	AckTimeout    time.Duration
	RandomFactor  float64
	MaxRetransmit int
	Timeout       time.Duration
	ProtocolLog   string
	LogLevel      string
	Insecure      bool

	ConfigFile  string
	Interactive bool
	NonConfirm  bool
	NoResponse  bool
	Query       string
}

// fileConfig is the on-disk shape of the config file. Durations are
// strings in Go syntax ("2s", "500ms").
type fileConfig struct {
	Peer          string  `yaml:"peer"`
	Transport     string  `yaml:"transport"`
	Profile       string  `yaml:"profile"`
	AckTimeout    string  `yaml:"ack-timeout"`
	RandomFactor  float64 `yaml:"ack-random-factor"`
	MaxRetransmit *int    `yaml:"max-retransmit"`
	Timeout       string  `yaml:"timeout"`
	ProtocolLog   string  `yaml:"protocol-log"`
	LogLevel      string  `yaml:"log-level"`
	Insecure      bool    `yaml:"insecure"`
}

var config Config

func init() {
	flag.StringVar(&config.Peer, "peer", "", "Peer address (host:port, required)")
	flag.StringVar(&config.Transport, "transport", "udp", "Transport to use (udp, quic)")
	flag.StringVar(&config.Profile, "profile", "", "Transmission parameter profile (default, fast, lossy)")
	flag.DurationVar(&config.AckTimeout, "ack-timeout", 0, "Initial retransmission timeout (overrides profile)")
	flag.Float64Var(&config.RandomFactor, "ack-random-factor", 0, "Retransmission timeout spread factor (overrides profile)")
	flag.IntVar(&config.MaxRetransmit, "max-retransmit", -1, "Maximum retransmission count (overrides profile)")
	flag.DurationVar(&config.Timeout, "timeout", 0, "Per-request timeout (default 60s)")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write protocol events to this .clog file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&config.Insecure, "insecure", false, "Skip TLS certificate verification (quic only)")
	flag.StringVar(&config.ConfigFile, "config", "", "YAML config file")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start an interactive session")
	flag.BoolVar(&config.NonConfirm, "non", false, "Send requests as non-confirmable")
	flag.BoolVar(&config.NoResponse, "no-response", false, "Ask the peer to suppress all responses")
	flag.StringVar(&config.Query, "query", "", "Uri-Query options, comma-separated")
}

func main() {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)
	flag.Parse()

	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile); err != nil {
			stdlog.Fatalf("Failed to load config file: %v", err)
		}
	}

	if config.Peer == "" {
		fmt.Fprintln(os.Stderr, "Error: -peer is required")
		flag.Usage()
		os.Exit(1)
	}
	if !config.Interactive && flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: operation required (get, post, put, delete, observe, discover, ping)")
		flag.Usage()
		os.Exit(1)
	}

	setupLogging()

	c, protoLog, err := buildClient()
	if err != nil {
		stdlog.Fatalf("Failed to create client: %v", err)
	}
	defer func() {
		c.Close()
		if protoLog != nil {
			protoLog.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if config.Interactive {
		session, err := interactive.New(c)
		if err != nil {
			stdlog.Fatalf("Failed to start interactive session: %v", err)
		}
		// Route log output through readline so it does not mangle the
		// prompt.
		stdlog.SetOutput(session.Stdout())
		session.Run(ctx, cancel)
		return
	}

	if err := runOperation(ctx, c, flag.Args()); err != nil {
		stdlog.Fatalf("Operation failed: %v", err)
	}
}

// loadConfigFile reads the yaml config, then re-parses the command line
// so that explicit flags win over file values.
func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fc.Peer != "" {
		config.Peer = fc.Peer
	}
	if fc.Transport != "" {
		config.Transport = fc.Transport
	}
	if fc.Profile != "" {
		config.Profile = fc.Profile
	}
	if fc.AckTimeout != "" {
		d, err := time.ParseDuration(fc.AckTimeout)
		if err != nil {
			return fmt.Errorf("invalid ack-timeout: %w", err)
		}
		config.AckTimeout = d
	}
	if fc.RandomFactor > 0 {
		config.RandomFactor = fc.RandomFactor
	}
	if fc.MaxRetransmit != nil {
		config.MaxRetransmit = *fc.MaxRetransmit
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		config.Timeout = d
	}
	if fc.ProtocolLog != "" {
		config.ProtocolLog = fc.ProtocolLog
	}
	if fc.LogLevel != "" {
		config.LogLevel = fc.LogLevel
	}
	if fc.Insecure {
		config.Insecure = true
	}

	return flag.CommandLine.Parse(os.Args[1:])
}

func setupLogging() {
	var level slog.Level
	switch strings.ToLower(config.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		stdlog.Fatalf("Unknown log level: %s", config.LogLevel)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func buildClient() (*client.Client, *log.FileLogger, error) {
	var tr transport.Transport
	switch config.Transport {
	case "udp":
		tr = transport.NewUDPTransport(config.Peer)
	case "quic":
		tlsConf := &tls.Config{
			InsecureSkipVerify: config.Insecure,
		}
		tr = transport.NewQUICTransport(config.Peer, tlsConf)
	default:
		return nil, nil, fmt.Errorf("unknown transport: %s", config.Transport)
	}

	params, err := resolveParams()
	if err != nil {
		return nil, nil, err
	}

	var protoLog *log.FileLogger
	var protocolLogger log.Logger
	if config.ProtocolLog != "" {
		protoLog, err = log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create protocol log: %w", err)
		}
		protocolLogger = protoLog
	}

	c, err := client.New(client.Config{
		Transport:      tr,
		Params:         params,
		Timeout:        config.Timeout,
		ProtocolLogger: protocolLogger,
	})
	if err != nil {
		if protoLog != nil {
			protoLog.Close()
		}
		return nil, nil, err
	}
	return c, protoLog, nil
}

// resolveParams merges the profile (or defaults) with per-parameter flag
// overrides.
func resolveParams() (exchange.Params, error) {
	params := exchange.DefaultParams()
	if config.Profile != "" {
		profile, err := exchange.LoadProfile(config.Profile)
		if err != nil {
			names, nerr := exchange.AvailableProfiles()
			if nerr == nil {
				return exchange.Params{}, fmt.Errorf("%w (available: %s)", err, strings.Join(names, ", "))
			}
			return exchange.Params{}, err
		}
		params = profile.Params
	}

	if config.AckTimeout > 0 {
		params.AckTimeout = config.AckTimeout
	}
	if config.RandomFactor > 0 {
		params.AckRandomFactor = config.RandomFactor
	}
	if config.MaxRetransmit >= 0 {
		params.MaxRetransmit = config.MaxRetransmit
	}
	return params, params.Validate()
}

func requestOptions() *client.RequestOptions {
	opts := &client.RequestOptions{
		NonConfirmable: config.NonConfirm,
		NoResponse:     config.NoResponse,
	}
	if config.Query != "" {
		opts.Queries = strings.Split(config.Query, ",")
	}
	return opts
}

func runOperation(ctx context.Context, c *client.Client, args []string) error {
	op := strings.ToLower(args[0])
	args = args[1:]

	switch op {
	case "get":
		if len(args) < 1 {
			return errors.New("get requires a path")
		}
		resp, err := c.Get(ctx, args[0], requestOptions())
		return printOutcome(resp, err)

	case "post":
		if len(args) < 2 {
			return errors.New("post requires a path and a payload")
		}
		resp, err := c.Post(ctx, args[0], message.FormatTextPlain, []byte(strings.Join(args[1:], " ")), requestOptions())
		return printOutcome(resp, err)

	case "put":
		if len(args) < 2 {
			return errors.New("put requires a path and a payload")
		}
		resp, err := c.Put(ctx, args[0], message.FormatTextPlain, []byte(strings.Join(args[1:], " ")), requestOptions())
		return printOutcome(resp, err)

	case "delete":
		if len(args) < 1 {
			return errors.New("delete requires a path")
		}
		resp, err := c.Delete(ctx, args[0], requestOptions())
		return printOutcome(resp, err)

	case "observe":
		if len(args) < 1 {
			return errors.New("observe requires a path")
		}
		return runObserve(ctx, c, args[0])

	case "discover":
		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		return runDiscover(ctx, c, query)

	case "ping":
		if err := c.Ping(ctx); err != nil {
			return err
		}
		fmt.Println("Peer is alive")
		return nil

	default:
		return fmt.Errorf("unknown operation: %s", op)
	}
}

func runObserve(ctx context.Context, c *client.Client, path string) error {
	obs, err := c.Observe(ctx, path, func(resp *client.Response) {
		if resp == nil {
			stdlog.Printf("[%s] delivery failed", path)
			return
		}
		fmt.Printf("%s %s %s\n", time.Now().Format("15:04:05.000"), resp.Code, resp.Payload)
	})
	if err != nil {
		return err
	}
	stdlog.Printf("Observing %s, press Ctrl+C to stop", path)

	<-ctx.Done()

	// The parent context is already cancelled; give the deregistration
	// exchange its own budget.
	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return obs.Cancel(cancelCtx)
}

func runDiscover(ctx context.Context, c *client.Client, query string) error {
	links, err := c.Discover(ctx, query)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		fmt.Println("No resources found")
		return nil
	}
	for _, link := range links {
		line := link.URI
		if len(link.ResourceTypes) > 0 {
			line += " rt=" + strings.Join(link.ResourceTypes, ",")
		}
		if link.Observable {
			line += " [obs]"
		}
		if link.Title != "" {
			line += fmt.Sprintf(" %q", link.Title)
		}
		fmt.Println(line)
	}
	return nil
}

func printOutcome(resp *client.Response, err error) error {
	if err != nil {
		return err
	}
	if resp == nil {
		fmt.Println("Sent (no response expected)")
		return nil
	}
	if len(resp.Payload) > 0 {
		fmt.Printf("%s\n%s\n", resp.Code, resp.Payload)
	} else {
		fmt.Println(resp.Code)
	}
	return nil
}
