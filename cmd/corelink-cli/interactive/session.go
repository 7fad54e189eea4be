// Package interactive provides the interactive command-line interface
// for corelink-cli.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/corelink-protocol/corelink-go/pkg/client"
	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// Session handles interactive mode for corelink-cli.
type Session struct {
	client *client.Client
	rl     *readline.Instance

	// Live observations by resource path, for the cancel command.
	observations map[string]*client.Observation
}

// New creates a new interactive session handler.
func New(c *client.Client) (*Session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "corelink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Session{
		client:       c,
		rl:           rl,
		observations: make(map[string]*client.Observation),
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Session) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (s *Session) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run starts the interactive command loop.
func (s *Session) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "get", "g":
			s.cmdGet(ctx, args)

		case "post":
			s.cmdPost(ctx, args)

		case "put":
			s.cmdPut(ctx, args)

		case "delete", "del":
			s.cmdDelete(ctx, args)

		case "observe", "obs":
			s.cmdObserve(ctx, args)

		case "cancel":
			s.cmdCancel(ctx, args)

		case "discover", "disc":
			s.cmdDiscover(ctx, args)

		case "ping":
			s.cmdPing(ctx)

		case "mid":
			s.cmdMID(args)

		case "status":
			s.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (s *Session) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `Commands:
  get <path>              Retrieve a resource
  post <path> <payload>   Submit a payload to a resource
  put <path> <payload>    Replace a resource
  delete <path>           Remove a resource
  observe <path>          Subscribe to resource changes
  cancel <path>           Cancel an observation
  discover [query]        Fetch the peer's resource directory
  ping                    Check peer liveness
  mid [value]             Show or set the next message ID
  status                  Show session status
  help                    Show this help
  quit                    Exit
`)
}

func (s *Session) cmdGet(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: get <path>")
		return
	}
	resp, err := s.client.Get(ctx, args[0], nil)
	s.printOutcome(resp, err)
}

func (s *Session) cmdPost(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: post <path> <payload>")
		return
	}
	payload := strings.Join(args[1:], " ")
	resp, err := s.client.Post(ctx, args[0], message.FormatTextPlain, []byte(payload), nil)
	s.printOutcome(resp, err)
}

func (s *Session) cmdPut(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: put <path> <payload>")
		return
	}
	payload := strings.Join(args[1:], " ")
	resp, err := s.client.Put(ctx, args[0], message.FormatTextPlain, []byte(payload), nil)
	s.printOutcome(resp, err)
}

func (s *Session) cmdDelete(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: delete <path>")
		return
	}
	resp, err := s.client.Delete(ctx, args[0], nil)
	s.printOutcome(resp, err)
}

func (s *Session) cmdObserve(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: observe <path>")
		return
	}
	path := args[0]
	if _, exists := s.observations[path]; exists {
		fmt.Fprintf(s.rl.Stdout(), "Already observing %s\n", path)
		return
	}

	out := s.rl.Stdout()
	obs, err := s.client.Observe(ctx, path, func(resp *client.Response) {
		if resp == nil {
			fmt.Fprintf(out, "[%s] delivery failed\n", path)
			return
		}
		fmt.Fprintf(out, "[%s] %s %s\n", path, resp.Code, formatPayload(resp.Payload))
	})
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	s.observations[path] = obs
	fmt.Fprintf(out, "Observing %s (token %s)\n", path, hex.EncodeToString(obs.Token()))
}

func (s *Session) cmdCancel(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: cancel <path>")
		return
	}
	path := args[0]
	obs, exists := s.observations[path]
	if !exists {
		fmt.Fprintf(s.rl.Stdout(), "Not observing %s\n", path)
		return
	}
	if err := obs.Cancel(ctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	delete(s.observations, path)
	fmt.Fprintf(s.rl.Stdout(), "Cancelled observation of %s\n", path)
}

func (s *Session) cmdDiscover(ctx context.Context, args []string) {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}
	links, err := s.client.Discover(ctx, query)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if len(links) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No resources found")
		return
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
		fmt.Fprintln(s.rl.Stdout(), line)
	}
}

func (s *Session) cmdPing(ctx context.Context) {
	if err := s.client.Ping(ctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Ping failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Peer is alive")
}

func (s *Session) cmdMID(args []string) {
	engine := s.client.Engine()
	if len(args) == 0 {
		fmt.Fprintf(s.rl.Stdout(), "Next message ID: %d\n", engine.CurrentMID())
		return
	}
	v, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid message ID: %v\n", err)
		return
	}
	engine.SetCurrentMID(uint16(v))
	fmt.Fprintf(s.rl.Stdout(), "Next message ID set to %d\n", v)
}

func (s *Session) cmdStatus() {
	engine := s.client.Engine()
	out := s.rl.Stdout()
	fmt.Fprintf(out, "Engine:       %s\n", engine.EngineID())
	fmt.Fprintf(out, "Remote:       %s\n", engine.RemoteAddr())
	fmt.Fprintf(out, "Next MID:     %d\n", engine.CurrentMID())
	fmt.Fprintf(out, "Pending:      %d exchange(s)\n", engine.Pending())
	fmt.Fprintf(out, "Observations: %d\n", s.client.Observations().Count())

	params := engine.Params()
	fmt.Fprintf(out, "Params:       ack-timeout=%s factor=%.2f max-retransmit=%d\n",
		params.AckTimeout, params.AckRandomFactor, params.MaxRetransmit)
}

func (s *Session) printOutcome(resp *client.Response, err error) {
	out := s.rl.Stdout()
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if resp == nil {
		fmt.Fprintln(out, "Sent (no response expected)")
		return
	}
	fmt.Fprintf(out, "%s %s\n", resp.Code, formatPayload(resp.Payload))
}

// formatPayload renders a payload for display: printable text verbatim,
// anything else hex-encoded.
func formatPayload(payload []byte) string {
	if len(payload) == 0 {
		return "(empty)"
	}
	for _, b := range payload {
		if b < 0x20 && b != '\n' && b != '\t' || b >= 0x7f {
			return "0x" + hex.EncodeToString(payload)
		}
	}
	return string(payload)
}
