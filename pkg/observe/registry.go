package observe

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/corelink-protocol/corelink-go/pkg/exchange"
	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// Registry errors.
var (
	ErrNoToken              = errors.New("observation requires a token")
	ErrNotRegistered        = errors.New("token is not registered")
	ErrTooManyRegistrations = errors.New("maximum observation registrations reached")
)

// DefaultMaxRegistrations bounds the number of concurrent observations.
const DefaultMaxRegistrations = 50

// Config holds registry configuration.
type Config struct {
	// MaxRegistrations is the maximum number of concurrent observations.
	// Zero or negative means DefaultMaxRegistrations.
	MaxRegistrations int

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRegistrations: DefaultMaxRegistrations,
	}
}

// Registry tracks live observations by token and plugs into the delivery
// engine as its observe layer.
type Registry struct {
	mu     sync.RWMutex
	config Config
	regs   map[string]*Registration
	logger *slog.Logger
}

var _ exchange.ObserveLayer = (*Registry)(nil)

// NewRegistry creates a registry with default configuration.
func NewRegistry() *Registry {
	return NewRegistryWithConfig(DefaultConfig())
}

// NewRegistryWithConfig creates a registry with custom configuration.
func NewRegistryWithConfig(config Config) *Registry {
	if config.MaxRegistrations <= 0 {
		config.MaxRegistrations = DefaultMaxRegistrations
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		config: config,
		regs:   make(map[string]*Registration),
		logger: logger,
	}
}

// Register records a new observation under token. Re-registering a token
// replaces the previous entry; the replacement does not count against the
// registration limit.
func (g *Registry) Register(token []byte, path string) (*Registration, error) {
	if len(token) == 0 {
		return nil, ErrNoToken
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := string(token)
	if old, exists := g.regs[key]; exists {
		old.deactivate()
	} else if len(g.regs) >= g.config.MaxRegistrations {
		return nil, ErrTooManyRegistrations
	}

	reg := newRegistration(token, path)
	g.regs[key] = reg
	return reg, nil
}

// Get returns the registration for token.
func (g *Registry) Get(token []byte) (*Registration, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	reg, exists := g.regs[string(token)]
	if !exists {
		return nil, ErrNotRegistered
	}
	return reg, nil
}

// Count returns the number of live observations.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.regs)
}

// Active returns a snapshot of the live registrations, ordered by path.
func (g *Registry) Active() []*Registration {
	g.mu.RLock()
	out := make([]*Registration, 0, len(g.regs))
	for _, reg := range g.regs {
		out = append(out, reg)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].path != out[j].path {
			return out[i].path < out[j].path
		}
		return string(out[i].token) < string(out[j].token)
	})
	return out
}

// Cancel drops the registration for token, if any. The delivery engine
// calls it when the peer resets the register request and on shutdown.
func (g *Registry) Cancel(token []byte) {
	g.mu.Lock()
	reg, exists := g.regs[string(token)]
	if exists {
		delete(g.regs, string(token))
	}
	g.mu.Unlock()

	if exists {
		reg.deactivate()
		g.logger.Debug("observation cancelled", "path", reg.Path())
	}
}

// Clear drops every registration.
func (g *Registry) Clear() {
	g.mu.Lock()
	regs := g.regs
	g.regs = make(map[string]*Registration)
	g.mu.Unlock()

	for _, reg := range regs {
		reg.deactivate()
	}
}

// OnSend inspects an outbound request. A register request opens a
// registration, a deregister request closes one; everything else passes
// through untouched.
func (g *Registry) OnSend(req *message.Message) {
	v, ok := req.Observe()
	if !ok {
		return
	}
	switch v {
	case message.ObserveRegister:
		if _, err := g.Register(req.Token, req.Path()); err != nil {
			// The request still goes out; its responses will just be
			// treated as a single-response exchange.
			g.logger.Warn("observation not tracked",
				"path", req.Path(), "err", err)
			return
		}
		g.logger.Debug("observation registered", "path", req.Path())
	case message.ObserveDeregister:
		g.Cancel(req.Token)
	}
}

// OnSendEmpty inspects an outbound control message. Rejecting the newest
// notification of an observation with Reset cancels that observation.
func (g *Registry) OnSendEmpty(msg *message.Message) {
	if msg.Type != message.Reset {
		return
	}

	g.mu.Lock()
	var cancelled *Registration
	for key, reg := range g.regs {
		if reg.matchesMID(msg.MessageID) {
			delete(g.regs, key)
			cancelled = reg
			break
		}
	}
	g.mu.Unlock()

	if cancelled != nil {
		cancelled.deactivate()
		g.logger.Debug("observation cancelled by reset",
			"path", cancelled.Path(), "mid", msg.MessageID)
	}
}

// OnReceive inspects an inbound response. It reports true when the
// response belongs to a live observation, telling the engine to keep the
// token registered and expect more notifications. A response without the
// Observe option ends the observation it was registered under.
func (g *Registry) OnReceive(resp *message.Message) bool {
	if len(resp.Token) == 0 {
		return false
	}

	g.mu.RLock()
	reg, exists := g.regs[string(resp.Token)]
	g.mu.RUnlock()
	if !exists {
		return false
	}

	seq, ok := resp.Observe()
	if !ok {
		// The peer dropped the observation; this is its final word.
		g.Cancel(resp.Token)
		return false
	}

	reg.record(resp.MessageID, seq)
	return true
}
