package exchange

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var profileFS embed.FS

// Profile is a named set of transmission parameters. Profiles ship
// embedded in the binary; "default" matches DefaultParams, "lossy" trades
// latency for delivery probability, "fast" suits low-latency local links.
type Profile struct {
	Name        string
	Description string
	Params      Params
}

// profileManifest is the on-disk shape of a profile. Durations are
// strings in Go syntax ("2s", "500ms").
type profileManifest struct {
	Name            string  `yaml:"name"`
	Description     string  `yaml:"description"`
	AckTimeout      string  `yaml:"ack_timeout"`
	AckRandomFactor float64 `yaml:"ack_random_factor"`
	MaxRetransmit   int     `yaml:"max_retransmit"`
}

var (
	profileMu    sync.RWMutex
	profileCache = make(map[string]*Profile)
)

// LoadProfile loads an embedded parameter profile by name.
func LoadProfile(name string) (*Profile, error) {
	profileMu.RLock()
	if p, ok := profileCache[name]; ok {
		profileMu.RUnlock()
		return p, nil
	}
	profileMu.RUnlock()

	data, err := profileFS.ReadFile("profiles/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("profile %q not found: %w", name, err)
	}

	var m profileManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing profile %q: %w", name, err)
	}

	ackTimeout, err := time.ParseDuration(m.AckTimeout)
	if err != nil {
		return nil, fmt.Errorf("profile %q: invalid ack_timeout: %w", name, err)
	}

	p := &Profile{
		Name:        m.Name,
		Description: m.Description,
		Params: Params{
			AckTimeout:      ackTimeout,
			AckRandomFactor: m.AckRandomFactor,
			MaxRetransmit:   m.MaxRetransmit,
		},
	}
	if err := p.Params.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}

	profileMu.Lock()
	profileCache[name] = p
	profileMu.Unlock()

	return p, nil
}

// AvailableProfiles returns the names of all embedded profiles, sorted.
func AvailableProfiles() ([]string, error) {
	entries, err := profileFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("reading profiles directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") {
			names = append(names, strings.TrimSuffix(name, ".yaml"))
		}
	}
	sort.Strings(names)
	return names, nil
}
