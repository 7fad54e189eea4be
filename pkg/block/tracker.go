package block

import (
	"log/slog"
	"sync"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/exchange"
	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// Config holds tracker configuration.
type Config struct {
	// PreferredSize, when non-zero, is the segment size suggested to the
	// peer on outbound requests that do not already carry a Block2
	// option. Must be a power of two between 16 and 1024.
	PreferredSize int

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Transfer is the progress record of one segmented response, keyed by the
// exchange token.
type Transfer struct {
	mu sync.Mutex

	token   []byte
	started time.Time

	// nextNum is the segment number expected next.
	nextNum uint32

	segments int
	bytes    int

	// gaps counts segments that arrived with an unexpected number.
	gaps int
}

func newTransfer(token []byte) *Transfer {
	return &Transfer{
		token:   append([]byte(nil), token...),
		started: time.Now(),
	}
}

// Token returns a copy of the transfer's token.
func (tr *Transfer) Token() []byte {
	return append([]byte(nil), tr.token...)
}

// Segments returns the number of segments seen so far.
func (tr *Transfer) Segments() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.segments
}

// Bytes returns the payload bytes carried by the segments seen so far.
func (tr *Transfer) Bytes() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.bytes
}

// Gaps returns how many segments arrived out of order.
func (tr *Transfer) Gaps() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.gaps
}

// Age returns how long the transfer has been running.
func (tr *Transfer) Age() time.Duration {
	return time.Since(tr.started)
}

// record notes one received segment.
func (tr *Transfer) record(b Block, payloadLen int) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if b.Num != tr.nextNum {
		tr.gaps++
	}
	tr.nextNum = b.Num + 1
	tr.segments++
	tr.bytes += payloadLen
}

// Tracker detects segmented responses and plugs into the delivery engine
// as its block layer.
type Tracker struct {
	mu        sync.Mutex
	config    Config
	transfers map[string]*Transfer
	logger    *slog.Logger
}

var _ exchange.BlockLayer = (*Tracker)(nil)

// NewTracker creates a tracker with default configuration.
func NewTracker() *Tracker {
	return NewTrackerWithConfig(Config{})
}

// NewTrackerWithConfig creates a tracker with custom configuration.
func NewTrackerWithConfig(config Config) *Tracker {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		config:    config,
		transfers: make(map[string]*Transfer),
		logger:    logger,
	}
}

// Count returns the number of transfers in flight.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.transfers)
}

// Get returns the in-flight transfer for token, if any.
func (t *Tracker) Get(token []byte) (*Transfer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.transfers[string(token)]
	return tr, ok
}

// Clear drops every in-flight transfer.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transfers = make(map[string]*Transfer)
}

// OnSend suggests the configured segment size on outbound requests that
// do not already negotiate one.
func (t *Tracker) OnSend(req *message.Message) {
	if t.config.PreferredSize == 0 || !req.IsRequest() {
		return
	}
	if _, ok := req.Options.GetUint(message.OptionBlock2); ok {
		return
	}
	szx, err := SizeToSZX(t.config.PreferredSize)
	if err != nil {
		t.logger.Warn("invalid preferred block size ignored",
			"size", t.config.PreferredSize)
		return
	}
	req.Options.SetUint(message.OptionBlock2, Block{SZX: szx}.Value())
}

// OnReceive inspects an inbound response. It reports true when the
// response is a non-final segment, telling the engine to keep the exchange
// open; the final segment (or any response without Block2) reports false
// and closes out the transfer record.
func (t *Tracker) OnReceive(resp *message.Message) bool {
	b, present, err := FromMessage(resp)
	if err != nil {
		// A peer sending reserved descriptors gets treated as
		// non-segmented; the response completes the exchange as-is.
		t.logger.Warn("malformed block descriptor ignored", "err", err)
		t.drop(resp.Token)
		return false
	}
	if !present {
		t.drop(resp.Token)
		return false
	}

	key := string(resp.Token)
	t.mu.Lock()
	tr, ok := t.transfers[key]
	if !ok {
		tr = newTransfer(resp.Token)
		t.transfers[key] = tr
	}
	t.mu.Unlock()

	tr.record(b, len(resp.Payload))

	if b.More {
		t.logger.Debug("segment received",
			"block", b.String(), "segments", tr.Segments())
		return true
	}

	// Final segment: the transfer is complete.
	t.mu.Lock()
	delete(t.transfers, key)
	t.mu.Unlock()
	t.logger.Debug("transfer complete",
		"segments", tr.Segments(), "bytes", tr.Bytes(), "gaps", tr.Gaps())
	return false
}

func (t *Tracker) drop(token []byte) {
	if len(token) == 0 {
		return
	}
	t.mu.Lock()
	delete(t.transfers, string(token))
	t.mu.Unlock()
}
