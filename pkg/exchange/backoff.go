package exchange

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff produces the retransmission delay sequence for one confirmable
// exchange: an initial delay drawn uniformly from
// [AckTimeout, AckTimeout x AckRandomFactor], doubling after each attempt.
type Backoff struct {
	mu sync.Mutex

	// Current delay; doubles on each Next.
	current time.Duration

	// Attempt counter
	attempts int
}

// NewBackoff creates a backoff sequence for the given parameters, drawing
// the initial delay from a time-seeded source.
func NewBackoff(p Params) *Backoff {
	return NewBackoffWithRand(p, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBackoffWithRand creates a backoff sequence drawing the initial delay
// from rng. Tests use it for deterministic sequences.
func NewBackoffWithRand(p Params, rng *rand.Rand) *Backoff {
	return &Backoff{current: initialDelay(p, rng)}
}

// Next returns the delay to wait before the next retransmission and
// advances the sequence.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	b.attempts++
	b.current *= 2
	return delay
}

// Peek returns the upcoming delay without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Attempts returns how many delays have been handed out.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// initialDelay draws uniformly from [AckTimeout, AckTimeout x Factor].
// A factor of exactly 1 yields AckTimeout with no randomness.
func initialDelay(p Params, rng *rand.Rand) time.Duration {
	span := float64(p.AckTimeout) * (p.AckRandomFactor - 1)
	if span <= 0 {
		return p.AckTimeout
	}
	return p.AckTimeout + time.Duration(rng.Float64()*span)
}
