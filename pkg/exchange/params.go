package exchange

import (
	"errors"
	"time"
)

// Default transmission parameters.
const (
	// DefaultAckTimeout is the lower bound of the initial retransmission
	// delay.
	DefaultAckTimeout = 2 * time.Second

	// DefaultAckRandomFactor spreads the initial delay to keep endpoints
	// from retransmitting in lockstep.
	DefaultAckRandomFactor = 1.5

	// DefaultMaxRetransmit is the number of retransmissions before a
	// confirmable message is declared undeliverable.
	DefaultMaxRetransmit = 4
)

// Parameter validation errors.
var (
	ErrInvalidAckTimeout    = errors.New("ack timeout must be positive")
	ErrInvalidRandomFactor  = errors.New("ack random factor must be >= 1")
	ErrInvalidMaxRetransmit = errors.New("max retransmit must not be negative")
)

// Params are the transmission parameters governing confirmable delivery.
// The zero value is not usable; start from DefaultParams or a loaded
// Profile.
type Params struct {
	// AckTimeout is the lower bound of the initial retransmission delay.
	AckTimeout time.Duration

	// AckRandomFactor scales AckTimeout into the upper bound of the
	// initial delay. Must be >= 1; exactly 1 disables the random spread.
	AckRandomFactor float64

	// MaxRetransmit is the number of retransmissions attempted before
	// giving up. Zero disables retransmission entirely.
	MaxRetransmit int
}

// DefaultParams returns the standard transmission parameters.
func DefaultParams() Params {
	return Params{
		AckTimeout:      DefaultAckTimeout,
		AckRandomFactor: DefaultAckRandomFactor,
		MaxRetransmit:   DefaultMaxRetransmit,
	}
}

// Validate checks that the parameters describe a usable retransmission
// schedule.
func (p Params) Validate() error {
	if p.AckTimeout <= 0 {
		return ErrInvalidAckTimeout
	}
	if p.AckRandomFactor < 1 {
		return ErrInvalidRandomFactor
	}
	if p.MaxRetransmit < 0 {
		return ErrInvalidMaxRetransmit
	}
	return nil
}

// MaxTransmitSpan returns the worst-case time from the first transmission
// of a confirmable message to its last retransmission:
//
//	AckTimeout x ((2^MaxRetransmit) - 1) x AckRandomFactor
//
// 45 seconds with the default parameters.
func (p Params) MaxTransmitSpan() time.Duration {
	cycles := float64(uint64(1)<<uint(p.MaxRetransmit)) - 1
	return time.Duration(float64(p.AckTimeout) * cycles * p.AckRandomFactor)
}
