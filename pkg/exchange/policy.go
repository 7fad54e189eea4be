package exchange

// Decision is the outcome of consulting an ErrorPolicy.
type Decision uint8

const (
	// Escalate treats the error as fatal for the operation that hit it.
	// This is the default when no policy is configured.
	Escalate Decision = 0

	// Continue absorbs the error and keeps going.
	Continue Decision = 1
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Escalate:
		return "ESCALATE"
	case Continue:
		return "CONTINUE"
	default:
		return "UNKNOWN"
	}
}

// ErrorPolicy classifies a transport error. The receiver loop consults
// the read policy on receive failures; Escalate stops the engine,
// Continue keeps polling. Writes consult the write policy; Escalate
// propagates the failure, Continue turns the send into fire-and-forget.
type ErrorPolicy func(err error) Decision

// ContinueAll absorbs every error. Useful on links where transient
// failures are expected and losing individual datagrams is acceptable.
func ContinueAll(error) Decision { return Continue }

// EscalateAll treats every error as fatal. This matches the behavior of
// an absent policy.
func EscalateAll(error) Decision { return Escalate }
