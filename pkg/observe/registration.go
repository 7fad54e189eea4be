package observe

import (
	"sync"
	"time"
)

// sequenceModulus bounds notification sequence numbers; the Observe option
// value occupies at most three bytes.
const sequenceModulus = 1 << 24

// Registration is the client-side record of one live observation.
type Registration struct {
	mu sync.RWMutex

	token []byte
	path  string

	// registered is when the register request went out.
	registered time.Time

	active bool

	// lastMID is the message ID of the newest notification; rejecting
	// that exact message with Reset cancels the observation.
	lastMID uint16
	haveMID bool

	// lastSeq is the newest sequence number seen, wrap-aware.
	lastSeq uint32
	haveSeq bool

	notifications int
	reordered     int
}

func newRegistration(token []byte, path string) *Registration {
	return &Registration{
		token:      append([]byte(nil), token...),
		path:       path,
		registered: time.Now(),
		active:     true,
	}
}

// Token returns a copy of the observation's token.
func (r *Registration) Token() []byte {
	return append([]byte(nil), r.token...)
}

// Path returns the observed resource path.
func (r *Registration) Path() string {
	return r.path
}

// IsActive reports whether the observation is still live.
func (r *Registration) IsActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Notifications returns the number of notifications received, the initial
// response included.
func (r *Registration) Notifications() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notifications
}

// LastSequence returns the newest notification sequence number seen.
func (r *Registration) LastSequence() (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSeq, r.haveSeq
}

// Reordered returns how many notifications arrived with a sequence number
// older than one already seen.
func (r *Registration) Reordered() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reordered
}

// Age returns how long the observation has been registered.
func (r *Registration) Age() time.Duration {
	return time.Since(r.registered)
}

func (r *Registration) deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}

// record notes one received notification.
func (r *Registration) record(mid uint16, seq uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifications++
	r.lastMID = mid
	r.haveMID = true

	if !r.haveSeq || newerSequence(r.lastSeq, seq) {
		r.lastSeq = seq
		r.haveSeq = true
	} else {
		r.reordered++
	}
}

func (r *Registration) matchesMID(mid uint16) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.haveMID && r.lastMID == mid
}

// newerSequence reports whether candidate is newer than current, treating
// the 24-bit sequence space as a circle: a candidate within half the space
// ahead of current is newer, anything else is a reordered duplicate.
func newerSequence(current, candidate uint32) bool {
	diff := (candidate - current) % sequenceModulus
	return diff != 0 && diff < sequenceModulus/2
}
