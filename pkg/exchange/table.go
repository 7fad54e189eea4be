package exchange

import (
	"errors"
	"sync"
)

// ErrDuplicateMID indicates a second live transaction tried to register
// the message ID of an unresolved one. The caller must pick a fresh ID.
var ErrDuplicateMID = errors.New("message ID already in use")

// Table indexes live transactions by message ID and by token. The message
// ID index resolves acknowledgements and resets; the token index resolves
// responses, which may arrive long after the ID was acknowledged.
type Table struct {
	mu      sync.Mutex
	byMID   map[uint16]*Transaction
	byToken map[string]*Transaction
}

// NewTable creates an empty transaction table.
func NewTable() *Table {
	return &Table{
		byMID:   make(map[uint16]*Transaction),
		byToken: make(map[string]*Transaction),
	}
}

// Register inserts a transaction under its message ID, and under its token
// when it has one. A live entry holding the same message ID fails the
// registration with ErrDuplicateMID. A token collision repoints the token
// index at the new transaction; re-registering a token is how an
// observation is cancelled.
func (t *Table) Register(tx *Transaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	mid := tx.MessageID()
	if _, exists := t.byMID[mid]; exists {
		return ErrDuplicateMID
	}
	t.byMID[mid] = tx
	if token := tx.Token(); len(token) > 0 {
		t.byToken[string(token)] = tx
	}
	return nil
}

// LookupMID returns the transaction registered under mid.
func (t *Table) LookupMID(mid uint16) (*Transaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.byMID[mid]
	return tx, ok
}

// LookupToken returns the transaction registered under token.
func (t *Table) LookupToken(token []byte) (*Transaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.byToken[string(token)]
	return tx, ok
}

// Remove deletes the transaction registered under mid from both indexes.
// No-op if mid is not registered.
func (t *Table) Remove(mid uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, ok := t.byMID[mid]
	if !ok {
		return
	}
	delete(t.byMID, mid)
	if token := tx.Token(); len(token) > 0 {
		// The token may have been repointed at a newer transaction.
		if t.byToken[string(token)] == tx {
			delete(t.byToken, string(token))
		}
	}
}

// ReleaseMID drops only the message ID index entry, keeping the token
// correlation live. Used when an empty acknowledgement promises a
// separate response.
func (t *Table) ReleaseMID(mid uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byMID, mid)
}

// RemoveToken deletes the transaction registered under token from both
// indexes. No-op if token is not registered.
func (t *Table) RemoveToken(token []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, ok := t.byToken[string(token)]
	if !ok {
		return
	}
	delete(t.byToken, string(token))
	if cur, ok := t.byMID[tx.MessageID()]; ok && cur == tx {
		delete(t.byMID, tx.MessageID())
	}
}

// Drain removes and returns every live transaction. Shutdown support.
func (t *Table) Drain() []*Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[*Transaction]bool, len(t.byMID))
	var out []*Transaction
	for _, tx := range t.byMID {
		if !seen[tx] {
			seen[tx] = true
			out = append(out, tx)
		}
	}
	for _, tx := range t.byToken {
		if !seen[tx] {
			seen[tx] = true
			out = append(out, tx)
		}
	}
	t.byMID = make(map[uint16]*Transaction)
	t.byToken = make(map[string]*Transaction)
	return out
}

// Len returns the number of distinct live transactions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[*Transaction]bool, len(t.byMID))
	for _, tx := range t.byMID {
		seen[tx] = true
	}
	for _, tx := range t.byToken {
		seen[tx] = true
	}
	return len(seen)
}
