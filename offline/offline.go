// Package offline tracks, per validator, how many consecutive assigned
// rounds it has failed to propose in. The tracker is queried to build
// "noted offline" lists for outgoing blocks and to validate lists claimed
// by incoming ones.
package offline

import (
	"sync"

	"github.com/tolelom/bftproposer/block"
)

// OfflineThreshold is the number of consecutive missed rounds at which a
// validator becomes reportable. spec.md §9 leaves the exact value an
// implementation choice; one miss is reportable here, matching the
// source's behavior of never tolerating a skipped slot silently.
const OfflineThreshold = 1

// Tracker holds a live per-validator miss counter. It is re-synced to the
// current validator set at every new block and updated at every round end.
// All exported methods are safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	counter map[block.AccountID]uint32
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{counter: make(map[block.AccountID]uint32)}
}

// NoteNewBlock re-syncs the tracked set to validators: members absent from
// the new set are dropped, newcomers start at zero.
func (t *Tracker) NoteNewBlock(validators []block.AccountID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	want := make(map[block.AccountID]struct{}, len(validators))
	for _, v := range validators {
		want[v] = struct{}{}
		if _, ok := t.counter[v]; !ok {
			t.counter[v] = 0
		}
	}
	for v := range t.counter {
		if _, ok := want[v]; !ok {
			delete(t.counter, v)
		}
	}
}

// NoteRoundEnd increments primary's miss counter, or resets it to zero if
// the primary did propose.
func (t *Tracker) NoteRoundEnd(primary block.AccountID, wasProposed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if wasProposed {
		t.counter[primary] = 0
		return
	}
	t.counter[primary]++
}

// Reports returns indices into currentValidators of every tracked validator
// whose miss counter meets or exceeds OfflineThreshold, in ascending order.
func (t *Tracker) Reports(currentValidators []block.AccountID) []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []uint32
	for i, v := range currentValidators {
		if t.counter[v] >= OfflineThreshold {
			out = append(out, uint32(i))
		}
	}
	return out
}

// CheckConsistency reports whether every index in claimed is one this node
// would itself report, i.e. the claim contains no accusation this node
// disagrees with.
func (t *Tracker) CheckConsistency(currentValidators []block.AccountID, claimed []uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, i := range claimed {
		if int(i) >= len(currentValidators) {
			return false
		}
		if t.counter[currentValidators[i]] < OfflineThreshold {
			return false
		}
	}
	return true
}
