// Package txpool implements per-sender nonce-ordered transaction admission
// for the proposer: verification, deduplication/replacement, readiness
// classification against a reference chain state, and scoped iteration of
// the currently-ready set in ascending (sender, index) order.
package txpool

import (
	"bytes"
	"crypto/ed25519"
	"sort"
	"sync"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/chainerr"
)

// MaxTransactionSize bounds the encoded size of a single extrinsic admitted
// to the pool (spec.md §6).
const MaxTransactionSize = 4 * 1024 * 1024

// ChainAPI is the subset of chainapi.Client the pool needs: nonce lookups
// for readiness classification. Verification does not consult it; a
// sender is checked against its own ed25519 public key.
type ChainAPI interface {
	Index(at block.Hash, account block.AccountID) (uint64, error)
}

// VerifiedTransaction is admitted to the pool only once its signature has
// verified against Sender and its encoding is within MaxTransactionSize.
// Verification is idempotent: the same bytes always yield the same record.
type VerifiedTransaction struct {
	Hash        block.Hash
	Sender      block.AccountID
	Index       uint64
	EncodedSize int
	Encoded     []byte
}

// Readiness classifies a verified transaction against a reference
// (block, next-nonce) state.
type Readiness int

const (
	// Ready means index == next_nonce: include it next.
	Ready Readiness = iota
	// Future means index > next_nonce: a gap exists, keep but don't yield.
	Future
	// Stale means index < next_nonce: already consumed, cull it.
	Stale
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case Future:
		return "future"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

type entry struct {
	verified VerifiedTransaction
}

// location pinpoints a pool entry by its owning sender and index, used by
// the hash index for O(1) removal.
type location struct {
	sender block.AccountID
	index  uint64
}

// senderQueue holds one sender's transactions ordered by strictly
// increasing index.
type senderQueue struct {
	byIndex map[uint64]*entry
}

func newSenderQueue() *senderQueue {
	return &senderQueue{byIndex: make(map[uint64]*entry)}
}

func (q *senderQueue) sortedIndices() []uint64 {
	idx := make([]uint64, 0, len(q.byIndex))
	for i := range q.byIndex {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

// Status reports pool occupancy.
type Status struct {
	ReadyCount  int
	FutureCount int
	TotalBytes  int
}

// Options configures pool capacity. It is the ambient "configuration"
// surface for this package — a plain struct passed to the constructor, not
// a CLI/JSON config loader (that remains out of scope, spec.md §1).
type Options struct {
	// Capacity is the maximum aggregate encoded_size the pool will hold
	// before rejecting new admissions (policy: RejectNew). Zero means
	// unbounded.
	Capacity int
}

// Pool is a thread-safe transaction pool keyed by sender, indexed
// additionally by hash for O(1) removal.
type Pool struct {
	api ChainAPI
	opt Options

	mu         sync.RWMutex
	bySender   map[block.AccountID]*senderQueue
	byHash     map[block.Hash]location
	totalBytes int
}

// New creates an empty Pool backed by api, whose Index method resolves
// per-sender next-expected nonces.
func New(api ChainAPI, opt Options) *Pool {
	return &Pool{
		api:      api,
		opt:      opt,
		bySender: make(map[block.AccountID]*senderQueue),
		byHash:   make(map[block.Hash]location),
	}
}

// verifyTransaction implements the five-step algorithm of spec.md §4.2:
// hash, decode, reject inherents, reject oversized, resolve sender+index.
func verifyTransaction(raw []byte) (VerifiedTransaction, error) {
	hash := block.HashExtrinsic(raw)

	xt, err := block.Decode(raw)
	if err != nil {
		return VerifiedTransaction{}, chainerr.ErrInvalidExtrinsicFormat
	}
	if !xt.Signed {
		return VerifiedTransaction{}, chainerr.ErrIsInherent
	}
	if len(raw) > MaxTransactionSize {
		return VerifiedTransaction{}, chainerr.TooLarge(len(raw), MaxTransactionSize)
	}
	// Address resolution is RawAddress::Id only: the sender is the raw
	// ed25519 public key, so it doubles as the verification key.
	if !ed25519.Verify(ed25519.PublicKey(xt.Sender[:]), xt.Payload, xt.Signature) {
		return VerifiedTransaction{}, chainerr.ErrInvalidSignature
	}
	return VerifiedTransaction{
		Hash:        hash,
		Sender:      xt.Sender,
		Index:       xt.Index,
		EncodedSize: len(raw),
		Encoded:     raw,
	}, nil
}

// Submit decodes and verifies raw, then inserts it into the pool. Duplicate
// (sender, index) triggers replacement of the old entry (policy ReplaceOld).
func (p *Pool) Submit(raw []byte) (block.Hash, error) {
	vt, err := verifyTransaction(raw)
	if err != nil {
		return block.Hash{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.bySender[vt.Sender]
	if !ok {
		q = newSenderQueue()
		p.bySender[vt.Sender] = q
	}

	if old, exists := q.byIndex[vt.Index]; exists {
		// ReplaceOld: drop the old entry's accounting and hash index first.
		p.totalBytes -= old.verified.EncodedSize
		delete(p.byHash, old.verified.Hash)
	} else if p.opt.Capacity > 0 && p.totalBytes+vt.EncodedSize > p.opt.Capacity {
		return block.Hash{}, chainerr.ErrPoolFull
	}

	q.byIndex[vt.Index] = &entry{verified: vt}
	p.byHash[vt.Hash] = location{sender: vt.Sender, index: vt.Index}
	p.totalBytes += vt.EncodedSize

	return vt.Hash, nil
}

// Remove drops the listed hashes from all indices. asInvalid is a
// bookkeeping hint only; it never changes cull semantics.
func (p *Pool) Remove(hashes []block.Hash, asInvalid bool) {
	_ = asInvalid
	if len(hashes) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.removeLocked(h)
	}
}

func (p *Pool) removeLocked(h block.Hash) {
	loc, ok := p.byHash[h]
	if !ok {
		return
	}
	q, ok := p.bySender[loc.sender]
	if !ok {
		return
	}
	e, ok := q.byIndex[loc.index]
	if !ok {
		return
	}
	p.totalBytes -= e.verified.EncodedSize
	delete(q.byIndex, loc.index)
	delete(p.byHash, h)
	if len(q.byIndex) == 0 {
		delete(p.bySender, loc.sender)
	}
}

// nonceState is the ephemeral per-call cache entry for one sender: either a
// resolved next-expected nonce, or a sticky "API errored" flag.
type nonceState struct {
	next    uint64
	errored bool
}

// classify implements is_ready: known_nonces is the ephemeral per-call
// cache seeded lazily from the Chain API, incremented by one after each
// transaction from the same sender is classified. If the Chain API call
// errors, every transaction from that sender classifies as Future for the
// rest of this call — conservative, since Future entries are kept rather
// than culled (spec.md §4.2).
func (p *Pool) classify(at block.Hash, known map[block.AccountID]*nonceState, sender block.AccountID, index uint64) Readiness {
	st, ok := known[sender]
	if !ok {
		next, err := p.api.Index(at, sender)
		st = &nonceState{next: next, errored: err != nil}
		known[sender] = st
	}

	if st.errored {
		return Future
	}

	var r Readiness
	switch {
	case index > st.next:
		r = Future
	case index == st.next:
		r = Ready
	default:
		r = Stale
	}
	st.next++
	return r
}

// CullAndGetPending evicts every transaction currently classified Stale
// against at, then invokes cb with the Ready set ordered by ascending
// (sender, index). The snapshot handed to cb is built, and the cull
// applied, under the pool's write lock, which is released before cb runs;
// cb may therefore run for as long as it needs without blocking concurrent
// writers. Per spec.md §5 cb must still not call Submit/Remove itself: the
// proposer collects such changes and applies them after cb returns.
func (p *Pool) CullAndGetPending(at block.Hash, cb func(pending []VerifiedTransaction)) {
	known := make(map[block.AccountID]*nonceState)

	p.mu.Lock()
	var stale []block.Hash
	var pending []VerifiedTransaction
	senders := make([]block.AccountID, 0, len(p.bySender))
	for s := range p.bySender {
		senders = append(senders, s)
	}
	sort.Slice(senders, func(i, j int) bool {
		return bytes.Compare(senders[i][:], senders[j][:]) < 0
	})

	for _, sender := range senders {
		q := p.bySender[sender]
		for _, idx := range q.sortedIndices() {
			e := q.byIndex[idx]
			switch p.classify(at, known, sender, idx) {
			case Stale:
				stale = append(stale, e.verified.Hash)
			case Ready:
				pending = append(pending, e.verified)
			case Future:
				// kept, not yielded
			}
		}
	}
	for _, h := range stale {
		p.removeLocked(h)
	}
	p.mu.Unlock()

	cb(pending)
}

// Status reports current pool occupancy. FutureCount walks the pool under a
// read lock using a fresh known-nonce cache, mirroring CullAndGetPending's
// classification without mutating anything.
func (p *Pool) Status(at block.Hash) Status {
	known := make(map[block.AccountID]*nonceState)
	p.mu.RLock()
	defer p.mu.RUnlock()

	var st Status
	st.TotalBytes = p.totalBytes
	for sender, q := range p.bySender {
		for _, idx := range q.sortedIndices() {
			e := q.byIndex[idx]
			switch p.classify(at, known, sender, idx) {
			case Ready:
				st.ReadyCount++
			case Future:
				st.FutureCount++
			}
		}
	}
	return st
}

// HighestPendingIndex returns the largest index currently held in the pool
// for sender, regardless of readiness. Used by misbehavior reporting to
// pick up the next nonce after any of the sender's own not-yet-included
// transactions, rather than colliding with one of them.
func (p *Pool) HighestPendingIndex(sender block.AccountID) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.bySender[sender]
	if !ok || len(q.byIndex) == 0 {
		return 0, false
	}
	indices := q.sortedIndices()
	return indices[len(indices)-1], true
}
