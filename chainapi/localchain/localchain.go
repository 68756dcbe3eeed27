// Package localchain is a single-process, LevelDB-backed reference
// implementation of chainapi.Client. It exists to give the Chain API
// contract a concrete, testable backend for integration tests and the demo
// binary; it is not a production chain backend (no forks, no historical
// pruning policy, no peer sync).
package localchain

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/chainapi"
	"github.com/tolelom/bftproposer/crypto"
	"github.com/tolelom/bftproposer/storage"
)

const (
	keyTip       = "chain:tip"
	keyHeight    = "chain:height"
	blockKeyPfx  = "block:"
	nonceKeyPfx  = "nonce:"
	heightKeyPfx = "height:"
)

// inherentPayload is the JSON envelope carried by every inherent extrinsic
// this backend emits. JSON is used here, not block's binary codec, because
// this package is a test fixture for the Chain API contract rather than
// the transaction wire format itself (spec.md §6 treats the codec as
// opaque; txpool's binary envelope is the one that matters).
type inherentPayload struct {
	Kind      string   `json:"kind"`
	Timestamp uint64   `json:"timestamp,omitempty"`
	Offline   []uint32 `json:"offline,omitempty"`
}

// Chain is a single-branch reference chain. Every query's `at` parameter
// must equal the current tip; this backend keeps no fork set.
type Chain struct {
	mu         sync.RWMutex
	db         storage.DB
	validators []block.AccountID
	tip        block.Hash
	height     uint64
	hasTip     bool
}

// Open creates a Chain over db with the given genesis block and validator
// set. The genesis block is committed immediately if the store is empty.
func Open(db storage.DB, validators []block.AccountID, genesis *block.Block) (*Chain, error) {
	c := &Chain{db: db, validators: append([]block.AccountID(nil), validators...)}

	raw, err := db.Get([]byte(keyTip))
	switch {
	case err == storage.ErrNotFound:
		if genesis == nil {
			return c, nil
		}
		if err := c.commitLocked(genesis); err != nil {
			return nil, fmt.Errorf("localchain: commit genesis: %w", err)
		}
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("localchain: read tip: %w", err)
	default:
		var h block.Hash
		copy(h[:], raw)
		c.tip = h
		c.hasTip = true
		heightRaw, err := db.Get([]byte(keyHeight))
		if err != nil {
			return nil, fmt.Errorf("localchain: read height: %w", err)
		}
		c.height = binary.BigEndian.Uint64(heightRaw)
		return c, nil
	}
}

func blockKey(h block.Hash) []byte { return []byte(blockKeyPfx + hex.EncodeToString(h[:])) }
func nonceKey(a block.AccountID) []byte { return []byte(nonceKeyPfx + hex.EncodeToString(a[:])) }
func heightKey(n uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", heightKeyPfx, n))
}

func (c *Chain) requireTip(at block.Hash) error {
	if !c.hasTip || at != c.tip {
		return fmt.Errorf("localchain: reference block %s is not the current tip", at)
	}
	return nil
}

// Index implements chainapi.Client.
func (c *Chain) Index(at block.Hash, account block.AccountID) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.requireTip(at); err != nil {
		return 0, err
	}
	raw, err := c.db.Get(nonceKey(account))
	if err == storage.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("localchain: read nonce: %w", err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Validators implements chainapi.Client. The reference backend uses a
// static validator set; a production backend would read it from state at
// `at`.
func (c *Chain) Validators(at block.Hash) ([]block.AccountID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.requireTip(at); err != nil {
		return nil, err
	}
	return append([]block.AccountID(nil), c.validators...), nil
}

// RandomSeed implements chainapi.Client. The beacon value is derived
// deterministically from the reference block hash, which is sufficient for
// a reference fixture: real randomness-beacon construction is out of scope.
func (c *Chain) RandomSeed(at block.Hash) ([32]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.requireTip(at); err != nil {
		return [32]byte{}, err
	}
	return crypto.Blake2_256(append([]byte("localchain-randomness-beacon:"), at[:]...)), nil
}

func encodeInherents(inherent chainapi.InherentData) ([][]byte, error) {
	var out [][]byte

	ts, err := json.Marshal(inherentPayload{Kind: "timestamp", Timestamp: inherent.Timestamp})
	if err != nil {
		return nil, err
	}
	out = append(out, block.Encode(block.Extrinsic{Signed: false, Payload: ts}))

	if len(inherent.OfflineReports) > 0 {
		off, err := json.Marshal(inherentPayload{Kind: "offline_report", Offline: inherent.OfflineReports})
		if err != nil {
			return nil, err
		}
		out = append(out, block.Encode(block.Extrinsic{Signed: false, Payload: off}))
	}
	return out, nil
}

// InherentExtrinsics implements chainapi.Client.
func (c *Chain) InherentExtrinsics(at block.Hash, inherent chainapi.InherentData) ([][]byte, error) {
	c.mu.RLock()
	err := c.requireTip(at)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return encodeInherents(inherent)
}

// BuildBlock implements chainapi.Client.
func (c *Chain) BuildBlock(at block.Hash, inherent chainapi.InherentData) (chainapi.BlockBuilder, error) {
	c.mu.RLock()
	err := c.requireTip(at)
	parentNumber := c.height
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	inherents, err := encodeInherents(inherent)
	if err != nil {
		return nil, fmt.Errorf("localchain: encode inherents: %w", err)
	}

	b := &builder{
		parentHash:   at,
		number:       parentNumber + 1,
		timestamp:    inherent.Timestamp,
		notedOffline: append([]uint32(nil), inherent.OfflineReports...),
		extrinsics:   inherents,
	}
	return b, nil
}

// EvaluateBlock implements chainapi.Client. It re-checks that every
// non-inherent extrinsic's nonce is exactly the sender's next committed
// nonce, in order: a candidate assembled honestly from Ready transactions
// always satisfies this.
func (c *Chain) EvaluateBlock(at block.Hash, b *block.Block) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.requireTip(at); err != nil {
		return false, err
	}

	seen := make(map[block.AccountID]uint64)
	for _, raw := range b.Extrinsics {
		xt, err := block.Decode(raw)
		if err != nil {
			return false, nil
		}
		if !xt.Signed {
			continue
		}
		if !ed25519.Verify(ed25519.PublicKey(xt.Sender[:]), xt.Payload, xt.Signature) {
			return false, nil
		}
		next, ok := seen[xt.Sender]
		if !ok {
			committed, err := c.db.Get(nonceKey(xt.Sender))
			switch {
			case err == storage.ErrNotFound:
				next = 0
			case err != nil:
				return false, fmt.Errorf("localchain: read nonce: %w", err)
			default:
				next = binary.BigEndian.Uint64(committed)
			}
		}
		if xt.Index != next {
			return false, nil
		}
		seen[xt.Sender] = next + 1
	}
	return true, nil
}

// Commit applies b's extrinsics (advancing sender nonces) and moves the
// tip forward. This is not part of the chainapi.Client contract — it is
// the local node's own "finalize" step once BFT consensus accepts a block,
// grounded in the teacher's Blockchain.AddBlock.
func (c *Chain) Commit(b *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked(b)
}

func (c *Chain) commitLocked(b *block.Block) error {
	if c.hasTip {
		if b.Header.ParentHash != c.tip {
			return fmt.Errorf("localchain: parent hash mismatch: got %s want %s", b.Header.ParentHash, c.tip)
		}
		if b.Header.Number != c.height+1 {
			return fmt.Errorf("localchain: block number %d does not follow tip %d", b.Header.Number, c.height)
		}
	}

	batch := c.db.NewBatch()
	for _, raw := range b.Extrinsics {
		xt, err := block.Decode(raw)
		if err != nil {
			return fmt.Errorf("localchain: decode extrinsic at commit: %w", err)
		}
		if !xt.Signed {
			continue
		}
		batch.Set(nonceKey(xt.Sender), encodeUint64(xt.Index+1))
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("localchain: marshal block: %w", err)
	}
	hash := b.Header.Hash()
	batch.Set(blockKey(hash), data)
	batch.Set(heightKey(b.Header.Number), hash[:])
	batch.Set([]byte(keyTip), hash[:])
	batch.Set([]byte(keyHeight), encodeUint64(b.Header.Number))
	if err := batch.Write(); err != nil {
		return fmt.Errorf("localchain: write batch: %w", err)
	}

	c.tip = hash
	c.height = b.Header.Number
	c.hasTip = true
	return nil
}

// Block returns a previously committed block by hash.
func (c *Chain) Block(hash block.Hash) (*block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := c.db.Get(blockKey(hash))
	if err == storage.ErrNotFound {
		return nil, fmt.Errorf("localchain: block %s: %w", hash, err)
	}
	if err != nil {
		return nil, fmt.Errorf("localchain: read block: %w", err)
	}
	var b block.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("localchain: unmarshal block: %w", err)
	}
	return &b, nil
}

// Tip returns the current tip hash and height.
func (c *Chain) Tip() (block.Hash, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip, c.height
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
