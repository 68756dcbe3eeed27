package block

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tolelom/bftproposer/crypto"
)

// Header is the block metadata that gets hashed and signed. Hashing uses
// the block header's declared hasher — SHA-256 here, see crypto.Hash —
// which is also used to re-hash the on-chain random seed into the
// proposer's local leader-selection seed (spec.md §4.4 step 2).
type Header struct {
	ParentHash     Hash      `json:"parent_hash"`
	Number         uint64    `json:"number"`
	StateRoot      Hash      `json:"state_root"`
	ExtrinsicsRoot Hash      `json:"extrinsics_root"`
	Timestamp      uint64    `json:"timestamp"`
	Proposer       AccountID `json:"proposer"`
	NotedOffline   []uint32  `json:"noted_offline"`
}

// Block pairs a header with its encoded extrinsics (inherents first, then
// transactions, in the order they were pushed onto the builder) and the
// proposer's signature over the header hash.
type Block struct {
	Header     Header   `json:"header"`
	Extrinsics [][]byte `json:"extrinsics"`
	Signature  []byte   `json:"signature"`
}

// Hash returns the header's declared-hasher digest.
func (h Header) Hash() Hash {
	data, err := json.Marshal(h)
	if err != nil {
		// Header contains only fixed-size fields and a []uint32; this cannot fail.
		panic(fmt.Sprintf("block: marshal header: %v", err))
	}
	return Hash(crypto.HashBytes(data))
}

// ComputeExtrinsicsRoot builds a deterministic root over the encoded
// extrinsics, length-prefixing each one so that no two distinct extrinsic
// lists can collide by boundary ambiguity.
func ComputeExtrinsicsRoot(extrinsics [][]byte) Hash {
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, e := range extrinsics {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e)))
		buf.Write(lenBuf[:])
		buf.Write(e)
	}
	return Hash(crypto.HashBytes(buf.Bytes()))
}

// New creates an unsigned block. The caller is expected to have already
// pushed inherents onto Extrinsics (mirroring chainapi.BlockBuilder's
// inherents-already-pushed contract).
func New(parentHash Hash, number uint64, timestamp uint64, proposer AccountID, notedOffline []uint32, extrinsics [][]byte) *Block {
	return &Block{
		Header: Header{
			ParentHash:     parentHash,
			Number:         number,
			ExtrinsicsRoot: ComputeExtrinsicsRoot(extrinsics),
			Timestamp:      timestamp,
			Proposer:       proposer,
			NotedOffline:   notedOffline,
		},
		Extrinsics: extrinsics,
	}
}

// Sign computes the header hash and signs it with the proposer's private key.
func (b *Block) Sign(priv crypto.PrivateKey) {
	hash := b.Header.Hash()
	sigHex := crypto.Sign(priv, hash[:])
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		panic(fmt.Sprintf("block: decode signature produced by crypto.Sign: %v", err))
	}
	b.Signature = sig
}

// Verify checks the proposer's signature over the recomputed header hash.
func (b *Block) Verify(pub crypto.PublicKey) error {
	hash := b.Header.Hash()
	return crypto.Verify(pub, hash[:], hex.EncodeToString(b.Signature))
}

// EncodedSize approximates the wire size of the block: the sum of its
// encoded extrinsics plus a fixed header overhead. evaluateInitial bounds
// this against MaxBlockSize; propose() separately bounds the summed size of
// the pool transactions it packs against MaxTransactionsSize.
func (b *Block) EncodedSize() int {
	const headerOverhead = 256
	size := headerOverhead
	for _, e := range b.Extrinsics {
		size += len(e)
	}
	return size
}
