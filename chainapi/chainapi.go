// Package chainapi defines the contract the transaction pool and the
// proposer consume against node-local chain state. Implementations live
// outside this package (see chainapi/localchain for a reference backend);
// chainapi itself only names the surface.
package chainapi

import "github.com/tolelom/bftproposer/block"

// InherentData carries the values the chain itself contributes to a block:
// the wall-clock timestamp and the offline-validator indices this node
// wants to report.
type InherentData struct {
	Timestamp      uint64
	OfflineReports []uint32
}

// BlockBuilder accumulates extrinsics for one in-progress block. A builder
// returned by Client.BuildBlock has already had its inherents pushed.
type BlockBuilder interface {
	// PushExtrinsic appends raw to the block under construction, failing if
	// raw does not parse or would push the block over its size limit.
	PushExtrinsic(raw []byte) error
	// Bake finalizes the accumulated extrinsics into an unsigned block.
	Bake() (*block.Block, error)
}

// Client is the node-local chain state surface. at identifies the
// reference block every query is evaluated against.
type Client interface {
	// Index returns account's next-expected nonce at the given block.
	Index(at block.Hash, account block.AccountID) (uint64, error)
	// Validators returns the authority set in effect at the given block.
	Validators(at block.Hash) ([]block.AccountID, error)
	// RandomSeed returns the randomness-beacon value at the given block.
	RandomSeed(at block.Hash) ([32]byte, error)
	// BuildBlock returns a builder with inherent extrinsics already pushed.
	BuildBlock(at block.Hash, inherent InherentData) (BlockBuilder, error)
	// InherentExtrinsics returns the encoded inherents for the given height
	// without constructing a builder. Nothing in this module calls it;
	// Proposer.Evaluate does not recompute a candidate's inherents.
	InherentExtrinsics(at block.Hash, inherent InherentData) ([][]byte, error)
	// EvaluateBlock re-executes b against state at at. A false result means
	// the block was rejected by execution (invalid extrinsic, bad state
	// transition); a non-nil error means the call itself could not be
	// completed (storage, network, or other infrastructure failure) and
	// carries no verdict on b's validity.
	EvaluateBlock(at block.Hash, b *block.Block) (bool, error)
}
