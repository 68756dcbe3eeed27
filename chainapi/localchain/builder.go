package localchain

import (
	"fmt"

	"github.com/tolelom/bftproposer/block"
)

const maxBlockSize = 4*1024*1024 + 256*1024

// builder implements chainapi.BlockBuilder. It arrives from Chain.BuildBlock
// with inherent extrinsics already pushed; PushExtrinsic appends further
// (signed) transactions in the order the caller supplies them.
type builder struct {
	parentHash   block.Hash
	number       uint64
	timestamp    uint64
	notedOffline []uint32
	extrinsics   [][]byte
	baked        bool
}

// PushExtrinsic implements chainapi.BlockBuilder.
func (b *builder) PushExtrinsic(raw []byte) error {
	if b.baked {
		return fmt.Errorf("localchain: builder already baked")
	}
	if _, err := block.Decode(raw); err != nil {
		return fmt.Errorf("localchain: push extrinsic: %w", err)
	}
	size := 256
	for _, e := range b.extrinsics {
		size += len(e)
	}
	if size+len(raw) > maxBlockSize {
		return fmt.Errorf("localchain: block would exceed %d bytes", maxBlockSize)
	}
	b.extrinsics = append(b.extrinsics, raw)
	return nil
}

// Bake implements chainapi.BlockBuilder. The returned block is unsigned and
// carries a zero Header.Proposer; the caller (the Proposer) fills that in
// and signs before distributing the candidate.
func (b *builder) Bake() (*block.Block, error) {
	b.baked = true
	return block.New(b.parentHash, b.number, b.timestamp, block.AccountID{}, b.notedOffline, b.extrinsics), nil
}
