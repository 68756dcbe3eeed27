package proposer

import (
	"fmt"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/chainerr"
)

// MaxBlockSize is the structural size ceiling evaluateInitial enforces. It
// must stay at or above the 4 MiB transaction budget plus header/inherent
// overhead that a builder is allowed to fill (chainapi/localchain uses the
// same bound for its own builder).
const MaxBlockSize = 4*1024*1024 + 256*1024

// maxFutureSeconds bounds how far past "now" a candidate's timestamp may
// sit before evaluateInitial calls it structurally invalid, independent of
// the vote-delay evaluate() applies for timestamps that are merely ahead of
// the minimum.
const maxFutureSeconds = 600

// ProposalView is the lightweight read-only accessor evaluateInitial
// returns on success.
type ProposalView struct {
	blk *block.Block
}

// Timestamp returns the candidate's declared timestamp.
func (v ProposalView) Timestamp() uint64 { return v.blk.Header.Timestamp }

// NotedOffline returns the candidate's claimed offline-validator indices.
func (v ProposalView) NotedOffline() []uint32 { return v.blk.Header.NotedOffline }

// evaluateInitial performs the structural checks every candidate must pass
// before evaluate() asks the Chain API to re-execute it: parent linkage,
// height continuity, a plausible timestamp, and the block size bound.
func evaluateInitial(candidate *block.Block, nowTs uint64, parentHash block.Hash, parentNumber uint64, minimumTimestamp uint64, maxBlockSize int) (ProposalView, error) {
	if candidate.Header.ParentHash != parentHash {
		return ProposalView{}, chainerr.Evaluation(chainerr.EvalBadParentHash,
			fmt.Sprintf("got %s want %s", candidate.Header.ParentHash, parentHash))
	}
	if candidate.Header.Number != parentNumber+1 {
		return ProposalView{}, chainerr.Evaluation(chainerr.EvalBadParentNumber,
			fmt.Sprintf("got %d want %d", candidate.Header.Number, parentNumber+1))
	}
	if candidate.EncodedSize() > maxBlockSize {
		return ProposalView{}, chainerr.Evaluation(chainerr.EvalTooLarge,
			fmt.Sprintf("%d bytes exceeds %d", candidate.EncodedSize(), maxBlockSize))
	}
	if candidate.Header.Timestamp < minimumTimestamp {
		return ProposalView{}, chainerr.Evaluation(chainerr.EvalBadTimestamp,
			fmt.Sprintf("timestamp %d below minimum %d", candidate.Header.Timestamp, minimumTimestamp))
	}
	if candidate.Header.Timestamp > nowTs+maxFutureSeconds {
		return ProposalView{}, chainerr.Evaluation(chainerr.EvalBadTimestamp,
			fmt.Sprintf("timestamp %d too far beyond now %d", candidate.Header.Timestamp, nowTs))
	}
	return ProposalView{blk: candidate}, nil
}
