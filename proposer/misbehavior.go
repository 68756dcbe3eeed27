package proposer

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/chainerr"
)

// MisbehaviorKind enumerates the BFT misbehavior evidence kinds the round
// engine can observe.
type MisbehaviorKind string

const (
	ProposeOutOfTurn MisbehaviorKind = "propose_out_of_turn"
	DoublePropose    MisbehaviorKind = "double_propose"
	BftDoublePrepare MisbehaviorKind = "bft_double_prepare"
	BftDoubleCommit  MisbehaviorKind = "bft_double_commit"
)

// Vote is one half of a double-vote evidence pair: the hash the validator
// voted for, and its signature over that vote.
type Vote struct {
	Hash      block.Hash `json:"hash"`
	Signature []byte     `json:"signature"`
}

// Evidence is what the BFT round engine hands to ImportMisbehavior for one
// observed misbehaving validator.
type Evidence struct {
	Target block.AccountID
	Kind   MisbehaviorKind
	Round  uint32
	First  Vote
	Second Vote
}

// Report is the on-chain payload: a signed accusation against Target,
// anchored to the parent block it was raised against.
type Report struct {
	ParentHash   block.Hash      `json:"parent_hash"`
	ParentNumber uint64          `json:"parent_number"`
	Target       block.AccountID `json:"target"`
	Kind         MisbehaviorKind `json:"kind"`
	Round        uint32          `json:"round"`
	First        Vote            `json:"first"`
	Second       Vote            `json:"second"`
}

// ImportMisbehavior translates engine-observed BFT misbehavior into signed,
// self-submitted extrinsics carrying a Report for each punishable kind.
// ProposeOutOfTurn and DoublePropose are not punishable in this design and
// are skipped. Submission failures are treated as programming errors: the
// extrinsic is self-constructed from the local signing key and is always
// well-formed and correctly sequenced, so a rejection means pool
// invariants were violated elsewhere.
func (p *Proposer) ImportMisbehavior(evidence []Evidence) error {
	nextIndex, err := p.nextLocalIndex()
	if err != nil {
		return err
	}

	for _, ev := range evidence {
		if ev.Kind != BftDoublePrepare && ev.Kind != BftDoubleCommit {
			continue
		}
		report := Report{
			ParentHash:   p.parentHash,
			ParentNumber: p.parentNumber,
			Target:       ev.Target,
			Kind:         ev.Kind,
			Round:        ev.Round,
			First:        ev.First,
			Second:       ev.Second,
		}
		payload, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("proposer: marshal misbehavior report: %w", err)
		}
		sig := ed25519.Sign(ed25519.PrivateKey(p.localKey), payload)
		raw := block.Encode(block.Extrinsic{
			Signed:    true,
			Sender:    p.localID,
			Index:     nextIndex,
			Signature: sig,
			Payload:   payload,
		})
		if _, err := p.pool.Submit(raw); err != nil {
			panic(fmt.Sprintf("proposer: self-constructed misbehavior report was rejected by the pool: %v", err))
		}
		nextIndex++
	}
	return nil
}

// nextLocalIndex is one past the highest index this node already has
// pending in the pool, falling back to the Chain API's committed nonce
// when nothing of this node's is pending.
func (p *Proposer) nextLocalIndex() (uint64, error) {
	if highest, ok := p.pool.HighestPendingIndex(p.localID); ok {
		return highest + 1, nil
	}
	next, err := p.api.Index(p.parentHash, p.localID)
	if err != nil {
		return 0, chainerr.API("index", err)
	}
	return next, nil
}
