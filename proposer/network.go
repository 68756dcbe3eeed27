package proposer

import "github.com/tolelom/bftproposer/block"

// Input is the BFT round engine's inbound message stream for one height,
// as handed back by Network.CommunicationFor. This package never inspects
// its contents — interpreting BFT protocol messages is the round engine's
// job, not the proposer's.
type Input any

// Output is the outbound counterpart of Input.
type Output any

// Network is the abstract collaborator the BFT round engine uses to open
// per-height communication channels. A concrete implementation owns the
// real transport; proposer/localnet provides a minimal in-memory one for
// tests.
type Network interface {
	CommunicationFor(validators []block.AccountID, localID block.AccountID, parentHash block.Hash) (Input, Output)
}
