// Package localnet is a minimal in-memory Network for tests: it hands out
// a channel pair per height instead of opening a real transport. Grounded
// in the teacher's node/peer dispatch idiom, stripped down to the single
// collaborator proposer.Factory actually needs.
package localnet

import (
	"sync"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/proposer"
)

// Message is the only thing carried over a localnet channel pair; its
// payload is opaque to this package, mirroring how proposer.Input/Output
// stay opaque to proposer itself.
type Message struct {
	From    block.AccountID
	Payload []byte
}

// Net is a process-local Network: every node sharing a Net instance gets
// its own buffered inbound channel per parent hash, and its Output sends to
// every other node's channel registered for the same parent hash.
type Net struct {
	mu      sync.Mutex
	byKey   map[key]chan Message
	bufSize int
}

type key struct {
	parent block.Hash
	id     block.AccountID
}

// New creates an empty Net. bufSize sets the per-channel buffer; 0 means
// unbuffered.
func New(bufSize int) *Net {
	return &Net{byKey: make(map[key]chan Message), bufSize: bufSize}
}

// CommunicationFor implements proposer.Network. The returned Input is this
// node's own inbound channel (<-chan Message) for parentHash; Output is a
// send func(Message) that fans out to every other node's channel already
// registered for the same parentHash.
func (n *Net) CommunicationFor(validators []block.AccountID, localID block.AccountID, parentHash block.Hash) (proposer.Input, proposer.Output) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Message, n.bufSize)
	n.byKey[key{parent: parentHash, id: localID}] = ch

	send := func(msg Message) {
		n.mu.Lock()
		peers := make([]chan Message, 0, len(validators))
		for _, v := range validators {
			if v == localID {
				continue
			}
			if c, ok := n.byKey[key{parent: parentHash, id: v}]; ok {
				peers = append(peers, c)
			}
		}
		n.mu.Unlock()
		for _, c := range peers {
			select {
			case c <- msg:
			default:
			}
		}
	}

	var in (<-chan Message) = ch
	var out (func(Message)) = send
	return in, out
}
