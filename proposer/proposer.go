// Package proposer builds and evaluates block candidates for one BFT
// round-engine height: constructing a proposal from the transaction pool,
// evaluating proposals from other validators with timestamp-enforced
// delays, picking the deterministic round leader, and translating BFT
// misbehavior evidence into signed on-chain reports.
package proposer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/holiman/uint256"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/chainapi"
	"github.com/tolelom/bftproposer/chainerr"
	"github.com/tolelom/bftproposer/crypto"
	"github.com/tolelom/bftproposer/offline"
	"github.com/tolelom/bftproposer/txpool"
)

// MaxTransactionsSize bounds the aggregate encoded size of pool
// transactions a single proposal will include. It is the same 4 MiB figure
// as txpool.MaxTransactionSize but a distinct constant: that one bounds a
// single extrinsic, this one bounds the whole batch propose() packs in.
const MaxTransactionsSize = 4 * 1024 * 1024

// ForceDelay is added to "now" when computing a fresh proposer's
// minimum_timestamp, so an honest proposer never backdates a block.
const ForceDelay = 5 * time.Second

// OfflineReportWindow bounds how long after construction a Proposer will
// still attach offline reports to its own proposal; past this, its local
// view of liveness may be stale, or it may itself be the delayed party, so
// it proposes with no accusations rather than risk a false one.
const OfflineReportWindow = 60 * time.Second

// Options carries the implementation-chosen constants spec.md §9 leaves
// open. Overridable per instance, primarily for tests.
type Options struct {
	ForceDelay          time.Duration
	OfflineReportWindow time.Duration
	MaxBlockSize        int
}

// DefaultOptions returns the production constants.
func DefaultOptions() Options {
	return Options{
		ForceDelay:          ForceDelay,
		OfflineReportWindow: OfflineReportWindow,
		MaxBlockSize:        MaxBlockSize,
	}
}

// Factory is the per-node, long-lived entry point the BFT round engine
// calls into once per height.
type Factory struct {
	api     chainapi.Client
	pool    *txpool.Pool
	offline *offline.Tracker
	net     Network
	opt     Options
}

// NewFactory wires a Factory from its collaborators.
func NewFactory(api chainapi.Client, pool *txpool.Pool, offline *offline.Tracker, net Network, opt Options) *Factory {
	return &Factory{api: api, pool: pool, offline: offline, net: net, opt: opt}
}

// localID derives an AccountID from a signing key's public bytes.
func localID(priv crypto.PrivateKey) (block.AccountID, error) {
	pub := priv.Public()
	id, err := block.AccountIDFromHex(pub.Hex())
	if err != nil {
		return block.AccountID{}, fmt.Errorf("proposer: derive local id: %w", err)
	}
	return id, nil
}

// Init performs the seven steps of the factory contract: resolve the
// parent reference, fetch and re-hash the random seed, fetch validators
// and re-sync the offline tracker, derive the local id, open network
// channels, and assemble the immutable per-height Proposer snapshot.
func (f *Factory) Init(parentHeader block.Header, signingKey crypto.PrivateKey) (*Proposer, Input, Output, error) {
	parentHash := parentHeader.Hash()

	seed, err := f.api.RandomSeed(parentHash)
	if err != nil {
		return nil, nil, nil, chainerr.API("random_seed", err)
	}
	// Domain-separate the on-chain beacon from the leader-selection input by
	// re-hashing it with the block header's declared hasher.
	localSeedBytes := crypto.HashBytes(seed[:])
	var localSeed [32]byte
	copy(localSeed[:], localSeedBytes)

	validators, err := f.api.Validators(parentHash)
	if err != nil {
		return nil, nil, nil, chainerr.API("validators", err)
	}
	f.offline.NoteNewBlock(validators)

	id, err := localID(signingKey)
	if err != nil {
		return nil, nil, nil, err
	}

	input, output := f.net.CommunicationFor(validators, id, parentHash)

	start := time.Now()
	p := &Proposer{
		api:              f.api,
		pool:             f.pool,
		offline:          f.offline,
		opt:              f.opt,
		parentHash:       parentHash,
		parentNumber:     parentHeader.Number,
		randomSeed:       localSeed,
		validators:       validators,
		localKey:         signingKey,
		localID:          id,
		start:            start,
		minimumTimestamp: uint64(start.Unix()) + uint64(f.opt.ForceDelay.Seconds()),
	}
	return p, input, output, nil
}

// Proposer is an immutable per-height snapshot: constructed by Factory.Init
// on BFT init, used for the lifetime of one height, then dropped by the
// engine when the height finalizes.
type Proposer struct {
	api     chainapi.Client
	pool    *txpool.Pool
	offline *offline.Tracker
	opt     Options

	parentHash   block.Hash
	parentNumber uint64
	randomSeed   [32]byte
	validators   []block.AccountID
	localKey     crypto.PrivateKey
	localID      block.AccountID

	start            time.Time
	minimumTimestamp uint64
}

func nowUnix() uint64 { return uint64(time.Now().Unix()) }

// Propose builds a candidate block: inherent data first, then as many
// Ready pool transactions as fit under MaxTransactionsSize, in ascending
// (sender, index) order.
func (p *Proposer) Propose() (*block.Block, error) {
	ts := p.minimumTimestamp
	if now := nowUnix(); now > ts {
		ts = now
	}

	var offlineIdx []uint32
	if time.Since(p.start) <= p.opt.OfflineReportWindow {
		offlineIdx = p.offline.Reports(p.validators)
	}

	builder, err := p.api.BuildBlock(p.parentHash, chainapi.InherentData{Timestamp: ts, OfflineReports: offlineIdx})
	if err != nil {
		return nil, chainerr.API("build_block", err)
	}

	var bytesUsed int
	var invalid []block.Hash
	p.pool.CullAndGetPending(p.parentHash, func(pending []txpool.VerifiedTransaction) {
		for _, vt := range pending {
			if bytesUsed+vt.EncodedSize >= MaxTransactionsSize {
				break
			}
			if err := builder.PushExtrinsic(vt.Encoded); err != nil {
				invalid = append(invalid, vt.Hash)
				continue
			}
			bytesUsed += vt.EncodedSize
		}
	})
	p.pool.Remove(invalid, false)

	blk, err := builder.Bake()
	if err != nil {
		return nil, chainerr.API("bake", err)
	}
	blk.Header.Proposer = p.localID
	blk.Sign(p.localKey)

	if _, err := evaluateInitial(blk, nowUnix(), p.parentHash, p.parentNumber, p.minimumTimestamp, p.opt.MaxBlockSize); err != nil {
		panic(fmt.Sprintf("proposer: self-built block failed its own evaluation: %v", err))
	}
	return blk, nil
}

// Evaluate asynchronously judges an incoming candidate. The returned
// channel eventually carries true (vote yes) or false (vote no); a nil
// channel with a nil error means abstain — the candidate accuses a
// validator this node's own offline tracker disagrees with, so it is
// deliberately left to never resolve. Cancelling ctx before a scheduled
// delay elapses also abstains.
func (p *Proposer) Evaluate(ctx context.Context, candidate *block.Block) (<-chan bool, error) {
	view, err := evaluateInitial(candidate, nowUnix(), p.parentHash, p.parentNumber, p.minimumTimestamp, p.opt.MaxBlockSize)
	if err != nil {
		return resolved(false), nil
	}

	if !p.offline.CheckConsistency(p.validators, view.NotedOffline()) {
		return nil, nil
	}

	proposedTs := p.minimumTimestamp
	if view.Timestamp() > proposedTs {
		proposedTs = view.Timestamp()
	}
	var delay time.Duration
	if now := nowUnix(); proposedTs > now {
		delay = time.Duration(proposedTs-now) * time.Second
	}

	accepted, err := p.api.EvaluateBlock(p.parentHash, candidate)
	if err != nil {
		return nil, chainerr.API("evaluate_block", err)
	}
	if !accepted {
		return resolved(false), nil
	}

	ch := make(chan bool, 1)
	go func() {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		ch <- true
		close(ch)
	}()
	return ch, nil
}

func resolved(v bool) <-chan bool {
	ch := make(chan bool, 1)
	ch <- v
	close(ch)
	return ch
}

// RoundProposer computes the deterministic round leader given a 32-byte
// local seed and an authority list. Identical across honest nodes given
// the same seed and authorities: the seed picks a uniformly-distributed
// starting offset, and each subsequent round advances it by one.
func RoundProposer(seed [32]byte, round uint64, authorities []block.AccountID) block.AccountID {
	if len(authorities) == 0 {
		panic("proposer: empty authority set")
	}
	n := uint256.NewInt(uint64(len(authorities)))
	seedInt := new(uint256.Int).SetBytes(seed[:])
	base := new(uint256.Int).Mod(seedInt, n)
	offset := (base.Uint64() + round) % uint64(len(authorities))
	return authorities[offset]
}

// RoundProposer is the Proposer-scoped form of the package function,
// selecting among the given authorities with the seed captured at
// construction.
func (p *Proposer) RoundProposer(round uint64, authorities []block.AccountID) block.AccountID {
	return RoundProposer(p.randomSeed, round, authorities)
}

// OnRoundEnd reports the round's outcome to the offline tracker. It uses
// validators (the chain state authority set at the parent), not whatever
// authorities list the BFT engine used for this round's voting committee.
func (p *Proposer) OnRoundEnd(round uint64, wasProposed bool) {
	primary := RoundProposer(p.randomSeed, round, p.validators)
	if !wasProposed {
		log.Printf("[proposer] round %d: primary %s did not propose", round, primary.Hex())
	}
	p.offline.NoteRoundEnd(primary, wasProposed)
}
