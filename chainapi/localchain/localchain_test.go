package localchain

import (
	"encoding/hex"
	"testing"

	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/chainapi"
	"github.com/tolelom/bftproposer/crypto"
	"github.com/tolelom/bftproposer/internal/testutil"
)

func newTestChain(t *testing.T) (*Chain, block.AccountID, crypto.PrivateKey) {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	acct, err := block.AccountIDFromHex(priv.Public().Hex())
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	genesis := block.New(block.Hash{}, 0, 1000, acct, nil, nil)
	genesis.Sign(priv)

	c, err := Open(testutil.NewMemDB(), []block.AccountID{acct}, genesis)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c, acct, priv
}

func TestOpenCommitsGenesis(t *testing.T) {
	c, _, _ := newTestChain(t)
	tip, height := c.Tip()
	if tip.IsZero() {
		t.Fatal("expected a non-zero genesis tip hash")
	}
	if height != 0 {
		t.Fatalf("expected height 0, got %d", height)
	}
}

func TestIndexDefaultsToZero(t *testing.T) {
	c, acct, _ := newTestChain(t)
	tip, _ := c.Tip()
	n, err := c.Index(tip, acct)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected nonce 0 for an untouched account, got %d", n)
	}
}

func TestIndexRejectsNonTipReference(t *testing.T) {
	c, acct, _ := newTestChain(t)
	if _, err := c.Index(block.Hash{1, 2, 3}, acct); err == nil {
		t.Fatal("expected an error for a reference block that is not the tip")
	}
}

func TestRandomSeedDeterministic(t *testing.T) {
	c, _, _ := newTestChain(t)
	tip, _ := c.Tip()
	s1, err := c.RandomSeed(tip)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := c.RandomSeed(tip)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatal("random seed must be deterministic for the same reference block")
	}
}

func TestBuildBlockIncludesInherentsAndPushedExtrinsic(t *testing.T) {
	c, acct, priv := newTestChain(t)
	tip, _ := c.Tip()

	builder, err := c.BuildBlock(tip, chainapi.InherentData{Timestamp: 2000, OfflineReports: []uint32{0}})
	if err != nil {
		t.Fatal(err)
	}

	sig := crypto.Sign(priv, []byte("payload"))
	sigBytes, _ := hex.DecodeString(sig)
	xt := block.Encode(block.Extrinsic{Signed: true, Sender: acct, Index: 0, Signature: sigBytes, Payload: []byte("payload")})
	if err := builder.PushExtrinsic(xt); err != nil {
		t.Fatal(err)
	}

	b, err := builder.Bake()
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Extrinsics) != 3 {
		t.Fatalf("expected 2 inherents + 1 transaction, got %d", len(b.Extrinsics))
	}
	if b.Header.Number != 1 {
		t.Fatalf("expected block number 1, got %d", b.Header.Number)
	}
}

func TestEvaluateBlockAcceptsHonestSequence(t *testing.T) {
	c, acct, priv := newTestChain(t)
	tip, _ := c.Tip()

	builder, err := c.BuildBlock(tip, chainapi.InherentData{Timestamp: 2000})
	if err != nil {
		t.Fatal(err)
	}
	sig := crypto.Sign(priv, []byte("p"))
	sigBytes, _ := hex.DecodeString(sig)
	xt := block.Encode(block.Extrinsic{Signed: true, Sender: acct, Index: 0, Signature: sigBytes, Payload: []byte("p")})
	if err := builder.PushExtrinsic(xt); err != nil {
		t.Fatal(err)
	}
	b, err := builder.Bake()
	if err != nil {
		t.Fatal(err)
	}
	b.Header.Proposer = acct
	b.Sign(priv)

	ok, err := c.EvaluateBlock(tip, b)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected an honestly-built block to evaluate true")
	}
}

func TestEvaluateBlockRejectsWrongNonce(t *testing.T) {
	c, acct, priv := newTestChain(t)
	tip, _ := c.Tip()

	builder, err := c.BuildBlock(tip, chainapi.InherentData{Timestamp: 2000})
	if err != nil {
		t.Fatal(err)
	}
	sig := crypto.Sign(priv, []byte("p"))
	sigBytes, _ := hex.DecodeString(sig)
	// Index 5 is not this sender's next nonce (0).
	xt := block.Encode(block.Extrinsic{Signed: true, Sender: acct, Index: 5, Signature: sigBytes, Payload: []byte("p")})
	if err := builder.PushExtrinsic(xt); err != nil {
		t.Fatal(err)
	}
	b, err := builder.Bake()
	if err != nil {
		t.Fatal(err)
	}

	ok, err := c.EvaluateBlock(tip, b)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a wrong-nonce block to be rejected, not errored")
	}
}

func TestCommitAdvancesTipAndNonce(t *testing.T) {
	c, acct, priv := newTestChain(t)
	tip, _ := c.Tip()

	builder, err := c.BuildBlock(tip, chainapi.InherentData{Timestamp: 2000})
	if err != nil {
		t.Fatal(err)
	}
	sig := crypto.Sign(priv, []byte("p"))
	sigBytes, _ := hex.DecodeString(sig)
	xt := block.Encode(block.Extrinsic{Signed: true, Sender: acct, Index: 0, Signature: sigBytes, Payload: []byte("p")})
	if err := builder.PushExtrinsic(xt); err != nil {
		t.Fatal(err)
	}
	b, err := builder.Bake()
	if err != nil {
		t.Fatal(err)
	}
	b.Header.Proposer = acct
	b.Sign(priv)

	if err := c.Commit(b); err != nil {
		t.Fatal(err)
	}

	newTip, height := c.Tip()
	if height != 1 {
		t.Fatalf("expected height 1 after commit, got %d", height)
	}
	n, err := c.Index(newTip, acct)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected nonce 1 after committing index 0, got %d", n)
	}
}
