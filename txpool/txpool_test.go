package txpool

import (
	"crypto/ed25519"
	"testing"

	"github.com/tolelom/bftproposer/block"
)

// fakeAPI resolves nonces from a fixed map, defaulting to 0 for unknown senders.
type fakeAPI struct {
	nonces map[block.AccountID]uint64
	err    error
}

func (f *fakeAPI) Index(_ block.Hash, account block.AccountID) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.nonces[account], nil
}

func newKeypair(t *testing.T) (ed25519.PrivateKey, block.AccountID) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	acct, err := block.AccountIDFromBytes(pub)
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	return priv, acct
}

func signedExtrinsic(t *testing.T, priv ed25519.PrivateKey, sender block.AccountID, index uint64, payload string) []byte {
	t.Helper()
	sig := ed25519.Sign(priv, []byte(payload))
	return block.Encode(block.Extrinsic{
		Signed:    true,
		Sender:    sender,
		Index:     index,
		Signature: sig,
		Payload:   []byte(payload),
	})
}

func inherentExtrinsic(payload string) []byte {
	return block.Encode(block.Extrinsic{Signed: false, Payload: []byte(payload)})
}

func TestSubmitRejectsInherent(t *testing.T) {
	pool := New(&fakeAPI{nonces: map[block.AccountID]uint64{}}, Options{})
	_, err := pool.Submit(inherentExtrinsic("timestamp"))
	if err == nil {
		t.Fatal("expected IsInherent rejection")
	}
}

func TestSubmitRejectsGarbage(t *testing.T) {
	pool := New(&fakeAPI{}, Options{})
	if _, err := pool.Submit([]byte{}); err == nil {
		t.Fatal("expected InvalidExtrinsicFormat rejection")
	}
}

func TestFIFOInclusionSingleSender(t *testing.T) {
	priv, sender := newKeypair(t)
	api := &fakeAPI{nonces: map[block.AccountID]uint64{sender: 7}}
	pool := New(api, Options{})

	for _, idx := range []uint64{7, 8, 9} {
		if _, err := pool.Submit(signedExtrinsic(t, priv, sender, idx, "p")); err != nil {
			t.Fatalf("submit %d: %v", idx, err)
		}
	}
	// A fourth transaction with a gap stays Future.
	if _, err := pool.Submit(signedExtrinsic(t, priv, sender, 11, "p")); err != nil {
		t.Fatalf("submit 11: %v", err)
	}

	var got []uint64
	pool.CullAndGetPending(block.Hash{}, func(pending []VerifiedTransaction) {
		for _, p := range pending {
			got = append(got, p.Index)
		}
	})
	want := []uint64{7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("pending[%d] = %d, want %d", i, got[i], w)
		}
	}
}

func TestGapKeepsFutureHeld(t *testing.T) {
	priv, sender := newKeypair(t)
	api := &fakeAPI{nonces: map[block.AccountID]uint64{sender: 7}}
	pool := New(api, Options{})

	if _, err := pool.Submit(signedExtrinsic(t, priv, sender, 9, "p")); err != nil {
		t.Fatal(err)
	}
	var count int
	pool.CullAndGetPending(block.Hash{}, func(pending []VerifiedTransaction) { count = len(pending) })
	if count != 0 {
		t.Fatalf("expected nothing ready with a gap, got %d", count)
	}

	if _, err := pool.Submit(signedExtrinsic(t, priv, sender, 7, "p")); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Submit(signedExtrinsic(t, priv, sender, 8, "p")); err != nil {
		t.Fatal(err)
	}

	var got []uint64
	pool.CullAndGetPending(block.Hash{}, func(pending []VerifiedTransaction) {
		for _, p := range pending {
			got = append(got, p.Index)
		}
	})
	want := []uint64{7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
}

func TestReplacementByCollision(t *testing.T) {
	priv, sender := newKeypair(t)
	api := &fakeAPI{nonces: map[block.AccountID]uint64{sender: 7}}
	pool := New(api, Options{})

	h1, err := pool.Submit(signedExtrinsic(t, priv, sender, 7, "bytes_a"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := pool.Submit(signedExtrinsic(t, priv, sender, 7, "bytes_b"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("replacement should change the transaction hash")
	}

	var got []VerifiedTransaction
	pool.CullAndGetPending(block.Hash{}, func(pending []VerifiedTransaction) { got = pending })
	if len(got) != 1 {
		t.Fatalf("expected exactly one entry for (sender,7), got %d", len(got))
	}
	if got[0].Hash != h2 {
		t.Fatal("surviving entry should be the replacement")
	}
}

func TestStaleCulled(t *testing.T) {
	priv, sender := newKeypair(t)
	api := &fakeAPI{nonces: map[block.AccountID]uint64{sender: 10}}
	pool := New(api, Options{})
	if _, err := pool.Submit(signedExtrinsic(t, priv, sender, 5, "p")); err != nil {
		t.Fatal(err)
	}
	pool.CullAndGetPending(block.Hash{}, func([]VerifiedTransaction) {})
	st := pool.Status(block.Hash{})
	if st.ReadyCount != 0 || st.FutureCount != 0 || st.TotalBytes != 0 {
		t.Fatalf("stale transaction should have been culled: %+v", st)
	}
}

func TestIdempotentSubmission(t *testing.T) {
	priv, sender := newKeypair(t)
	api := &fakeAPI{nonces: map[block.AccountID]uint64{sender: 0}}
	pool := New(api, Options{})
	raw := signedExtrinsic(t, priv, sender, 0, "same")

	h1, err := pool.Submit(raw)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := pool.Submit(raw)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatal("identical bytes must hash identically")
	}
	st := pool.Status(block.Hash{})
	if st.ReadyCount != 1 {
		t.Fatalf("expected one ready transaction after duplicate submit, got %d", st.ReadyCount)
	}
}

func TestIndexAPIErrorTreatsAsFuture(t *testing.T) {
	priv, sender := newKeypair(t)
	api := &fakeAPI{err: errBoom}
	pool := New(api, Options{})
	if _, err := pool.Submit(signedExtrinsic(t, priv, sender, 3, "p")); err != nil {
		t.Fatal(err)
	}
	var readyCount int
	pool.CullAndGetPending(block.Hash{}, func(pending []VerifiedTransaction) { readyCount = len(pending) })
	if readyCount != 0 {
		t.Fatal("API error must not classify transactions as Ready")
	}
	st := pool.Status(block.Hash{})
	if st.FutureCount != 1 {
		t.Fatalf("API error should classify as Future, got status %+v", st)
	}
}

func TestPoolFullRejectsNew(t *testing.T) {
	priv, sender := newKeypair(t)
	api := &fakeAPI{nonces: map[block.AccountID]uint64{sender: 0}}
	raw := signedExtrinsic(t, priv, sender, 0, "p")
	pool := New(api, Options{Capacity: len(raw)})
	if _, err := pool.Submit(raw); err != nil {
		t.Fatal(err)
	}
	raw2 := signedExtrinsic(t, priv, sender, 1, "p")
	if _, err := pool.Submit(raw2); err == nil {
		t.Fatal("expected PoolFull rejection")
	}
}

var errBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }
