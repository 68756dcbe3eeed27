package block

import (
	"testing"

	"github.com/tolelom/bftproposer/crypto"
)

func testAccount(t *testing.T) (crypto.PrivateKey, AccountID) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	acct, err := AccountIDFromHex(pub.Hex())
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	return priv, acct
}

func TestHeaderHashIsDeterministic(t *testing.T) {
	_, acct := testAccount(t)
	b := New(Hash{}, 1, 100, acct, nil, nil)
	if b.Header.Hash() != b.Header.Hash() {
		t.Error("header hash must be deterministic for identical fields")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, acct := testAccount(t)
	pub := priv.Public()
	b := New(Hash{}, 1, 100, acct, nil, nil)
	b.Sign(priv)

	if err := b.Verify(pub); err != nil {
		t.Fatalf("expected valid signature to verify: %v", err)
	}

	b.Header.Timestamp++
	if err := b.Verify(pub); err == nil {
		t.Error("mutating the header after signing should invalidate the signature")
	}
}

func TestComputeExtrinsicsRootDiffersOnReorder(t *testing.T) {
	a := ComputeExtrinsicsRoot([][]byte{[]byte("a"), []byte("bb")})
	b := ComputeExtrinsicsRoot([][]byte{[]byte("bb"), []byte("a")})
	if a == b {
		t.Error("extrinsics root should depend on ordering")
	}
}

func TestEncodeDecodeSignedExtrinsic(t *testing.T) {
	_, acct := testAccount(t)
	xt := Extrinsic{
		Signed:    true,
		Sender:    acct,
		Index:     7,
		Signature: []byte("sig-bytes"),
		Payload:   []byte("payload"),
	}
	raw := Encode(xt)
	got, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sender != xt.Sender || got.Index != xt.Index || string(got.Payload) != string(xt.Payload) {
		t.Errorf("decoded extrinsic does not match encoded one: %+v", got)
	}
}

func TestEncodeDecodeInherentExtrinsic(t *testing.T) {
	xt := Extrinsic{Signed: false, Payload: []byte("inherent-data")}
	raw := Encode(xt)
	got, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Signed {
		t.Error("expected decoded inherent to remain unsigned")
	}
	if string(got.Payload) != "inherent-data" {
		t.Errorf("payload mismatch: got %q", got.Payload)
	}
}

func TestDecodeShortBufferErrors(t *testing.T) {
	if _, err := Decode(nil); err != ErrShortBuffer {
		t.Errorf("expected ErrShortBuffer for empty input, got %v", err)
	}
}

func TestAccountIDFromHexRejectsWrongLength(t *testing.T) {
	if _, err := AccountIDFromHex("ab"); err == nil {
		t.Error("expected short hex to be rejected")
	}
}
