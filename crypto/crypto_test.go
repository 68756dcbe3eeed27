package crypto

import "testing"

func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(pub.Hex()) != 64 {
		t.Errorf("pubkey hex length: got %d want 64", len(pub.Hex()))
	}
	addr := pub.Address()
	if len(addr) != 40 {
		t.Errorf("address length: got %d want 40", len(addr))
	}
	if derived := priv.Public(); derived.Hex() != pub.Hex() {
		t.Error("derived public key does not match generated one")
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("hello proposer")
	sig := Sign(priv, data)
	if err := Verify(pub, data, sig); err != nil {
		t.Errorf("valid signature failed: %v", err)
	}
	if err := Verify(pub, []byte("tampered"), sig); err == nil {
		t.Error("tampered data should fail verification")
	}
}

func TestPubKeyFromHexRejectsWrongLength(t *testing.T) {
	if _, err := PubKeyFromHex("abcd"); err == nil {
		t.Error("expected short hex to be rejected")
	}
}

func TestPrivKeyFromHexRoundTrip(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := PrivKeyFromHex(priv.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Public().Hex() != priv.Public().Hex() {
		t.Error("round-tripped private key derives a different public key")
	}
}

func TestHashIsDeterministic(t *testing.T) {
	data := []byte("deterministic")
	if Hash(data) != Hash(data) {
		t.Error("Hash should be deterministic for identical input")
	}
	if len(HashBytes(data)) != 32 {
		t.Error("HashBytes should return 32 bytes")
	}
}

func TestBlake2_256DiffersFromSHA256(t *testing.T) {
	data := []byte("extrinsic payload")
	b2 := Blake2_256(data)
	sha := HashBytes(data)
	if string(b2[:]) == string(sha) {
		t.Error("Blake2_256 and HashBytes must not coincidentally collide on the same input")
	}
}
