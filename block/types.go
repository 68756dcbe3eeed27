// Package block defines the shapes of the chain's wire-level objects: the
// account identifier, the 32-byte digests used throughout the core, block
// headers and bodies, and the length-prefixed extrinsic envelope. The wire
// encoding is deliberately simple — the core treats it as the "opaque,
// length-prefixed binary codec" spec.md §6 describes, and only the
// transaction pool's verification, the reference Chain API backend
// (chainapi/localchain) and tests decode it concretely.
package block

import (
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte digest: a block hash, a transaction hash, or the
// randomness-beacon seed.
type Hash [32]byte

// String renders the hash as lowercase hex.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the zero hash (used for the genesis parent).
func (h Hash) IsZero() bool { return h == Hash{} }

// AccountID identifies a chain participant by their raw ed25519 public key
// bytes. It doubles as the validator/authority identifier.
type AccountID [32]byte

// Hex renders the account ID as lowercase hex.
func (a AccountID) Hex() string { return hex.EncodeToString(a[:]) }

// AccountIDFromHex decodes a hex-encoded account ID.
func AccountIDFromHex(s string) (AccountID, error) {
	var a AccountID
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid account id hex: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("account id must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AccountIDFromBytes copies raw bytes into an AccountID, erroring on bad length.
func AccountIDFromBytes(b []byte) (AccountID, error) {
	var a AccountID
	if len(b) != len(a) {
		return a, fmt.Errorf("account id must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}
