package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string. This is
// the block header's declared hasher, used for header hashes and for the
// domain-separating re-hash of the on-chain random seed.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Blake2_256 returns the BLAKE2b-256 digest of data. Extrinsic hashes use
// this function specifically, independent of whichever hasher the block
// header declares.
func Blake2_256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}
