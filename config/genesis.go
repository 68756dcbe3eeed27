package config

import (
	"github.com/tolelom/bftproposer/block"
	"github.com/tolelom/bftproposer/crypto"
)

// CreateGenesisBlock builds and signs block #0: empty extrinsics, zero
// parent hash, the holder of proposerPriv as nominal proposer and signer.
func CreateGenesisBlock(proposerPriv crypto.PrivateKey, timestamp uint64) *block.Block {
	proposerPub := proposerPriv.Public()
	acct, err := block.AccountIDFromHex(proposerPub.Hex())
	if err != nil {
		// Public keys from crypto.GenerateKeyPair are always 32 bytes; a hex
		// decode failure here would mean the key material itself is corrupt.
		panic("config: genesis proposer key is not a valid account id: " + err.Error())
	}

	b := block.New(block.Hash{}, 0, timestamp, acct, nil, nil)
	b.Sign(proposerPriv)
	return b
}

// IsGenesisHash reports whether h is the canonical zero previous-hash used
// by block #0.
func IsGenesisHash(h block.Hash) bool {
	return h.IsZero()
}
