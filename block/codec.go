package block

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tolelom/bftproposer/crypto"
)

// ErrShortBuffer is returned by Decode when the bytes are truncated.
var ErrShortBuffer = errors.New("extrinsic: short buffer")

// Extrinsic is the decoded form of an on-chain input: either a signed
// transaction (Signed == true) or an inherent produced by the chain itself
// (Signed == false, Sender/Index/Signature are zero).
type Extrinsic struct {
	Signed    bool
	Sender    AccountID
	Index     uint64
	Signature []byte
	Payload   []byte
}

// Encode serialises the extrinsic to its wire form:
//
//	signed(1) [sender(32) index(8,BE) siglen(2,BE) sig(siglen)] payloadlen(4,BE) payload
//
// The bracketed fields are present only when signed == 1.
func Encode(e Extrinsic) []byte {
	var out []byte
	if e.Signed {
		out = make([]byte, 0, 1+32+8+2+len(e.Signature)+4+len(e.Payload))
		out = append(out, 1)
		out = append(out, e.Sender[:]...)
		var idx [8]byte
		binary.BigEndian.PutUint64(idx[:], e.Index)
		out = append(out, idx[:]...)
		var sl [2]byte
		binary.BigEndian.PutUint16(sl[:], uint16(len(e.Signature)))
		out = append(out, sl[:]...)
		out = append(out, e.Signature...)
	} else {
		out = make([]byte, 0, 1+4+len(e.Payload))
		out = append(out, 0)
	}
	var pl [4]byte
	binary.BigEndian.PutUint32(pl[:], uint32(len(e.Payload)))
	out = append(out, pl[:]...)
	out = append(out, e.Payload...)
	return out
}

// Decode parses the wire form produced by Encode.
func Decode(raw []byte) (Extrinsic, error) {
	var e Extrinsic
	if len(raw) < 1 {
		return e, ErrShortBuffer
	}
	signed := raw[0] == 1
	pos := 1
	e.Signed = signed
	if signed {
		if len(raw) < pos+32+8+2 {
			return e, ErrShortBuffer
		}
		sender, err := AccountIDFromBytes(raw[pos : pos+32])
		if err != nil {
			return e, fmt.Errorf("extrinsic: %w", err)
		}
		e.Sender = sender
		pos += 32
		e.Index = binary.BigEndian.Uint64(raw[pos : pos+8])
		pos += 8
		sigLen := int(binary.BigEndian.Uint16(raw[pos : pos+2]))
		pos += 2
		if len(raw) < pos+sigLen {
			return e, ErrShortBuffer
		}
		e.Signature = append([]byte(nil), raw[pos:pos+sigLen]...)
		pos += sigLen
	}
	if len(raw) < pos+4 {
		return e, ErrShortBuffer
	}
	payloadLen := int(binary.BigEndian.Uint32(raw[pos : pos+4]))
	pos += 4
	if len(raw) < pos+payloadLen {
		return e, ErrShortBuffer
	}
	e.Payload = append([]byte(nil), raw[pos:pos+payloadLen]...)
	return e, nil
}

// HashExtrinsic returns the BLAKE2-256 digest of the encoded bytes
// (spec.md §6: "BLAKE2-256 for extrinsic hashes").
func HashExtrinsic(encoded []byte) Hash {
	return Hash(crypto.Blake2_256(encoded))
}
