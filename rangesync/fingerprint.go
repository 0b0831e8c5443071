package rangesync

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// FingerprintSize is the fixed size of a Fingerprint in bytes.
const FingerprintSize = 32

// Fingerprint is a 32-byte digest over a (sub)set of entries with an XOR
// monoid structure: Empty() is the identity, and XOR is associative and
// commutative, so the fingerprint of a set equals the XOR of the
// fingerprints of any partition of that set into disjoint subsets.
type Fingerprint [FingerprintSize]byte

// emptyFingerprint is blake3 of the empty byte string, computed once and
// reused so Empty never re-hashes.
var emptyFingerprint = Fingerprint(blake3.Sum256(nil))

// Empty returns the fingerprint of the empty set. Both peers in a session
// must agree on this constant; it is derived deterministically from
// hashing the empty byte string.
func Empty() Fingerprint {
	return emptyFingerprint
}

// IsEmpty reports whether fp equals the fingerprint of the empty set.
func (fp Fingerprint) IsEmpty() bool {
	return fp == emptyFingerprint
}

// XOR returns the componentwise XOR of fp and other, combining the
// fingerprints of two disjoint sets into the fingerprint of their union.
func (fp Fingerprint) XOR(other Fingerprint) Fingerprint {
	var out Fingerprint
	for i := range out {
		out[i] = fp[i] ^ other[i]
	}
	return out
}

// XORAssign XORs other into fp in place.
func (fp *Fingerprint) XORAssign(other Fingerprint) {
	for i := range fp {
		fp[i] ^= other[i]
	}
}

// String renders the fingerprint as a hex string, for logging.
func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// FingerprintOf hashes an entry's wire representation into a Fingerprint.
// Each part is prefixed with its uvarint length before hashing, so the
// same bytes split into parts differently hash differently. It is a small
// helper for Entry implementations that just want to hash key+value
// bytes; Entry implementations are free to compute
// fingerprints any other way as long as two entries that differ compare
// unequal fingerprints with overwhelming probability.
func FingerprintOf(parts ...[]byte) Fingerprint {
	h := blake3.New()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, p := range parts {
		n := binary.PutUvarint(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:n]) //nolint:errcheck // blake3.Hasher.Write never fails
		h.Write(p)          //nolint:errcheck // blake3.Hasher.Write never fails
	}
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}
