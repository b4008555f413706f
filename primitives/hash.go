// Package primitives holds the fixed-width encoding building blocks shared by
// every layer of the chain engine: the 32-byte hash type, compact-difficulty
// bignum conversion, and the CompactSize varint used throughout the on-disk
// and wire formats.
package primitives

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a double-SHA-256 digest.
const HashSize = 32

// Hash is a 32-byte opaque digest stored in raw (internal) byte order. The
// reversed (big-endian display) order used by block explorers and RPC is
// purely presentational and lives only in String/ParseDisplay.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash used as the "no parent" sentinel for genesis.
var ZeroHash Hash

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool { return h == ZeroHash }

// Reversed returns a copy of h with byte order reversed, i.e. converts
// between internal and display order.
func (h Hash) Reversed() Hash {
	var out Hash
	for i := 0; i < HashSize; i++ {
		out[i] = h[HashSize-1-i]
	}
	return out
}

// String renders h in reversed (display) hex order, matching how block and
// transaction hashes are conventionally printed.
func (h Hash) String() string {
	r := h.Reversed()
	return hex.EncodeToString(r[:])
}

// RawHex renders h in raw (internal) byte order, with no reversal. Useful for
// constructing sorted KV keys from a hash.
func (h Hash) RawHex() string {
	return hex.EncodeToString(h[:])
}

// ParseDisplayHash parses a reversed-order display hex string (as produced by
// String) back into internal byte order.
func ParseDisplayHash(s string) (Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("primitives: parse hash: %w", err)
	}
	if len(raw) != HashSize {
		return Hash{}, fmt.Errorf("primitives: parse hash: expected %d bytes, got %d", HashSize, len(raw))
	}
	var out Hash
	for i := 0; i < HashSize; i++ {
		out[i] = raw[HashSize-1-i]
	}
	return out, nil
}

// HashFromRawBytes copies b (already in internal byte order) into a Hash.
func HashFromRawBytes(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("primitives: hash: expected %d bytes, got %d", HashSize, len(b))
	}
	var out Hash
	copy(out[:], b)
	return out, nil
}

// DoubleSHA256 is Bitcoin's consensus hash: SHA-256 applied to its own
// digest, the same construction BlockHeader.Hash and Tx.Hash use inline.
func DoubleSHA256(b []byte) Hash {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash(second)
}

// Less imposes a total order over hashes using raw byte order, used for the
// lexicographic tie-break on equal chainwork.
func Less(a, b Hash) bool {
	for i := 0; i < HashSize; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
