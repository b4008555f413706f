// Package chainutil implements ChainEntry (spec.md §4.2): the per-block
// header record carrying cumulative proof-of-work, used for ancestor walks,
// median-time-past, and retarget computation.
package chainutil

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"ledgerd.dev/chain/primitives"
)

// HeaderBytesSize is the length of the on-wire header encoding whose double-
// SHA-256 is the block hash (spec.md §4.2): the first 80 bytes, distinct from
// the larger persisted ChainEntry layout.
const HeaderBytesSize = 80

// EntrySize is the fixed length of the persisted ChainEntry record (spec.md
// §6): version(4) | prevHash(32) | merkleRoot(32) | ts(4) | bits(4) |
// nonce(4) | height(4) | chainwork(32 LE) = 116 bytes.
const EntrySize = 4 + 32 + 32 + 4 + 4 + 4 + 4 + 32

// Entry is a header record: created on valid header, persisted immediately,
// never mutated, removed only by reset or alternate-chain pruning.
type Entry struct {
	Hash       primitives.Hash
	PrevHash   primitives.Hash
	MerkleRoot primitives.Hash
	Version    uint32
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
	Height     uint32
	Chainwork  *big.Int
}

// HeaderBytes renders the 80-byte wire header whose double-SHA-256 is Hash.
// Kept as a dedicated scratch-buffer helper, separate from Serialize, per the
// design notes' warning about deserialization aliasing: the hash must always
// be derived from this encoding, never from the persisted 116-byte layout.
func (e *Entry) HeaderBytes() []byte {
	b := make([]byte, HeaderBytesSize)
	binary.LittleEndian.PutUint32(b[0:4], e.Version)
	copy(b[4:36], e.PrevHash[:])
	copy(b[36:68], e.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[68:72], e.Timestamp)
	binary.LittleEndian.PutUint32(b[72:76], e.Bits)
	binary.LittleEndian.PutUint32(b[76:80], e.Nonce)
	return b
}

// ComputeHash derives e.Hash from HeaderBytes via double-SHA-256.
func (e *Entry) ComputeHash() primitives.Hash {
	first := sha256.Sum256(e.HeaderBytes())
	second := sha256.Sum256(first[:])
	return primitives.Hash(second)
}

// Serialize writes the fixed 116-byte persisted layout.
func (e *Entry) Serialize() ([]byte, error) {
	if e.Chainwork == nil {
		return nil, fmt.Errorf("chainutil: entry: chainwork required")
	}
	workBytes, err := primitives.ChainworkBytes(e.Chainwork)
	if err != nil {
		return nil, fmt.Errorf("chainutil: entry: %w", err)
	}
	b := make([]byte, EntrySize)
	binary.LittleEndian.PutUint32(b[0:4], e.Version)
	copy(b[4:36], e.PrevHash[:])
	copy(b[36:68], e.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[68:72], e.Timestamp)
	binary.LittleEndian.PutUint32(b[72:76], e.Bits)
	binary.LittleEndian.PutUint32(b[76:80], e.Nonce)
	binary.LittleEndian.PutUint32(b[80:84], e.Height)
	copy(b[84:116], workBytes[:])
	return b, nil
}

// Deserialize parses the layout written by Serialize. The caller must supply
// hash separately (normally recomputed via ComputeHash from the wire block,
// or read back from the key the record was stored under) since the persisted
// layout does not redundantly carry it.
func Deserialize(hash primitives.Hash, b []byte) (*Entry, error) {
	if len(b) != EntrySize {
		return nil, fmt.Errorf("chainutil: entry: expected %d bytes, got %d", EntrySize, len(b))
	}
	e := &Entry{Hash: hash}
	e.Version = binary.LittleEndian.Uint32(b[0:4])
	copy(e.PrevHash[:], b[4:36])
	copy(e.MerkleRoot[:], b[36:68])
	e.Timestamp = binary.LittleEndian.Uint32(b[68:72])
	e.Bits = binary.LittleEndian.Uint32(b[72:76])
	e.Nonce = binary.LittleEndian.Uint32(b[76:80])
	e.Height = binary.LittleEndian.Uint32(b[80:84])
	var work [32]byte
	copy(work[:], b[84:116])
	e.Chainwork = primitives.ChainworkFromBytes(work)
	return e, nil
}

// GetProof returns the expected work contributed by this single block:
// 2^256 / (uncompact(bits) + 1).
func (e *Entry) GetProof() (*big.Int, error) {
	return primitives.ProofFromBits(e.Bits)
}
