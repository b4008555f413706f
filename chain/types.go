// Package chain implements Chain (spec.md §4.3, §4.4): the in-memory block
// validation and fork-choice state machine sitting in front of ChainDB.
package chain

import (
	"crypto/sha256"
	"encoding/binary"

	"ledgerd.dev/chain/primitives"
)

// BlockHeader is the 80-byte wire header (spec.md §4.2's HeaderBytes shape),
// named and laid out after the teacher's consensus.BlockHeader but using
// Bitcoin's compact-bits difficulty encoding rather than a raw 32-byte
// target, per spec.md §3's ChainEntry definition.
type BlockHeader struct {
	Version    uint32
	PrevHash   primitives.Hash
	MerkleRoot primitives.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Hash computes the double-SHA-256 block hash of the header.
func (h BlockHeader) Hash() primitives.Hash {
	b := make([]byte, 80)
	binary.LittleEndian.PutUint32(b[0:4], h.Version)
	copy(b[4:36], h.PrevHash[:])
	copy(b[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(b[72:76], h.Bits)
	binary.LittleEndian.PutUint32(b[76:80], h.Nonce)
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return primitives.Hash(second)
}

// TxOutPoint identifies one output being spent, named after the teacher's
// consensus.TxOutPoint.
type TxOutPoint struct {
	Hash primitives.Hash
	Vout uint32
}

// TxInput is one transaction input, named after the teacher's
// consensus.TxInput but without its DA-specific fields (out of scope here).
// Witness carries the segwit witness stack (spec.md §4.3's "witness nonce
// present" check reads the coinbase input's single-item stack here); it
// never affects Hash (the txid), only WitnessHash.
type TxInput struct {
	Prev      TxOutPoint
	ScriptSig []byte
	Sequence  uint32
	Witness   [][]byte
}

// TxOutput is one transaction output.
type TxOutput struct {
	Value  uint64
	Script []byte
}

// Tx is a parsed transaction: the minimal Bitcoin-style shape spec.md's
// Chain component needs to drive input verification, BIP30/BIP34/witness-
// commitment checks, and coin accounting. Script interpretation itself is
// left to the opaque `script`/`verify` boundary (spec.md §6's black-box
// note); witness stacks are carried only far enough to support the
// commitment check, never parsed or executed here.
type Tx struct {
	Version  uint32
	Inputs   []TxInput
	Outputs  []TxOutput
	Locktime uint32
}

// IsCoinbase reports whether tx is the block's coinbase: exactly one input
// whose PrevTxid is the zero hash.
func (tx Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].Prev.Hash.IsZero()
}

// Hash computes the transaction's txid. Simplified fixed-field serialization
// (version | locktime | input count | input refs + scriptSig | output count
// | output values) is sufficient for this engine's bookkeeping; full wire
// serialization with witness data belongs to the host's wire codec, out of
// scope per spec.md §6. ScriptSig is folded in (rather than dropped) so two
// coinbases at different heights, which otherwise share identical
// prevout/sequence/output fields, still produce distinct txids — exactly
// what BIP30's duplicate-txid check (chain/verifycontext.go) depends on.
func (tx Tx) Hash() primitives.Hash {
	return primitives.DoubleSHA256(tx.Serialize())
}

// Serialize returns this module's simplified fixed-field encoding of tx (the
// same bytes Hash double-hashes): version | locktime | input count | input
// refs + scriptSig | output count | output values. Used both for hashing
// and as the payload chain.buildTxRecords hands chaindb's optional tx index
// (spec.md §3 "txIndex: txid -> {raw-tx, ...}") — a host wanting the true
// wire-format transaction bytes there needs its own wire codec, out of
// scope per spec.md §6.
func (tx Tx) Serialize() []byte {
	size := 4 + 4 + 4
	for _, in := range tx.Inputs {
		size += 32 + 4 + 4 + 4 + len(in.ScriptSig)
	}
	size += 4 + len(tx.Outputs)*8

	b := make([]byte, 0, size)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], tx.Version)
	b = append(b, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], tx.Locktime)
	b = append(b, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(tx.Inputs)))
	b = append(b, tmp[:]...)
	for _, in := range tx.Inputs {
		b = append(b, in.Prev.Hash[:]...)
		binary.LittleEndian.PutUint32(tmp[:], in.Prev.Vout)
		b = append(b, tmp[:]...)
		binary.LittleEndian.PutUint32(tmp[:], in.Sequence)
		b = append(b, tmp[:]...)
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(in.ScriptSig)))
		b = append(b, tmp[:]...)
		b = append(b, in.ScriptSig...)
	}
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(tx.Outputs)))
	b = append(b, tmp[:]...)
	var tmp8 [8]byte
	for _, out := range tx.Outputs {
		binary.LittleEndian.PutUint64(tmp8[:], out.Value)
		b = append(b, tmp8[:]...)
	}
	return b
}

// WitnessHash computes the transaction's wtxid per BIP141: identical to Hash
// when no input carries witness data, and folding each input's witness
// stack in otherwise. The witness commitment check (chain/verifycontext.go)
// defines the coinbase's own wtxid as the zero hash rather than calling
// this, per the convention that breaks the coinbase's self-reference in
// its own witness merkle tree.
func (tx Tx) WitnessHash() primitives.Hash {
	base := tx.Hash()
	hasWitness := false
	for _, in := range tx.Inputs {
		if len(in.Witness) > 0 {
			hasWitness = true
			break
		}
	}
	if !hasWitness {
		return base
	}

	b := append([]byte{}, base[:]...)
	for _, in := range tx.Inputs {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(in.Witness)))
		b = append(b, tmp[:]...)
		for _, item := range in.Witness {
			binary.LittleEndian.PutUint32(tmp[:], uint32(len(item)))
			b = append(b, tmp[:]...)
			b = append(b, item...)
		}
	}
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return primitives.Hash(second)
}

// Block bundles a header with its transactions plus the raw bytes ChainDB
// persists opaquely.
type Block struct {
	Header BlockHeader
	Txs    []Tx
	Raw    []byte
}

// Hash is the block's identity, delegated to its header.
func (b Block) Hash() primitives.Hash { return b.Header.Hash() }
