// Package script defines the shape of the script/covenant verification
// predicate without implementing one: an opaque (tx, prevout, flags) -> bool
// decision, matching the teacher's consensus package's
// ValidateInputAuthorization(tx, inputIndex, prevout, chainHeight, ...)
// boundary between block-level orchestration and per-input spend
// authorization. Actual script interpretation is out of scope; this package
// only gives the boundary a name so a host can plug a real engine in.
package script

import (
	"context"

	"ledgerd.dev/chain/primitives"
	"ledgerd.dev/chain/verify"
)

// Flags mirrors chain.VerifyFlags at this package's boundary. It is
// redeclared here rather than imported so script has no dependency on the
// chain package, keeping the predicate boundary pluggable from outside this
// module entirely.
type Flags uint32

const (
	FlagNone Flags = 0
	FlagP2SH Flags = 1 << iota
	FlagDERSIG
	FlagCLTV
	FlagCSV
	FlagWitness
	FlagNullDummy
)

// PrevOutput is the minimal view of a spent coin a Predicate needs: the
// locking script/covenant bytes and the height the coin was created at (for
// relative-lock-time and suite-activation gating), standing in for
// consensus's UtxoEntry.
type PrevOutput struct {
	Script []byte
	Value  uint64
	Height uint32
}

// Input is the spending side of one transaction input: the claimed
// unlocking script plus any witness stack items, standing in for
// consensus's WitnessItem.
type Input struct {
	ScriptSig []byte
	Witness   [][]byte
}

// Predicate is the opaque spend-authorization check this module never
// implements. serializedTx is the whole raw transaction (a concrete engine
// needs it to construct a sighash); inputIndex selects which input within
// it prevOutput/in describe.
type Predicate interface {
	Verify(serializedTx []byte, inputIndex int, prevOutput PrevOutput, in Input, flags Flags) (bool, error)
}

// AddressHash derives the spec.md §3 "address-hash" indexing key straight
// from a locking script's raw bytes, rather than pattern-matching P2PKH/P2SH/
// P2WPKH templates out of it: since script content is opaque to this engine
// (this package's whole reason for existing), the only index key that never
// requires parsing a script is the script itself, hashed. This is the same
// scripthash-indexing technique the Electrum protocol uses for its address
// index, adapted here to Bitcoin's own double-SHA-256 rather than Electrum's
// single SHA-256, so it matches every other hash in this module
// (chain.BlockHeader.Hash, chain.Tx.Hash) rather than introducing a third
// hash convention.
func AddressHash(lockingScript []byte) primitives.Hash {
	return primitives.DoubleSHA256(lockingScript)
}

// AsScriptChecker adapts a Predicate into a verify.ScriptChecker, so a host
// wires a concrete script engine in once (satisfying Predicate) and gets a
// verify.Pool-compatible checker for free. prevOutputs resolves the spent
// coins for job's inputs in order (job itself only carries the raw tx and
// its hash, per verify's opaque-byte-slice design); each input's own
// scriptSig/witness is the host predicate's concern to extract from
// serializedTx, since script never parses transaction wire formats.
func AsScriptChecker(p Predicate, prevOutputs func(job verify.TxJob) []PrevOutput) verify.ScriptChecker {
	return func(ctx context.Context, job verify.TxJob) (bool, error) {
		for i, out := range prevOutputs(job) {
			ok, err := p.Verify(job.SerializedTx, i, out, Input{}, Flags(job.Flags))
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}
