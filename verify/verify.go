// Package verify implements the external verifier boundary spec.md §6
// describes: the core forwards transactions and raw signature checks to a
// pluggable Verifier rather than interpreting scripts itself (script
// interpretation is an explicit black box per spec.md's Non-goals).
package verify

import "context"

// Verifier is the interface Chain calls into for every script/signature
// check it cannot resolve itself (spec.md §6 "Verifier interface").
type Verifier interface {
	// VerifyTx reports whether every input of tx (opaque to this package)
	// satisfies the supplied script flags, given as job's opaque byte
	// slices so verify has no dependency on chain's Tx type.
	VerifyTx(ctx context.Context, job TxJob) (bool, error)
	// VerifySignature checks a single raw signature over msg against pubkey.
	VerifySignature(ctx context.Context, msg, sig, pubkey []byte) (bool, error)
	// VerifyAll checks a whole block's worth of jobs at once, succeeding
	// only if every job does (spec.md §4.3 "enqueue ... await all; any
	// failure -> consensus error").
	VerifyAll(ctx context.Context, jobs []TxJob) (bool, error)
}

// TxJob is everything a Verifier implementation needs to check one
// transaction's inputs, expressed as opaque byte slices so this package
// never needs to import chain's wire types (avoiding an import cycle and
// keeping script interpretation genuinely pluggable).
type TxJob struct {
	TxHash      [32]byte
	SerializedTx []byte
	PrevScripts [][]byte
	Flags       uint32
}
