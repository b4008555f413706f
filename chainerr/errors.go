// Package chainerr is the error taxonomy consumed by chain and chaindb: a
// small typed-error shape (error code + kind + ban score) modeled on the
// teacher's own ErrorCode-plus-struct convention, extended with the
// kind/score/malleated fields spec.md §7 requires.
package chainerr

import "fmt"

// Kind classifies an error for the propagation policy described in spec.md
// §7: Invalid errors mark the block hash permanently bad; Checkpoint errors
// always carry the maximum ban score; IO/Corruption bubble up unconditionally
// and abort whatever batch is open.
type Kind string

const (
	KindInvalid     Kind = "invalid"
	KindCheckpoint  Kind = "checkpoint"
	KindObsolete    Kind = "obsolete"
	KindDuplicate   Kind = "duplicate"
	KindMalformed   Kind = "malformed"
	KindIO          Kind = "io"
	KindCorruption  Kind = "corruption"
)

// Code enumerates the well-known reasons carried by a VerifyError. New
// reasons may be added; callers should not switch exhaustively on Code.
type Code string

const (
	CodeDuplicate           Code = "duplicate"
	CodeCheckpointMismatch  Code = "checkpoint-mismatch"
	CodeObsoleteVersion     Code = "bad-version"
	CodeBadWireParse        Code = "malformed-wire"
	CodeTimeTooOld          Code = "time-too-old"
	CodeTimeTooNew          Code = "time-too-new"
	CodeBadDifficultyBits   Code = "bad-diffbits"
	CodeBadPrevLink         Code = "bad-prevblk"
	CodeMissingOrSpentInput Code = "bad-txns-inputs-missingorspent"
	CodeTooManySigops       Code = "bad-blk-sigops"
	CodeBadCoinbaseValue    Code = "bad-cb-amount"
	CodeScriptVerifyFailed  Code = "mandatory-script-verify-flag-failed"
	CodeBIP30Violation      Code = "bad-txns-BIP30"
	CodeBIP34Mismatch       Code = "bad-cb-height"
	CodeWitnessCommitment   Code = "bad-witness-merkle-match"
	CodeBlockWeightExceeded Code = "bad-blk-weight"
	CodeNonFinalTx          Code = "bad-txns-nonfinal"
	CodeLockTimeNotMet      Code = "bad-txns-premature-spend-of-coinbase"
	CodeIO                  Code = "io-error"
	CodeCorruption          Code = "corruption"
	CodeInternal            Code = "internal-error"
)

// VerifyError is the error type returned by every contextual/consensus check
// in chain and chaindb. Score follows the convention of peer ban scoring
// used upstream in Bitcoin-family nodes: 100 means "ban immediately", 0 means
// "not attributable to the sender".
type VerifyError struct {
	Kind      Kind
	Code      Code
	Score     int
	Malleated bool // true if the failure could be a corrupted copy rather than a truly invalid block
	Msg       string
	Err       error
}

func (e *VerifyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s (%s)", e.Code, e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// New builds a VerifyError with the given kind/code/score.
func New(kind Kind, code Code, score int, msg string) *VerifyError {
	return &VerifyError{Kind: kind, Code: code, Score: score, Msg: msg}
}

// Wrap builds a VerifyError that chains an underlying error via %w.
func Wrap(kind Kind, code Code, score int, msg string, err error) *VerifyError {
	return &VerifyError{Kind: kind, Code: code, Score: score, Msg: msg, Err: err}
}

// Invalid builds a consensus-violation error (spec §7: score 0-100,
// permanently marks the block invalid).
func Invalid(code Code, score int, msg string) *VerifyError {
	return New(KindInvalid, code, score, msg)
}

// InvalidMalleated is Invalid but flagged as possibly just a corrupted wire
// copy of an otherwise-valid block, so the hash is NOT added to the invalid
// set (spec §7 propagation policy).
func InvalidMalleated(code Code, score int, msg string) *VerifyError {
	e := New(KindInvalid, code, score, msg)
	e.Malleated = true
	return e
}

// Checkpoint builds a checkpoint-mismatch error, always at the maximum score.
func Checkpoint(msg string) *VerifyError {
	return New(KindCheckpoint, CodeCheckpointMismatch, 100, msg)
}

// Obsolete builds a version-too-low error (score 0).
func Obsolete(msg string) *VerifyError {
	return New(KindObsolete, CodeObsoleteVersion, 0, msg)
}

// Duplicate builds a duplicate-block error. parentInvalid raises the score
// to 100 per spec §7 ("Duplicate (0 or 100): already known (100 if parent
// was invalid)").
func Duplicate(parentInvalid bool) *VerifyError {
	score := 0
	if parentInvalid {
		score = 100
	}
	return New(KindDuplicate, CodeDuplicate, score, "block already known")
}

// Malformed builds a wire-parse-failure error (score 10 per spec §7).
func Malformed(msg string) *VerifyError {
	return New(KindMalformed, CodeBadWireParse, 10, msg)
}

// IOError wraps a non-consensus backend fault that must bubble up
// unconditionally and abort any open batch.
func IOError(err error) *VerifyError {
	return Wrap(KindIO, CodeIO, 0, "backend io failure", err)
}

// Corruption wraps a detected on-disk inconsistency.
func Corruption(msg string) *VerifyError {
	return New(KindCorruption, CodeCorruption, 0, msg)
}

// IsConsensus reports whether err represents a consensus-level rejection
// (Invalid/Checkpoint/Obsolete/Duplicate/Malformed) as opposed to a
// non-consensus fault (IO/Corruption) that must bubble up unconditionally.
func IsConsensus(err error) bool {
	ve, ok := err.(*VerifyError)
	if !ok {
		return false
	}
	switch ve.Kind {
	case KindInvalid, KindCheckpoint, KindObsolete, KindDuplicate, KindMalformed:
		return true
	default:
		return false
	}
}

// As extracts a *VerifyError from err, if any.
func As(err error) (*VerifyError, bool) {
	ve, ok := err.(*VerifyError)
	return ve, ok
}
