package primitives

import "golang.org/x/crypto/sha3"

// Hasher computes a 32-byte digest of b. Bitcoin consensus hashing itself is
// fixed to DoubleSHA256 and is never pluggable; Hasher exists only for the
// verifier-pool self-test harness (see the verify package), which needs a
// second, algorithmically distinct hash function to tell "the worker
// computed something" apart from "the worker computed the right thing",
// carried forward from the teacher's pluggable crypto.DevStdCryptoProvider
// idiom.
type Hasher interface {
	Sum(b []byte) Hash
}

type sha256Hasher struct{}

// SHA256Hasher wraps DoubleSHA256 as a Hasher, matching consensus hashing
// exactly.
var SHA256Hasher Hasher = sha256Hasher{}

func (sha256Hasher) Sum(b []byte) Hash { return DoubleSHA256(b) }

type sha3Hasher struct{}

// SHA3Hasher is the alternate hash path, backed by golang.org/x/crypto/sha3
// rather than the stdlib, so a self-test comparing it against SHA256Hasher
// actually exercises two independent implementations.
var SHA3Hasher Hasher = sha3Hasher{}

func (sha3Hasher) Sum(b []byte) Hash { return Hash(sha3.Sum256(b)) }
