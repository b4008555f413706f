package verify

import (
	"context"
	"fmt"

	"ledgerd.dev/chain/primitives"
)

// canary is a fixed payload SelfTest hashes with two algorithmically
// distinct Hashers and compares against a single-threaded reference digest,
// catching a corrupted worker environment before any consensus-critical
// verification runs through a Pool.
var canary = []byte("ledgerd-chain-verify-selftest")

// SelfTest runs the canary payload through both primitives.SHA256Hasher and
// primitives.SHA3Hasher across n goroutines and reports the first
// disagreement with the single-threaded reference digest, per spec.md §5's
// requirement that no blocking CPU work happens under the chain lock beyond
// hashing and arithmetic — this confirms that arithmetic is trustworthy
// before a Pool is ever handed real consensus work.
func SelfTest(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	wantSHA256 := primitives.SHA256Hasher.Sum(canary)
	wantSHA3 := primitives.SHA3Hasher.Sum(canary)

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			if got := primitives.SHA256Hasher.Sum(canary); got != wantSHA256 {
				errs <- fmt.Errorf("verify: selftest: sha256 mismatch")
				return
			}
			if got := primitives.SHA3Hasher.Sum(canary); got != wantSHA3 {
				errs <- fmt.Errorf("verify: selftest: sha3 mismatch")
				return
			}
			errs <- nil
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SelfTest runs SelfTest across p's worker width before the pool is trusted
// with real dispatch (a host calls this once, after NewPool, before wiring
// the pool into a Chain).
func (p *Pool) SelfTest(ctx context.Context) error {
	return SelfTest(ctx, p.workers)
}
