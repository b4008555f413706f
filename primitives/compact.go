package primitives

import (
	"fmt"
	"math/big"
)

// twoTo256 is 2^256, the numerator of the chainwork formula (spec §3:
// chainwork = parent.chainwork + 2^256/(target+1)).
var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// one is the constant 1, reused to avoid reallocating in hot paths.
var one = big.NewInt(1)

// CompactToBig expands a 32-bit "compact" difficulty representation (the
// on-wire `bits` field) into its full target as an unsigned big integer, the
// same encoding Bitcoin-family chains use: the high byte is an exponent and
// the low three bytes are the mantissa.
func CompactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := uint(bits >> 24)

	var target *big.Int
	if exponent <= 3 {
		target = big.NewInt(int64(mantissa >> (8 * (3 - exponent))))
	} else {
		target = new(big.Int).SetUint64(uint64(mantissa))
		target.Lsh(target, 8*(exponent-3))
	}

	// The 0x00800000 bit of the mantissa is a sign bit in the reference
	// encoding; compact targets are never signed in consensus use, negative
	// inputs collapse to zero.
	if bits&0x00800000 != 0 {
		return big.NewInt(0)
	}
	return target
}

// BigToCompact reduces target to the nearest representable compact form,
// rounding toward zero precision loss the same way the 32-bit encoding does.
func BigToCompact(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}

	t := new(big.Int).Set(target)
	exponent := uint((t.BitLen() + 7) / 8)

	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(t.Uint64() << (8 * (3 - exponent)))
	} else {
		shifted := new(big.Int).Rsh(t, 8*(exponent-3))
		mantissa = uint32(shifted.Uint64())
	}

	// Re-normalize: if the high bit of the mantissa would be mistaken for
	// the sign bit, shift one byte right and bump the exponent.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return uint32(exponent)<<24 | mantissa
}

// ProofFromBits returns the expected work contributed by a single block with
// the given difficulty bits: floor(2^256 / (target+1)), per spec §3's
// chainwork invariant.
func ProofFromBits(bits uint32) (*big.Int, error) {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return nil, fmt.Errorf("primitives: proof: non-positive target for bits %08x", bits)
	}
	denom := new(big.Int).Add(target, one)
	return new(big.Int).Div(twoTo256, denom), nil
}

// ChainworkBytes is the fixed 32-byte little-endian serialization of a
// cumulative chainwork value used by ChainEntry's persisted layout (§6).
func ChainworkBytes(work *big.Int) ([32]byte, error) {
	var out [32]byte
	if work == nil || work.Sign() < 0 {
		return out, fmt.Errorf("primitives: chainwork: must be non-negative")
	}
	b := work.Bytes() // big-endian, no leading zeros
	if len(b) > HashSize {
		return out, fmt.Errorf("primitives: chainwork: overflow")
	}
	// Store little-endian: reverse while copying into the low-order end.
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out, nil
}

// ChainworkFromBytes parses the fixed 32-byte little-endian chainwork layout
// back into a big.Int.
func ChainworkFromBytes(b [32]byte) *big.Int {
	be := make([]byte, HashSize)
	for i, v := range b {
		be[HashSize-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}
