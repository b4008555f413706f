package primitives

import (
	"math/big"
	"testing"
)

func TestCompactToBigKnownValues(t *testing.T) {
	// 0x1d00ffff is Bitcoin mainnet's genesis difficulty bits.
	target := CompactToBig(0x1d00ffff)
	want, _ := new(big.Int).SetString("ffff0000000000000000000000000000000000000000000000000000", 16)
	if target.Cmp(want) != 0 {
		t.Fatalf("got %x want %x", target, want)
	}
}

func TestCompactBigRoundtrip(t *testing.T) {
	for _, bits := range []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff} {
		target := CompactToBig(bits)
		back := BigToCompact(target)
		if back != bits {
			t.Fatalf("bits %08x: roundtrip got %08x via target %x", bits, back, target)
		}
	}
}

func TestProofFromBitsMonotonic(t *testing.T) {
	easy, err := ProofFromBits(0x207fffff) // minimum difficulty (large target)
	if err != nil {
		t.Fatalf("ProofFromBits: %v", err)
	}
	hard, err := ProofFromBits(0x1d00ffff) // harder (smaller target)
	if err != nil {
		t.Fatalf("ProofFromBits: %v", err)
	}
	if hard.Cmp(easy) <= 0 {
		t.Fatalf("expected harder target to imply more proof: hard=%s easy=%s", hard, easy)
	}
}

func TestChainworkBytesRoundtrip(t *testing.T) {
	work := new(big.Int)
	work.SetString("123456789012345678901234567890", 10)
	b, err := ChainworkBytes(work)
	if err != nil {
		t.Fatalf("ChainworkBytes: %v", err)
	}
	back := ChainworkFromBytes(b)
	if back.Cmp(work) != 0 {
		t.Fatalf("roundtrip mismatch: got %s want %s", back, work)
	}
}

func TestChainworkBytesRejectsNegative(t *testing.T) {
	if _, err := ChainworkBytes(big.NewInt(-1)); err == nil {
		t.Fatal("expected error for negative chainwork")
	}
}
