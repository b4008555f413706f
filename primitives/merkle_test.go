package primitives

import (
	"crypto/sha256"
	"testing"
)

func TestMerkleRootSingleLeafIsItself(t *testing.T) {
	var h Hash
	h[0] = 0xaa
	if got := MerkleRoot([]Hash{h}); got != h {
		t.Fatalf("single-leaf root = %x, want %x", got, h)
	}
}

func TestMerkleRootEmptyIsZero(t *testing.T) {
	if got := MerkleRoot(nil); got != (Hash{}) {
		t.Fatalf("empty root = %x, want zero", got)
	}
}

func TestMerkleRootTwoLeavesMatchesManualPair(t *testing.T) {
	var a, b Hash
	a[0], b[0] = 0x01, 0x02
	var pair [64]byte
	copy(pair[:32], a[:])
	copy(pair[32:], b[:])
	first := sha256.Sum256(pair[:])
	second := sha256.Sum256(first[:])
	want := Hash(second)

	if got := MerkleRoot([]Hash{a, b}); got != want {
		t.Fatalf("two-leaf root = %x, want %x", got, want)
	}
}

func TestMerkleRootOddCountCarriesLastForward(t *testing.T) {
	var a, b, c Hash
	a[0], b[0], c[0] = 0x01, 0x02, 0x03

	var pair [64]byte
	copy(pair[:32], a[:])
	copy(pair[32:], b[:])
	first := sha256.Sum256(pair[:])
	ab := Hash(sha256.Sum256(first[:]))

	var top [64]byte
	copy(top[:32], ab[:])
	copy(top[32:], c[:])
	firstTop := sha256.Sum256(top[:])
	want := Hash(sha256.Sum256(firstTop[:]))

	if got := MerkleRoot([]Hash{a, b, c}); got != want {
		t.Fatalf("odd-count root = %x, want %x", got, want)
	}
}

func TestMerkleRootOrderSensitive(t *testing.T) {
	var a, b Hash
	a[0], b[0] = 0x01, 0x02
	if MerkleRoot([]Hash{a, b}) == MerkleRoot([]Hash{b, a}) {
		t.Fatal("expected swapping leaf order to change the root")
	}
}
