package primitives

import "testing"

func TestHashReversedRoundtrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(i)
	}
	if h.Reversed().Reversed() != h {
		t.Fatal("reversing twice should restore the original hash")
	}
}

func TestHashStringParseDisplayRoundtrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(31 - i)
	}
	s := h.String()
	got, err := ParseDisplayHash(s)
	if err != nil {
		t.Fatalf("ParseDisplayHash: %v", err)
	}
	if got != h {
		t.Fatalf("roundtrip mismatch: got %x want %x", got, h)
	}
}

func TestParseDisplayHashRejectsWrongLength(t *testing.T) {
	if _, err := ParseDisplayHash("abcd"); err == nil {
		t.Fatal("expected error for short hash")
	}
}

func TestLessTotalOrder(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	if !Less(a, b) {
		t.Fatal("expected a < b")
	}
	if Less(b, a) == false && Less(a, b) == false {
		t.Fatal("inconsistent ordering")
	}
	if Less(a, a) {
		t.Fatal("a should not be less than itself")
	}
}

func TestIsZero(t *testing.T) {
	var z Hash
	if !z.IsZero() {
		t.Fatal("expected zero hash")
	}
	nz := Hash{0x01}
	if nz.IsZero() {
		t.Fatal("expected non-zero hash")
	}
}
