package chainerr

import (
	"errors"
	"testing"
)

func TestDuplicateScore(t *testing.T) {
	if Duplicate(false).Score != 0 {
		t.Fatal("expected score 0 for duplicate with valid parent")
	}
	if Duplicate(true).Score != 100 {
		t.Fatal("expected score 100 for duplicate with invalid parent")
	}
}

func TestIsConsensus(t *testing.T) {
	if !IsConsensus(Invalid(CodeBadPrevLink, 100, "x")) {
		t.Fatal("Invalid should be consensus")
	}
	if IsConsensus(IOError(errors.New("disk full"))) {
		t.Fatal("IO should not be consensus")
	}
}

func TestWrapUnwrap(t *testing.T) {
	inner := errors.New("boom")
	e := Wrap(KindIO, CodeIO, 0, "wrapped", inner)
	if !errors.Is(e, inner) {
		t.Fatal("expected errors.Is to find wrapped cause")
	}
}

func TestInvalidMalleatedFlag(t *testing.T) {
	e := InvalidMalleated(CodeBadWireParse, 10, "maybe corrupted")
	if !e.Malleated {
		t.Fatal("expected malleated flag set")
	}
}
