package coins

import (
	"testing"

	"ledgerd.dev/chain/primitives"
)

type fakeFetcher struct {
	m map[primitives.Hash]*Coins
}

func (f *fakeFetcher) GetCoins(hash primitives.Hash) (*Coins, bool, error) {
	c, ok := f.m[hash]
	return c, ok, nil
}

func TestViewSpendRecordsUndo(t *testing.T) {
	h := primitives.Hash{0x09}
	fetcher := &fakeFetcher{m: map[primitives.Hash]*Coins{
		h: NewCoins(1, false, 5, []*Output{{Value: 100, Script: []byte{1}}}),
	}}
	v := NewView(fetcher)

	out, err := v.SpendInput(h, 0)
	if err != nil {
		t.Fatalf("SpendInput: %v", err)
	}
	if out.Value != 100 {
		t.Fatalf("unexpected spent value: %d", out.Value)
	}
	if len(v.Undo.Items) != 1 {
		t.Fatalf("expected 1 undo item, got %d", len(v.Undo.Items))
	}
	if v.Undo.Items[0].Height != 5 {
		t.Fatalf("undo item height mismatch: %d", v.Undo.Items[0].Height)
	}

	if _, err := v.SpendInput(h, 0); err == nil {
		t.Fatal("expected error re-spending same output")
	}
}

func TestViewSpendUnknownTx(t *testing.T) {
	v := NewView(&fakeFetcher{m: map[primitives.Hash]*Coins{}})
	if _, err := v.SpendInput(primitives.Hash{0x01}, 0); err == nil {
		t.Fatal("expected error for unknown tx")
	}
}

func TestViewAddTxIsFresh(t *testing.T) {
	h := primitives.Hash{0x02}
	v := NewView(&fakeFetcher{m: map[primitives.Hash]*Coins{}})
	v.AddTx(h, NewCoins(1, true, 1, []*Output{{Value: 1}}))
	if !v.Fresh(h) {
		t.Fatal("expected freshly added tx to be Fresh")
	}
	if _, ok := v.Entries()[h]; !ok {
		t.Fatal("expected entry present in Entries()")
	}
}
