package chain

import (
	"context"
	"testing"

	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"
)

// mineBlockWithTxs mines a valid-PoW child of parent carrying an arbitrary
// transaction set, for reorg scenarios that need more than a bare coinbase.
func mineBlockWithTxs(t *testing.T, parent *chainutil.Entry, bits uint32, txs []Tx) Block {
	t.Helper()
	hdr := BlockHeader{
		Version:   1,
		PrevHash:  parent.Hash,
		Timestamp: parent.Timestamp + 600,
		Bits:      bits,
	}
	block := Block{Header: hdr, Txs: txs, Raw: []byte("raw")}
	for nonce := uint32(0); nonce < 100_000; nonce++ {
		block.Header.Nonce = nonce
		if hashMeetsTarget(block.Header.Hash(), bits) {
			return block
		}
	}
	t.Fatalf("failed to mine a block meeting target %08x", bits)
	return Block{}
}

func coinbaseTx(value uint64) Tx {
	return Tx{
		Version: 1,
		Inputs:  []TxInput{{Prev: TxOutPoint{Hash: primitives.ZeroHash, Vout: 0xffffffff}}},
		Outputs: []TxOutput{{Value: value, Script: []byte("coinbase")}},
	}
}

// TestReorgSwitchesTipAndUndoesLosingChain builds a one-block main chain and
// a two-block competitor off the same genesis, triggers a reorg by adding
// the competitor's tip, and checks that the losing chain's coins are fully
// reversed, including a transaction that both creates and spends an output
// within the same disconnecting block.
func TestReorgSwitchesTipAndUndoesLosingChain(t *testing.T) {
	c, db := openTestChain(t, testParams())
	genesis := c.Tip()

	cb := coinbaseTx(50_0000_0000)
	cbHash := cb.Hash()
	spend := Tx{
		Version: 1,
		Inputs:  []TxInput{{Prev: TxOutPoint{Hash: cbHash, Vout: 0}, Sequence: 0xffffffff}},
		Outputs: []TxOutput{{Value: 50_0000_0000, Script: []byte("spend")}},
	}
	spendHash := spend.Hash()

	a1 := mineBlockWithTxs(t, genesis, easyBits, []Tx{cb, spend})
	mustAdd(t, c, a1)
	if c.Tip().Height != 1 {
		t.Fatalf("expected main chain at height 1, got %d", c.Tip().Height)
	}
	if _, ok, err := db.GetCoins(spendHash); err != nil || !ok {
		t.Fatalf("expected spend tx coin to exist after connect, ok=%v err=%v", ok, err)
	}

	b1 := mineChild(t, genesis, easyBits, 25_0000_0000)
	b1Entry, err := c.Add(context.Background(), b1, "peer", VerifyNone)
	if err != nil {
		t.Fatalf("Add(b1): %v", err)
	}
	if b1Entry == nil {
		t.Fatal("expected b1 to be stored as an alternate entry, not nil")
	}
	if c.Tip().Hash != a1.Hash() {
		t.Fatal("tip should still be a1 after an equal-chainwork competitor arrives")
	}

	b2 := mineChild(t, b1Entry, easyBits, 25_0000_0000)
	b2Entry, err := c.Add(context.Background(), b2, "peer", VerifyNone)
	if err != nil {
		t.Fatalf("Add(b2): %v", err)
	}

	if c.Tip().Hash != b2Entry.Hash {
		t.Fatalf("expected reorg to switch tip to b2, got %s", c.Tip().Hash)
	}
	if c.Tip().Height != 2 {
		t.Fatalf("expected tip height 2 after reorg, got %d", c.Tip().Height)
	}

	if _, ok, err := db.GetCoins(cbHash); err != nil || ok {
		t.Fatalf("expected a1's coinbase coin gone after disconnect, ok=%v err=%v", ok, err)
	}
	if _, ok, err := db.GetCoins(spendHash); err != nil || ok {
		t.Fatalf("expected a1's same-block spend output force-deleted after disconnect, ok=%v err=%v", ok, err)
	}

	b1Coinbase := b1.Txs[0].Hash()
	b2Coinbase := b2.Txs[0].Hash()
	if _, ok, err := db.GetCoins(b1Coinbase); err != nil || !ok {
		t.Fatalf("expected b1's coinbase coin present after reconnect, ok=%v err=%v", ok, err)
	}
	if _, ok, err := db.GetCoins(b2Coinbase); err != nil || !ok {
		t.Fatalf("expected b2's coinbase coin present after reconnect, ok=%v err=%v", ok, err)
	}

	atHeight1, ok := db.EntryAtHeight(1)
	if !ok || atHeight1.Hash != b1Entry.Hash {
		t.Fatal("expected b1 to occupy height 1 on the main chain after reorg")
	}
}

// TestReorgRollbackOnReconnectFailureRestoresOriginalTip builds a competitor
// whose second block cannot validate (it spends a nonexistent output), and
// checks that the chain recovers to its pre-reorg tip rather than being left
// mid-reorg.
func TestReorgRollbackOnReconnectFailureRestoresOriginalTip(t *testing.T) {
	c, db := openTestChain(t, testParams())
	genesis := c.Tip()

	a1 := mineChild(t, genesis, easyBits, 50_0000_0000)
	mustAdd(t, c, a1)
	a1Entry, ok := db.EntryByHash(a1.Hash())
	if !ok {
		t.Fatal("expected a1 entry to exist")
	}
	a1Coinbase := a1.Txs[0].Hash()

	b1 := mineChild(t, genesis, easyBits, 25_0000_0000)
	b1Entry, err := c.Add(context.Background(), b1, "peer", VerifyNone)
	if err != nil {
		t.Fatalf("Add(b1): %v", err)
	}

	missing := Tx{
		Version:  1,
		Inputs:   []TxInput{{Prev: TxOutPoint{Hash: primitives.Hash{0xAB}, Vout: 0}, Sequence: 0xffffffff}},
		Outputs:  []TxOutput{{Value: 1, Script: []byte("bad")}},
		Locktime: 0,
	}
	b2 := mineBlockWithTxs(t, b1Entry, easyBits, []Tx{coinbaseTx(25_0000_0000), missing})

	_, err = c.Add(context.Background(), b2, "peer", VerifyNone)
	if err == nil {
		t.Fatal("expected b2 to fail validation on its missing input")
	}

	if c.Tip().Hash != a1Entry.Hash {
		t.Fatalf("expected rollback to restore original tip a1, got %s", c.Tip().Hash)
	}
	if c.Tip().Height != 1 {
		t.Fatalf("expected tip height restored to 1, got %d", c.Tip().Height)
	}
	if _, ok, err := db.GetCoins(a1Coinbase); err != nil || !ok {
		t.Fatalf("expected a1's coinbase coin restored after rollback, ok=%v err=%v", ok, err)
	}
}
