package chain

import (
	"context"
	"path/filepath"
	"testing"

	"ledgerd.dev/chain/chaindb"
	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"
)

// easyBits is a compact-difficulty value decoding to a target close to the
// full 256-bit space (the regtest-style "difficulty 1" shape), so mining a
// valid test block only takes a handful of nonce attempts.
const easyBits uint32 = 0x207fffff

func openTestChain(t *testing.T, params NetParams) (*Chain, *chaindb.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.db")
	db, err := chaindb.Open(chaindb.Config{Path: path, EntryCache: 64})
	if err != nil {
		t.Fatalf("chaindb.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	c, err := New(db, params, nil)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	return c, db
}

func testParams() NetParams {
	return NetParams{
		Name: "testnet-unit",
		GenesisHeader: BlockHeader{
			Version:   1,
			Timestamp: 1_600_000_000,
			Bits:      easyBits,
		},
		Magic:                  0xfeedface,
		PowLimitBits:           easyBits,
		RetargetInterval:       2016,
		TargetTimespan:         2016 * 600,
		SubsidyHalvingInterval: 210_000,
		InitialSubsidy:         50_0000_0000,
		MaxFutureBlockTime:     7200,
		MaxOrphans:             20,
		OrphanExpiry:           3600,
		InvalidCacheSize:       100,
	}
}

// mineChild builds and mines a valid-PoW child of parent, coinbase-only,
// timestamped just past parent so MTP/finality checks pass by default.
func mineChild(t *testing.T, parent *chainutil.Entry, bits uint32, coinbaseValue uint64) Block {
	t.Helper()
	hdr := BlockHeader{
		Version:   1,
		PrevHash:  parent.Hash,
		Timestamp: parent.Timestamp + 600,
		Bits:      bits,
	}
	height := parent.Height + 1
	cb := Tx{
		Version: 1,
		Inputs: []TxInput{{
			Prev:      TxOutPoint{Hash: primitives.ZeroHash, Vout: 0xffffffff},
			ScriptSig: primitives.AppendCompactSize(nil, uint64(height)),
		}},
		Outputs: []TxOutput{{Value: coinbaseValue, Script: []byte("coinbase")}},
	}
	block := Block{Header: hdr, Txs: []Tx{cb}, Raw: []byte("raw")}
	for nonce := uint32(0); nonce < 100_000; nonce++ {
		block.Header.Nonce = nonce
		if hashMeetsTarget(block.Header.Hash(), bits) {
			return block
		}
	}
	t.Fatalf("failed to mine a block meeting target %08x", bits)
	return Block{}
}

// extendChain mines and adds n blocks on top of c's current tip, returning
// the resulting entries in connection order.
func extendChain(t *testing.T, c *Chain, n int) []*chainutil.Entry {
	t.Helper()
	entries := make([]*chainutil.Entry, 0, n)
	for i := 0; i < n; i++ {
		parent := c.Tip()
		block := mineChild(t, parent, parent.Bits, 50_0000_0000)
		entry, err := c.Add(context.Background(), block, "peer", VerifyNone)
		if err != nil {
			t.Fatalf("extendChain: Add at step %d: %v", i, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func mustAdd(t *testing.T, c *Chain, block Block) {
	t.Helper()
	if _, err := c.Add(context.Background(), block, "peer", VerifyNone); err != nil {
		t.Fatalf("Add: %v", err)
	}
}
