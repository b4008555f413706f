package chain

import (
	"testing"

	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"
	"ledgerd.dev/chain/script"
)

func TestBuildTxRecordsIndexesOutputAddresses(t *testing.T) {
	genesisHash := primitives.Hash{0x01}
	cb := Tx{
		Version: 1,
		Inputs: []TxInput{{
			Prev:      TxOutPoint{Hash: primitives.ZeroHash, Vout: 0xffffffff},
			ScriptSig: primitives.AppendCompactSize(nil, 1),
		}},
		Outputs: []TxOutput{{Value: 50, Script: []byte("coinbase-script")}},
	}
	block := Block{Header: BlockHeader{PrevHash: genesisHash}, Txs: []Tx{cb}}

	txs := buildTxRecords(block, nil)
	if len(txs) != 1 {
		t.Fatalf("expected 1 tx record, got %d", len(txs))
	}
	tr := txs[0]
	if !tr.Coinbase {
		t.Fatal("expected coinbase record")
	}
	wantAddr := script.AddressHash([]byte("coinbase-script"))
	if len(tr.OutputAddrs) != 1 || tr.OutputAddrs[0].Addr != wantAddr || tr.OutputAddrs[0].Index != 0 {
		t.Fatalf("expected one OutputAddr at index 0 with hash of the locking script, got %+v", tr.OutputAddrs)
	}
	if len(tr.Addresses) != 1 || tr.Addresses[0] != wantAddr {
		t.Fatalf("expected Addresses to contain the output's address hash, got %v", tr.Addresses)
	}
	if len(tr.SpentAddrs) != 0 {
		t.Fatalf("coinbase input must never produce a SpentAddr, got %+v", tr.SpentAddrs)
	}
}

func TestBuildTxRecordsIndexesSpentAddressesFromUndo(t *testing.T) {
	prevHash := primitives.Hash{0x02}
	prevScript := []byte("prior-locking-script")

	spending := Tx{
		Version: 1,
		Inputs:  []TxInput{{Prev: TxOutPoint{Hash: prevHash, Vout: 3}}},
		Outputs: []TxOutput{{Value: 10, Script: []byte("change-script")}},
	}
	block := Block{Txs: []Tx{spending}}

	undo := []coins.UndoItem{{Hash: prevHash, Vout: 3, Script: prevScript, Value: 100}}
	txs := buildTxRecords(block, undo)

	tr := txs[0]
	wantSpentAddr := script.AddressHash(prevScript)
	if len(tr.SpentAddrs) != 1 || tr.SpentAddrs[0].Addr != wantSpentAddr ||
		tr.SpentAddrs[0].Hash != prevHash || tr.SpentAddrs[0].Vout != 3 {
		t.Fatalf("expected one SpentAddr resolved from undo, got %+v", tr.SpentAddrs)
	}
	wantOutAddr := script.AddressHash([]byte("change-script"))
	found := false
	for _, a := range tr.Addresses {
		if a == wantOutAddr {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Addresses to also include the new output's address hash, got %v", tr.Addresses)
	}
}

func TestBuildTxRecordsSkipsInputsMissingFromUndo(t *testing.T) {
	spending := Tx{
		Inputs:  []TxInput{{Prev: TxOutPoint{Hash: primitives.Hash{0x09}, Vout: 0}}},
		Outputs: []TxOutput{{Value: 1}},
	}
	block := Block{Txs: []Tx{spending}}

	txs := buildTxRecords(block, nil)
	if len(txs[0].SpentAddrs) != 0 {
		t.Fatalf("expected no SpentAddrs when undo carries no matching outpoint, got %+v", txs[0].SpentAddrs)
	}
}
