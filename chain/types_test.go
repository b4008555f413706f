package chain

import (
	"testing"

	"ledgerd.dev/chain/primitives"
)

func TestTxHashMatchesDoubleSHA256OfSerialize(t *testing.T) {
	tx := Tx{
		Version: 1,
		Inputs:  []TxInput{{Prev: TxOutPoint{Hash: primitives.Hash{0x01}, Vout: 2}, ScriptSig: []byte{0x51}}},
		Outputs: []TxOutput{{Value: 100, Script: []byte("pk")}},
	}
	want := primitives.DoubleSHA256(tx.Serialize())
	if got := tx.Hash(); got != want {
		t.Fatalf("Hash() = %s, want double-SHA256 of Serialize() = %s", got, want)
	}
}

func TestTxSerializeDistinguishesDifferentScriptSigs(t *testing.T) {
	base := Tx{
		Version: 1,
		Inputs:  []TxInput{{Prev: TxOutPoint{Hash: primitives.ZeroHash, Vout: 0xffffffff}}},
		Outputs: []TxOutput{{Value: 50}},
	}
	a := base
	a.Inputs = []TxInput{{Prev: base.Inputs[0].Prev, ScriptSig: []byte{1}}}
	b := base
	b.Inputs = []TxInput{{Prev: base.Inputs[0].Prev, ScriptSig: []byte{2}}}

	if a.Hash() == b.Hash() {
		t.Fatal("expected distinct ScriptSig bytes to produce distinct txids")
	}
}
