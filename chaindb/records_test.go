package chaindb

import (
	"testing"

	"ledgerd.dev/chain/primitives"
)

func TestChainStateRoundtrip(t *testing.T) {
	s := ChainState{Tip: primitives.Hash{0x01, 0x02}, TxCount: 10, CoinCount: 20, Value: 30}
	enc := encodeChainState(s)
	if len(enc) != chainStateSize {
		t.Fatalf("expected %d bytes, got %d", chainStateSize, len(enc))
	}
	got, err := decodeChainState(enc)
	if err != nil {
		t.Fatalf("decodeChainState: %v", err)
	}
	if got != s {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, s)
	}
}

func TestChainFlagsRoundtrip(t *testing.T) {
	f := ChainFlags{Magic: 0xd9b4bef9, Witness: true, IndexTx: true}
	enc := encodeChainFlags(f)
	if len(enc) != chainFlagsSize {
		t.Fatalf("expected %d bytes, got %d", chainFlagsSize, len(enc))
	}
	got, err := decodeChainFlags(enc)
	if err != nil {
		t.Fatalf("decodeChainFlags: %v", err)
	}
	if got != f {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, f)
	}
	if got.SPV || got.Prune || got.IndexAddress {
		t.Fatalf("expected unset bits to decode false: %+v", got)
	}
}

func TestDeploymentsRoundtrip(t *testing.T) {
	ds := []Deployment{
		{Bit: 0, StartTime: 100, Timeout: 200},
		{Bit: 28, StartTime: 300, Timeout: 400},
	}
	enc := encodeDeployments(ds)
	got, err := decodeDeployments(enc)
	if err != nil {
		t.Fatalf("decodeDeployments: %v", err)
	}
	if len(got) != 2 || got[1].Bit != 28 || got[1].Timeout != 400 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestDeploymentsRoundtripEmpty(t *testing.T) {
	enc := encodeDeployments(nil)
	got, err := decodeDeployments(enc)
	if err != nil {
		t.Fatalf("decodeDeployments: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty, got %+v", got)
	}
}
