// Package coins implements the per-block staged UTXO set (spec.md §3 "Coins
// / CoinView") and its undo log: the transient in-memory structures built
// while validating one block, which chaindb then durably commits or replays
// backwards.
//
// The on-disk layout groups outputs by transaction (one Coins record per
// tx-hash, matching spec.md §4.1's `c: tx-hash -> Coins` key), generalizing
// the teacher's per-outpoint bbolt records (node/store/utxo_encoding.go) into
// a single sparse-output bundle per transaction.
package coins

import (
	"encoding/binary"
	"fmt"

	"ledgerd.dev/chain/primitives"
)

// Output is one transaction output as stored in the UTXO set.
type Output struct {
	Value  uint64
	Script []byte
}

// Coins is the per-transaction spend record: every output index either holds
// an unspent Output or nil, marking that index already spent.
type Coins struct {
	Version  uint32
	Coinbase bool
	Height   uint32
	Outputs  []*Output // nil entry = spent
}

// NewCoins builds a fresh Coins record for a just-mined transaction with all
// outputs unspent.
func NewCoins(version uint32, coinbase bool, height uint32, outputs []*Output) *Coins {
	return &Coins{Version: version, Coinbase: coinbase, Height: height, Outputs: outputs}
}

// IsAvailable reports whether output index vout is present and unspent.
func (c *Coins) IsAvailable(vout int) bool {
	if c == nil || vout < 0 || vout >= len(c.Outputs) {
		return false
	}
	return c.Outputs[vout] != nil
}

// IsFullySpent reports whether every output has been spent, meaning the
// whole record may be pruned from the store (spec.md §3 invariant).
func (c *Coins) IsFullySpent() bool {
	if c == nil {
		return true
	}
	for _, o := range c.Outputs {
		if o != nil {
			return false
		}
	}
	return true
}

// Spend removes and returns output vout, or an error if it is missing or
// already spent.
func (c *Coins) Spend(vout int) (*Output, error) {
	if !c.IsAvailable(vout) {
		return nil, fmt.Errorf("coins: output %d missing or already spent", vout)
	}
	out := c.Outputs[vout]
	c.Outputs[vout] = nil
	return out, nil
}

// Unspend restores output vout during undo replay, growing the slice if the
// undo record refers to an index beyond the current length (this happens
// when the Coins record was fully pruned and is being rebuilt from scratch).
func (c *Coins) Unspend(vout int, out *Output) {
	if vout >= len(c.Outputs) {
		grown := make([]*Output, vout+1)
		copy(grown, c.Outputs)
		c.Outputs = grown
	}
	c.Outputs[vout] = out
}

// Clone returns a deep copy, used when the staged view must diverge from a
// cached/shared Coins record without mutating it.
func (c *Coins) Clone() *Coins {
	if c == nil {
		return nil
	}
	out := &Coins{Version: c.Version, Coinbase: c.Coinbase, Height: c.Height}
	out.Outputs = make([]*Output, len(c.Outputs))
	for i, o := range c.Outputs {
		if o == nil {
			continue
		}
		cp := &Output{Value: o.Value, Script: append([]byte(nil), o.Script...)}
		out.Outputs[i] = cp
	}
	return out
}

// Encode serializes c into the persisted `c` record layout:
//
//	version u32le | coinbase u8 | height u32le | count CompactSize
//	for each output: present u8 | (value u64le | scriptLen CompactSize | script)
func Encode(c *Coins) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("coins: encode: nil")
	}
	out := make([]byte, 0, 64)
	var tmp4, tmp8 [8]byte
	binary.LittleEndian.PutUint32(tmp4[:4], c.Version)
	out = append(out, tmp4[:4]...)
	if c.Coinbase {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	binary.LittleEndian.PutUint32(tmp4[:4], c.Height)
	out = append(out, tmp4[:4]...)
	out = primitives.AppendCompactSize(out, uint64(len(c.Outputs)))
	for _, o := range c.Outputs {
		if o == nil {
			out = append(out, 0)
			continue
		}
		out = append(out, 1)
		binary.LittleEndian.PutUint64(tmp8[:], o.Value)
		out = append(out, tmp8[:]...)
		out = primitives.AppendCompactSize(out, uint64(len(o.Script)))
		out = append(out, o.Script...)
	}
	return out, nil
}

// Decode parses the layout written by Encode.
func Decode(b []byte) (*Coins, error) {
	c := primitives.NewCursor(b)
	version, err := c.ReadU32LE()
	if err != nil {
		return nil, fmt.Errorf("coins: decode version: %w", err)
	}
	coinbaseByte, err := c.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("coins: decode coinbase flag: %w", err)
	}
	height, err := c.ReadU32LE()
	if err != nil {
		return nil, fmt.Errorf("coins: decode height: %w", err)
	}
	count, err := c.ReadCompactSize()
	if err != nil {
		return nil, fmt.Errorf("coins: decode count: %w", err)
	}
	outputs := make([]*Output, count)
	for i := range outputs {
		present, err := c.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("coins: decode present[%d]: %w", i, err)
		}
		if present == 0 {
			continue
		}
		value, err := c.ReadU64LE()
		if err != nil {
			return nil, fmt.Errorf("coins: decode value[%d]: %w", i, err)
		}
		scriptLen, err := c.ReadCompactSize()
		if err != nil {
			return nil, fmt.Errorf("coins: decode scriptLen[%d]: %w", i, err)
		}
		script, err := c.ReadExact(int(scriptLen))
		if err != nil {
			return nil, fmt.Errorf("coins: decode script[%d]: %w", i, err)
		}
		outputs[i] = &Output{Value: value, Script: append([]byte(nil), script...)}
	}
	if c.Remaining() != 0 {
		return nil, fmt.Errorf("coins: decode: trailing bytes")
	}
	return &Coins{Version: version, Coinbase: coinbaseByte != 0, Height: height, Outputs: outputs}, nil
}

// OutPoint names one (tx-hash, output index) pair. Used only for staging
// logic in View; persisted keys are always grouped by tx-hash per §4.1.
type OutPoint struct {
	Hash primitives.Hash
	Vout uint32
}
