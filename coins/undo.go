package coins

import (
	"encoding/binary"
	"fmt"

	"ledgerd.dev/chain/primitives"
)

// UndoItem is one entry of the undo log written alongside a block so that
// disconnection is a pure mechanical replay (spec.md §3 "UndoCoins"): the
// value/script/height/coinbase-flag tuple of one output consumed by the
// block, recorded in input iteration order.
type UndoItem struct {
	Hash     primitives.Hash
	Vout     uint32
	Value    uint64
	Script   []byte
	Height   uint32
	Coinbase bool
}

// UndoCoins is the append-only stack of UndoItems produced while connecting
// one block. Disconnecting the block pops the stack in reverse.
type UndoCoins struct {
	Items []UndoItem
}

// Push appends one consumed-output record to the undo log.
func (u *UndoCoins) Push(item UndoItem) {
	u.Items = append(u.Items, item)
}

// EncodeUndo serializes the undo log as:
//
//	count CompactSize
//	for each: hash(32) | vout u32le | value u64le | height u32le | coinbase u8 | scriptLen CompactSize | script
func EncodeUndo(u *UndoCoins) ([]byte, error) {
	if u == nil {
		return primitives.AppendCompactSize(nil, 0), nil
	}
	out := primitives.AppendCompactSize(nil, uint64(len(u.Items)))
	var tmp4, tmp8 [8]byte
	for _, it := range u.Items {
		out = append(out, it.Hash[:]...)
		binary.LittleEndian.PutUint32(tmp4[:4], it.Vout)
		out = append(out, tmp4[:4]...)
		binary.LittleEndian.PutUint64(tmp8[:], it.Value)
		out = append(out, tmp8[:]...)
		binary.LittleEndian.PutUint32(tmp4[:4], it.Height)
		out = append(out, tmp4[:4]...)
		if it.Coinbase {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		out = primitives.AppendCompactSize(out, uint64(len(it.Script)))
		out = append(out, it.Script...)
	}
	return out, nil
}

// DecodeUndo parses the layout written by EncodeUndo.
func DecodeUndo(b []byte) (*UndoCoins, error) {
	c := primitives.NewCursor(b)
	count, err := c.ReadCompactSize()
	if err != nil {
		return nil, fmt.Errorf("undo: decode count: %w", err)
	}
	items := make([]UndoItem, count)
	for i := range items {
		hb, err := c.ReadExact(primitives.HashSize)
		if err != nil {
			return nil, fmt.Errorf("undo: decode hash[%d]: %w", i, err)
		}
		hash, err := primitives.HashFromRawBytes(hb)
		if err != nil {
			return nil, err
		}
		vout, err := c.ReadU32LE()
		if err != nil {
			return nil, fmt.Errorf("undo: decode vout[%d]: %w", i, err)
		}
		value, err := c.ReadU64LE()
		if err != nil {
			return nil, fmt.Errorf("undo: decode value[%d]: %w", i, err)
		}
		height, err := c.ReadU32LE()
		if err != nil {
			return nil, fmt.Errorf("undo: decode height[%d]: %w", i, err)
		}
		coinbaseByte, err := c.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("undo: decode coinbase[%d]: %w", i, err)
		}
		scriptLen, err := c.ReadCompactSize()
		if err != nil {
			return nil, fmt.Errorf("undo: decode scriptLen[%d]: %w", i, err)
		}
		script, err := c.ReadExact(int(scriptLen))
		if err != nil {
			return nil, fmt.Errorf("undo: decode script[%d]: %w", i, err)
		}
		items[i] = UndoItem{
			Hash:     hash,
			Vout:     vout,
			Value:    value,
			Script:   append([]byte(nil), script...),
			Height:   height,
			Coinbase: coinbaseByte != 0,
		}
	}
	if c.Remaining() != 0 {
		return nil, fmt.Errorf("undo: decode: trailing bytes")
	}
	return &UndoCoins{Items: items}, nil
}
