package primitives

import (
	"encoding/binary"
	"fmt"
)

// AppendCompactSize appends n to dst using the Bitcoin-style CompactSize
// varint encoding: values below 0xfd are a single byte; larger values are
// prefixed with 0xfd/0xfe/0xff followed by a fixed-width little-endian
// integer, always using the smallest representation (non-minimal encodings
// are a parse error on decode).
func AppendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(n))
		return append(append(dst, 0xfd), buf[:]...)
	case n <= 0xffffffff:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(n))
		return append(append(dst, 0xfe), buf[:]...)
	default:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], n)
		return append(append(dst, 0xff), buf[:]...)
	}
}

// DecodeCompactSize decodes one CompactSize value from the front of buf and
// returns the decoded value along with the number of bytes consumed.
func DecodeCompactSize(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("primitives: compactsize: empty input")
	}
	switch prefix := buf[0]; {
	case prefix < 0xfd:
		return uint64(prefix), 1, nil
	case prefix == 0xfd:
		if len(buf) < 3 {
			return 0, 0, fmt.Errorf("primitives: compactsize: truncated u16")
		}
		v := binary.LittleEndian.Uint16(buf[1:3])
		if v < 0xfd {
			return 0, 0, fmt.Errorf("primitives: compactsize: non-minimal encoding")
		}
		return uint64(v), 3, nil
	case prefix == 0xfe:
		if len(buf) < 5 {
			return 0, 0, fmt.Errorf("primitives: compactsize: truncated u32")
		}
		v := binary.LittleEndian.Uint32(buf[1:5])
		if v <= 0xffff {
			return 0, 0, fmt.Errorf("primitives: compactsize: non-minimal encoding")
		}
		return uint64(v), 5, nil
	default:
		if len(buf) < 9 {
			return 0, 0, fmt.Errorf("primitives: compactsize: truncated u64")
		}
		v := binary.LittleEndian.Uint64(buf[1:9])
		if v <= 0xffffffff {
			return 0, 0, fmt.Errorf("primitives: compactsize: non-minimal encoding")
		}
		return v, 9, nil
	}
}

// Cursor is a small forward-only reader over a byte slice, used to decode the
// fixed-layout records persisted by chaindb without allocating an io.Reader.
type Cursor struct {
	b   []byte
	pos int
}

// NewCursor wraps b for sequential reads starting at offset 0.
func NewCursor(b []byte) *Cursor { return &Cursor{b: b} }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

// ReadExact consumes and returns the next n bytes.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, fmt.Errorf("primitives: cursor: truncated read of %d bytes", n)
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

// ReadU8 consumes a single byte.
func (c *Cursor) ReadU8() (byte, error) {
	b, err := c.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU32LE consumes a little-endian uint32.
func (c *Cursor) ReadU32LE() (uint32, error) {
	b, err := c.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64LE consumes a little-endian uint64.
func (c *Cursor) ReadU64LE() (uint64, error) {
	b, err := c.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadCompactSize consumes one CompactSize varint.
func (c *Cursor) ReadCompactSize() (uint64, error) {
	v, n, err := DecodeCompactSize(c.b[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += n
	return v, nil
}
