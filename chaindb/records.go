package chaindb

import (
	"encoding/binary"
	"fmt"

	"ledgerd.dev/chain/primitives"
)

// chainStateKey is the fixed key under which the single ChainState record
// lives in bucketChainState; schemaVersionKey shares the bucket.
var chainStateKey = []byte("state")

// ChainState is the one-record canonical tip (spec.md §3, §6): 56 bytes,
// `tip(32) | txCount(8) | coinCount(8) | value(8)`.
type ChainState struct {
	Tip       primitives.Hash
	TxCount   uint64
	CoinCount uint64
	Value     uint64
}

const chainStateSize = 32 + 8 + 8 + 8

func encodeChainState(s ChainState) []byte {
	b := make([]byte, chainStateSize)
	copy(b[0:32], s.Tip[:])
	binary.LittleEndian.PutUint64(b[32:40], s.TxCount)
	binary.LittleEndian.PutUint64(b[40:48], s.CoinCount)
	binary.LittleEndian.PutUint64(b[48:56], s.Value)
	return b
}

func decodeChainState(b []byte) (ChainState, error) {
	if len(b) != chainStateSize {
		return ChainState{}, fmt.Errorf("chaindb: chainstate: expected %d bytes, got %d", chainStateSize, len(b))
	}
	var s ChainState
	copy(s.Tip[:], b[0:32])
	s.TxCount = binary.LittleEndian.Uint64(b[32:40])
	s.CoinCount = binary.LittleEndian.Uint64(b[40:48])
	s.Value = binary.LittleEndian.Uint64(b[48:56])
	return s, nil
}

// ChainFlags is the persisted feature-toggle record (spec.md §3, §6): 12
// bytes, `magic(4) | flags(4) | reserved(4)`. Flags bits 0..4 are
// {spv, witness, prune, indexTx, indexAddress}.
type ChainFlags struct {
	Magic uint32
	SPV, Witness, Prune, IndexTx, IndexAddress bool
}

const (
	flagSPV uint32 = 1 << iota
	flagWitness
	flagPrune
	flagIndexTx
	flagIndexAddress
)

const chainFlagsSize = 4 + 4 + 4

func (f ChainFlags) bits() uint32 {
	var v uint32
	if f.SPV {
		v |= flagSPV
	}
	if f.Witness {
		v |= flagWitness
	}
	if f.Prune {
		v |= flagPrune
	}
	if f.IndexTx {
		v |= flagIndexTx
	}
	if f.IndexAddress {
		v |= flagIndexAddress
	}
	return v
}

func encodeChainFlags(f ChainFlags) []byte {
	b := make([]byte, chainFlagsSize)
	binary.LittleEndian.PutUint32(b[0:4], f.Magic)
	binary.LittleEndian.PutUint32(b[4:8], f.bits())
	return b
}

func decodeChainFlags(b []byte) (ChainFlags, error) {
	if len(b) != chainFlagsSize {
		return ChainFlags{}, fmt.Errorf("chaindb: chainflags: expected %d bytes, got %d", chainFlagsSize, len(b))
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	bits := binary.LittleEndian.Uint32(b[4:8])
	return ChainFlags{
		Magic:        magic,
		SPV:          bits&flagSPV != 0,
		Witness:      bits&flagWitness != 0,
		Prune:        bits&flagPrune != 0,
		IndexTx:      bits&flagIndexTx != 0,
		IndexAddress: bits&flagIndexAddress != 0,
	}, nil
}

// Deployment is one configured BIP9 soft-fork bit (spec.md §3): start/timeout
// as Unix-second MTP thresholds.
type Deployment struct {
	Bit       uint8
	StartTime uint32
	Timeout   uint32
}

// encodeDeployments writes the deployment table layout from §6:
// `count(1) | (bit(1)|startTime(4)|timeout(4))*count`.
func encodeDeployments(ds []Deployment) []byte {
	b := make([]byte, 1+9*len(ds))
	b[0] = byte(len(ds))
	off := 1
	for _, d := range ds {
		b[off] = d.Bit
		binary.LittleEndian.PutUint32(b[off+1:off+5], d.StartTime)
		binary.LittleEndian.PutUint32(b[off+5:off+9], d.Timeout)
		off += 9
	}
	return b
}

func decodeDeployments(b []byte) ([]Deployment, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("chaindb: deployments: empty")
	}
	count := int(b[0])
	if 1+9*count != len(b) {
		return nil, fmt.Errorf("chaindb: deployments: length mismatch for count %d", count)
	}
	out := make([]Deployment, count)
	off := 1
	for i := 0; i < count; i++ {
		out[i] = Deployment{
			Bit:       b[off],
			StartTime: binary.LittleEndian.Uint32(b[off+1 : off+5]),
			Timeout:   binary.LittleEndian.Uint32(b[off+5 : off+9]),
		}
		off += 9
	}
	return out, nil
}
