package chaindb

import (
	"encoding/binary"
	"fmt"

	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"

	bolt "go.etcd.io/bbolt"
)

// PutEntry writes the `e`/`h` records for a header (spec.md §4.1 "Connect
// block": write h, e; push to entry caches). Callers are responsible for
// the `H`/`n`/`p` main-chain bookkeeping via SetMainAt/SetNext/SetTip.
func (b *Batch) PutEntry(e *chainutil.Entry) error {
	enc, err := e.Serialize()
	if err != nil {
		return fmt.Errorf("chaindb: put entry: %w", err)
	}
	if err := b.tx.Bucket(bucketEntry).Put(e.Hash[:], enc); err != nil {
		return err
	}
	var heightBytes [4]byte
	binary.LittleEndian.PutUint32(heightBytes[:], e.Height)
	if err := b.tx.Bucket(bucketHeight).Put(e.Hash[:], heightBytes[:]); err != nil {
		return err
	}
	b.onCommit(func() { b.db.entryByHash.Add(e.Hash, e) })
	return nil
}

// EntryByHash implements chainutil.ChainDBView and is also the read path
// used outside an open batch.
func (d *DB) EntryByHash(hash [32]byte) (*chainutil.Entry, bool) {
	h := primitives.Hash(hash)
	if e, ok := d.entryByHash.Get(h); ok {
		return e, true
	}
	var e *chainutil.Entry
	_ = d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntry).Get(h[:])
		if v == nil {
			return nil
		}
		got, err := chainutil.Deserialize(h, v)
		if err != nil {
			return err
		}
		e = got
		return nil
	})
	if e == nil {
		return nil, false
	}
	d.entryByHash.Add(h, e)
	return e, true
}

// EntryAtHeight implements chainutil.ChainDBView: looks up the main-chain
// `H(height) -> hash` index, then resolves the entry by hash.
func (d *DB) EntryAtHeight(height uint32) (*chainutil.Entry, bool) {
	if e, ok := d.entryByHeight.Get(height); ok {
		return e, true
	}
	var hash primitives.Hash
	found := false
	_ = d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMainByHeight).Get(heightKey(height))
		if v == nil {
			return nil
		}
		copy(hash[:], v)
		found = true
		return nil
	})
	if !found {
		return nil, false
	}
	e, ok := d.EntryByHash(hash)
	if ok {
		d.entryByHeight.Add(height, e)
	}
	return e, ok
}

func heightKey(height uint32) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], height) // big-endian so lexicographic order matches numeric order (spec.md §4.1)
	return k[:]
}

// SetMainAt writes the `H(height) -> hash` main-chain index entry and
// mirrors it into the entryByHeight cache on commit.
func (b *Batch) SetMainAt(height uint32, hash primitives.Hash) error {
	if err := b.tx.Bucket(bucketMainByHeight).Put(heightKey(height), hash[:]); err != nil {
		return err
	}
	b.onCommit(func() {
		if e, ok := b.db.entryByHash.Get(hash); ok {
			b.db.entryByHeight.Add(height, e)
		}
	})
	return nil
}

// ClearMainAt removes the `H(height)` index entry, used when disconnecting
// the block that previously occupied that height (spec.md §4.1's
// "reorg-safe height cache" note: entryByHeight is only valid for main
// chain and must be cleared on disconnect).
func (b *Batch) ClearMainAt(height uint32) error {
	if err := b.tx.Bucket(bucketMainByHeight).Delete(heightKey(height)); err != nil {
		return err
	}
	b.onCommit(func() { b.db.entryByHeight.Remove(height) })
	return nil
}

// SetNext writes the `n(prev) -> hash` forward pointer used by
// isMainChain's existence check.
func (b *Batch) SetNext(prev, hash primitives.Hash) error {
	return b.tx.Bucket(bucketNext).Put(prev[:], hash[:])
}

// ClearNext removes the `n(prev)` forward pointer.
func (b *Batch) ClearNext(prev primitives.Hash) error {
	return b.tx.Bucket(bucketNext).Delete(prev[:])
}

// Next returns the `n(hash)` forward pointer, if any.
func (d *DB) Next(hash primitives.Hash) (primitives.Hash, bool) {
	var next primitives.Hash
	found := false
	_ = d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNext).Get(hash[:])
		if v == nil {
			return nil
		}
		copy(next[:], v)
		found = true
		return nil
	})
	return next, found
}

// HasNext reports isMainChain's "(c) forward pointer n(hash) existence"
// condition (spec.md §4.2).
func (d *DB) HasNext(hash primitives.Hash) bool {
	_, ok := d.Next(hash)
	return ok
}

// SetTip marks hash as a live chain tip (`p(hash) = 0x00`) and clears the
// previous tip marker, maintaining §4.1's tip-set bucket.
func (b *Batch) SetTip(prev, hash primitives.Hash) error {
	if !prev.IsZero() {
		if err := b.tx.Bucket(bucketTips).Delete(prev[:]); err != nil {
			return err
		}
	}
	return b.tx.Bucket(bucketTips).Put(hash[:], []byte{0x00})
}

// Tips returns every hash currently marked as a live chain tip.
func (d *DB) Tips() ([]primitives.Hash, error) {
	var out []primitives.Hash
	err := d.bdb.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTips).ForEach(func(k, _ []byte) error {
			var h primitives.Hash
			copy(h[:], k)
			out = append(out, h)
			return nil
		})
	})
	return out, err
}

// HeightOf returns the `h(hash) -> height` reverse index.
func (d *DB) HeightOf(hash primitives.Hash) (uint32, bool) {
	var height uint32
	found := false
	_ = d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeight).Get(hash[:])
		if v == nil {
			return nil
		}
		height = binary.LittleEndian.Uint32(v)
		found = true
		return nil
	})
	return height, found
}

// DeleteEntry removes `e`/`h` for hash, used by Reset when walking a height
// out of existence.
func (b *Batch) DeleteEntry(hash primitives.Hash) error {
	if err := b.tx.Bucket(bucketEntry).Delete(hash[:]); err != nil {
		return err
	}
	if err := b.tx.Bucket(bucketHeight).Delete(hash[:]); err != nil {
		return err
	}
	b.onCommit(func() { b.db.entryByHash.Remove(hash) })
	return nil
}
