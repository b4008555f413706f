package chaindb

import (
	"fmt"

	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"

	bolt "go.etcd.io/bbolt"
)

// PutUndo stores a block's undo coins under `u(hash)` so the block can be
// mechanically disconnected later (spec.md §4.1).
func (b *Batch) PutUndo(hash primitives.Hash, u *coins.UndoCoins) error {
	enc, err := coins.EncodeUndo(u)
	if err != nil {
		return fmt.Errorf("chaindb: put undo: %w", err)
	}
	return b.tx.Bucket(bucketUndo).Put(hash[:], enc)
}

// DeleteUndo removes `u(hash)`, done on disconnect and on pruning advance.
func (b *Batch) DeleteUndo(hash primitives.Hash) error {
	return b.tx.Bucket(bucketUndo).Delete(hash[:])
}

// Undo reads back the undo coins stored for hash.
func (d *DB) Undo(hash primitives.Hash) (*coins.UndoCoins, bool, error) {
	var out *coins.UndoCoins
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUndo).Get(hash[:])
		if v == nil {
			return nil
		}
		u, err := coins.DecodeUndo(v)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}
