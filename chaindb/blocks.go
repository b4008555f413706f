package chaindb

import (
	"ledgerd.dev/chain/primitives"

	bolt "go.etcd.io/bbolt"
)

// PutBlock stores the raw serialized block under `b(hash)`. Absent in
// SPV/pruned-past-window operation per spec.md §3's block-body lifecycle.
func (b *Batch) PutBlock(hash primitives.Hash, raw []byte) error {
	return b.tx.Bucket(bucketBlock).Put(hash[:], raw)
}

// DeleteBlock removes `b(hash)`, used by pruning and by dropping alternate
// branches.
func (b *Batch) DeleteBlock(hash primitives.Hash) error {
	return b.tx.Bucket(bucketBlock).Delete(hash[:])
}

// Block returns the raw bytes stored for hash, if present.
func (d *DB) Block(hash primitives.Hash) ([]byte, bool, error) {
	var out []byte
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlock).Get(hash[:])
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}
