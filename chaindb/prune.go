package chaindb

import (
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
)

// ForcePruneSweep runs the retroactive one-shot prune sweep on demand
// (spec.md §4.1 step 4), outside the normal startup path: rejected unless
// ForcePrune is configured, the same gate runStartupProtocol applies.
func (d *DB) ForcePruneSweep() error {
	if !d.cfg.ForcePrune {
		return fmt.Errorf("chaindb: retroactive prune requires ForcePrune")
	}
	return d.retroactivePruneSweep()
}

// retroactivePruneSweep implements spec.md §4.1 step 4's one-shot sweep:
// when prune is enabled against a previously non-pruned chain, delete `b`/
// `u` records for every height in [pruneAfter+1, tipHeight-keepBlocks],
// then compact the backend.
func (d *DB) retroactivePruneSweep() error {
	state, err := d.State()
	if err != nil {
		return err
	}
	tipHeight, ok := d.HeightOf(state.Tip)
	if !ok {
		return fmt.Errorf("chaindb: retroactive prune: tip height unknown")
	}
	if tipHeight <= d.cfg.KeepBlocks {
		return nil // chain too short to prune anything yet
	}
	upper := tipHeight - d.cfg.KeepBlocks
	for h := d.cfg.PruneAfter + 1; h <= upper; h++ {
		entry, ok := d.EntryAtHeight(h)
		if !ok {
			continue
		}
		if err := d.bdb.Update(func(tx *bolt.Tx) error {
			if err := tx.Bucket(bucketBlock).Delete(entry.Hash[:]); err != nil {
				return err
			}
			return tx.Bucket(bucketUndo).Delete(entry.Hash[:])
		}); err != nil {
			return err
		}
	}
	return d.compact()
}

// compact rewrites the bbolt file into a fresh one by copying every bucket
// key by key, in key order, from a read transaction into the new file
// (eliminating free-list fragmentation from the sweep above), then swaps it
// into place.
func (d *DB) compact() error {
	path := d.cfg.Path
	tmpPath := path + ".compact.tmp"

	dst, err := bolt.Open(tmpPath, 0o600, nil)
	if err != nil {
		return fmt.Errorf("chaindb: compact: open tmp: %w", err)
	}

	err = d.bdb.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, src *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return src.ForEach(func(k, v []byte) error {
					return dstBucket.Put(append([]byte(nil), k...), append([]byte(nil), v...))
				})
			})
		})
	})
	closeErr := dst.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chaindb: compact: copy: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chaindb: compact: close tmp: %w", closeErr)
	}

	if err := d.bdb.Close(); err != nil {
		return fmt.Errorf("chaindb: compact: close source: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("chaindb: compact: rename: %w", err)
	}
	reopened, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("chaindb: compact: reopen: %w", err)
	}
	d.bdb = reopened
	d.entryByHash.Clear()
	d.entryByHeight.Clear()
	d.coinsCache.Clear()
	return nil
}
