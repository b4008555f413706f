package chaindb

import (
	"fmt"

	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"

	bolt "go.etcd.io/bbolt"
)

// GetCoins implements coins.Fetcher, letting a coins.View load records it
// does not already have staged directly from the backing store.
func (d *DB) GetCoins(hash primitives.Hash) (*coins.Coins, bool, error) {
	if raw, ok := d.coinsCache.Get(hash); ok {
		c, err := coins.Decode(raw)
		if err != nil {
			return nil, false, fmt.Errorf("chaindb: get coins: %w", err)
		}
		return c, true, nil
	}
	var raw []byte
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCoins).Get(hash[:])
		if v == nil {
			return nil
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	c, err := coins.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("chaindb: get coins: %w", err)
	}
	d.coinsCache.Add(hash, raw)
	return c, true, nil
}

// ApplyView writes every staged Coins record from view into the batch: a
// fully-spent bundle is a deletion, anything else a put (spec.md §4.1
// "call the view writer"). Mirrors the result into the coins cache only on
// commit.
func (b *Batch) ApplyView(view *coins.View) error {
	for hash, c := range view.Entries() {
		hash, c := hash, c
		if c.IsFullySpent() {
			if err := b.tx.Bucket(bucketCoins).Delete(hash[:]); err != nil {
				return err
			}
			b.onCommit(func() { b.db.coinsCache.Remove(hash) })
			continue
		}
		enc, err := coins.Encode(c)
		if err != nil {
			return fmt.Errorf("chaindb: apply view: %w", err)
		}
		if err := b.tx.Bucket(bucketCoins).Put(hash[:], enc); err != nil {
			return err
		}
		b.onCommit(func() { b.db.coinsCache.Add(hash, enc) })
	}
	return nil
}
