package chaindb

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Batch is the single unit of atomicity ChainDB exposes (spec.md §4.1,
// §5): every mutation goes through one open batch, started with Start,
// either Commit-ed or Drop-ped. Only one batch may be open at a time; Start
// blocks on DB.batchMu until any prior batch has been committed or dropped,
// which also serves as the "asserted" single-open-batch discipline the
// spec calls for.
type Batch struct {
	db     *DB
	tx     *bolt.Tx
	done   bool
	staged []func() // cache-mirroring callbacks run on successful Commit
}

// Start opens a new read-write batch, blocking until any previously open
// batch on this DB has been committed or dropped.
func (d *DB) Start() (*Batch, error) {
	d.batchMu.Lock()
	tx, err := d.bdb.Begin(true)
	if err != nil {
		d.batchMu.Unlock()
		return nil, fmt.Errorf("chaindb: batch start: %w", err)
	}
	return &Batch{db: d, tx: tx}, nil
}

// onCommit registers a cache-mirroring callback to run only if the batch
// commits successfully, matching §4.1's "LRU caches mirror batch semantics"
// rule: a dropped batch must leave caches exactly as they were.
func (b *Batch) onCommit(fn func()) {
	b.staged = append(b.staged, fn)
}

// Commit finalizes every write made against the batch and folds staged
// cache updates into the DB's LRUs.
func (b *Batch) Commit() error {
	if b.done {
		return fmt.Errorf("chaindb: batch: already closed")
	}
	b.done = true
	defer b.db.batchMu.Unlock()
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("chaindb: batch commit: %w", err)
	}
	for _, fn := range b.staged {
		fn()
	}
	return nil
}

// Drop discards every write made against the batch; no cache is mutated.
func (b *Batch) Drop() error {
	if b.done {
		return nil
	}
	b.done = true
	defer b.db.batchMu.Unlock()
	return b.tx.Rollback()
}
