package chaindb

import (
	"fmt"
	"sync"
	"time"

	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"

	bolt "go.etcd.io/bbolt"
)

// Config holds the tunables spec.md §6 enumerates for ChainDB construction.
type Config struct {
	Path         string
	EntryCache   int // number of entries; default 5000
	CoinCache    int // number of coin records; 0 = off
	Flags        ChainFlags
	ForceWitness bool
	ForcePrune   bool
	KeepBlocks   uint32
	PruneAfter   uint32
}

// DB is the persistent ChainDB store: a single bbolt file with one bucket
// per key prefix, a single-open-batch discipline, and three LRU caches
// (entryByHash, entryByHeight, coins) mirroring batch semantics.
type DB struct {
	cfg Config
	bdb *bolt.DB

	batchMu sync.Mutex // held for the lifetime of the single open batch (spec.md §5)

	entryByHash   *lru[primitives.Hash, *chainutil.Entry]
	entryByHeight *lru[uint32, *chainutil.Entry]
	coinsCache    *lru[primitives.Hash, []byte]

	needsGenesis bool
}

const defaultEntryCache = 5000

// Open opens (creating if absent) the bbolt-backed store at cfg.Path,
// ensures every bucket exists, and runs the startup protocol (spec.md §4.1
// steps 1-4) against the supplied configuration.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("chaindb: path required")
	}
	entryCache := cfg.EntryCache
	if entryCache == 0 {
		entryCache = defaultEntryCache
	}

	bdb, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("chaindb: open: %w", err)
	}

	d := &DB{
		cfg:           cfg,
		bdb:           bdb,
		entryByHash:   newLRU[primitives.Hash, *chainutil.Entry](entryCache),
		entryByHeight: newLRU[uint32, *chainutil.Entry](entryCache),
		coinsCache:    newLRU[primitives.Hash, []byte](cfg.CoinCache),
	}

	if err := d.bdb.Update(createBuckets); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("chaindb: create buckets: %w", err)
	}

	if err := d.runStartupProtocol(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

// Close releases the backing bbolt file.
func (d *DB) Close() error {
	if d == nil || d.bdb == nil {
		return nil
	}
	return d.bdb.Close()
}
