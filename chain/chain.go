package chain

import (
	"fmt"
	"sync"

	"ledgerd.dev/chain/chaindb"
	"ledgerd.dev/chain/chainerr"
	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"
	"ledgerd.dev/chain/verify"
)

// Chain is the in-memory block validation and fork-choice state machine
// (spec.md §4.3): a single chain-wide lock, an orphan pool, an invalid-hash
// cache, the BIP9 deployment view, and an event bus, sitting in front of a
// ChainDB handle.
type Chain struct {
	db       *chaindb.DB
	params   NetParams
	verifier verify.Verifier

	mu          sync.Mutex // the chain-wide lock, spec.md §5
	inFlight    map[primitives.Hash]*sync.WaitGroup
	subscribers []Subscriber

	orphans *orphanPool
	invalid *invalidSet

	tip *chainutil.Entry

	// altBlocks holds the parsed body of every recently connected block
	// (main chain or alternate branch), keyed by hash, bounded to
	// recentBlockCap via recentOrder's FIFO eviction, so a later reorg can
	// replay full verification and secondary-index maintenance when
	// disconnecting/reconnecting them (spec.md §4.3 "blocks on an alternate
	// branch are stored but not input-verified until the branch wins").
	altBlocks   map[primitives.Hash]*Block
	recentOrder []primitives.Hash
}

// New wires a Chain on top of an already-open ChainDB, writing genesis if
// the store is fresh and reconciling the configured deployment set against
// whatever is already on disk (spec.md §4.1 step 5).
func New(db *chaindb.DB, params NetParams, verifier verify.Verifier) (*Chain, error) {
	c := &Chain{
		db:       db,
		params:   params,
		verifier: verifier,
		inFlight: make(map[primitives.Hash]*sync.WaitGroup),
		orphans:   newOrphanPool(orDefault(params.MaxOrphans, 20), int64(orDefault32(params.OrphanExpiry, 3600))),
		invalid:   newInvalidSet(orDefault(params.InvalidCacheSize, 100)),
		altBlocks: make(map[primitives.Hash]*Block),
	}

	if err := db.ReconcileDeployments(params.Deployments); err != nil {
		return nil, fmt.Errorf("chain: reconcile deployments: %w", err)
	}

	genesisHash := params.GenesisHeader.Hash()
	if db.NeedsGenesis() {
		if err := c.writeGenesis(genesisHash); err != nil {
			return nil, fmt.Errorf("chain: write genesis: %w", err)
		}
	}

	state, err := db.State()
	if err != nil {
		return nil, fmt.Errorf("chain: read state: %w", err)
	}
	tip, ok := db.EntryByHash(state.Tip)
	if !ok {
		return nil, fmt.Errorf("chain: tip entry %s missing from store", state.Tip)
	}
	c.tip = tip
	return c, nil
}

func (c *Chain) writeGenesis(hash primitives.Hash) error {
	flags, err := buildChainFlags(c.params)
	if err != nil {
		return err
	}
	if err := c.db.InitGenesis(hash, flags, c.params.Deployments); err != nil {
		return err
	}
	proof, err := primitives.ProofFromBits(c.params.GenesisHeader.Bits)
	if err != nil {
		return err
	}
	entry := &chainutil.Entry{
		Hash:       hash,
		PrevHash:   c.params.GenesisHeader.PrevHash,
		MerkleRoot: c.params.GenesisHeader.MerkleRoot,
		Version:    c.params.GenesisHeader.Version,
		Timestamp:  c.params.GenesisHeader.Timestamp,
		Bits:       c.params.GenesisHeader.Bits,
		Nonce:      c.params.GenesisHeader.Nonce,
		Height:     0,
		Chainwork:  proof,
	}
	batch, err := c.db.Start()
	if err != nil {
		return err
	}
	if perr := batch.PutEntry(entry); perr != nil {
		_ = batch.Drop()
		return perr
	}
	if perr := batch.SetMainAt(0, hash); perr != nil {
		_ = batch.Drop()
		return perr
	}
	if perr := batch.SetNext(primitives.ZeroHash, hash); perr != nil {
		_ = batch.Drop()
		return perr
	}
	return batch.Commit()
}

func buildChainFlags(p NetParams) (chaindb.ChainFlags, error) {
	flags := p.StoreFlags
	flags.Magic = p.Magic
	return flags, nil
}

// Tip returns the current best-chain entry.
func (c *Chain) Tip() *chainutil.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip
}

// DB exposes the underlying store for read-mostly callers (e.g. an RPC
// surface) that do not need the chain lock's mutating guarantees.
func (c *Chain) DB() *chaindb.DB { return c.db }

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefault32(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

// wrapVerifyErr maps a generic error into the chainerr taxonomy when it is
// not already one, so every path out of the Add pipeline carries a typed
// VerifyError (spec.md §7).
func wrapVerifyErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := chainerr.As(err); ok {
		return err
	}
	return chainerr.Wrap(chainerr.KindIO, chainerr.CodeInternal, 0, "unclassified chain error", err)
}
