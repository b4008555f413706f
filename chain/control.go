package chain

import (
	"context"
	"time"

	"ledgerd.dev/chain/chaindb"
	"ledgerd.dev/chain/chainerr"
	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"
)

// Invalidate marks hash as a known-bad block (spec.md §4.3 "Invalid-block
// memory"): any later Add of a descendant is rejected as a duplicate
// without touching disk, and joins the invalid LRU itself.
func (c *Chain) Invalidate(hash primitives.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalid.Add(hash)
}

// Reset walks the chain backward from its current tip to targetHeight
// (spec.md §4.1 "Reset"), disconnecting one block per atomic batch so a
// crash mid-reset leaves the chain well-formed at some intermediate height,
// then purges the orphan pool (as a checkpoint mismatch does) and the
// invalid-block LRU. Each disconnected block's undo replay needs its
// parsed body still held in c.altBlocks (see buildDisconnectData); a reset
// reaching past the cached window aborts, returning an IO error that wraps
// the underlying corruption error, rather than silently leaving the UTXO
// set wrong.
func (c *Chain) Reset(targetHeight uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Reset(targetHeight, func(hash primitives.Hash, height uint32) (*chaindb.ResetBlockData, error) {
		entry, ok := c.db.EntryByHash(hash)
		if !ok {
			return nil, chainerr.Corruption("reset: entry missing for hash being unwound")
		}
		view, txs, err := c.buildDisconnectData(entry)
		if err != nil {
			return nil, err
		}
		return &chaindb.ResetBlockData{View: view, Txs: txs}, nil
	})
	if err != nil {
		return chainerr.IOError(err)
	}

	state, err := c.db.State()
	if err != nil {
		return chainerr.IOError(err)
	}
	tip, ok := c.db.EntryByHash(state.Tip)
	if !ok {
		return chainerr.Corruption("reset: tip entry missing after reset")
	}
	oldTip := c.tip
	c.tip = tip
	c.orphans.purge()
	c.invalid.Purge()
	c.emit(Event{Kind: EventTip, Entry: tip, OldEntry: oldTip})
	return nil
}

// Replay streams raw block bytes along the main chain from start (inclusive)
// through fn, under the chain lock so no concurrent Add can mutate chain
// state mid-walk (spec.md §4.3 "Public entry points"). It is the
// general-purpose forward walk, plain chaindb.Scan wrapped with the chain
// lock; Scan below is its address-filter-bound sibling (spec.md §4.1
// "Scan"). Block-wire parsing is the caller's responsibility, same as
// everywhere else this engine treats block bytes as opaque (spec.md §6).
func (c *Chain) Replay(start primitives.Hash, fn func(entry *chainutil.Entry, rawBlock []byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Scan(start, chaindb.ScanIter(fn))
}

// Scan streams blocks forward from start along the main chain to iter,
// under the chain lock, for callers mutating an address/output filter as
// they go (spec.md §4.1 "Scan": "a caller-supplied Bloom filter is mutated
// as outputs match, to catch downstream spending inputs in the same scan").
func (c *Chain) Scan(start primitives.Hash, iter chaindb.ScanIter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Scan(start, iter)
}

// Prune runs the retroactive one-shot prune sweep on demand (spec.md §4.1
// step 4), e.g. after an operator flips prune on against an already-synced
// chain without wanting to restart the process to get startup's automatic
// sweep. Rejected unless ForcePrune was configured, same as at startup.
func (c *Chain) Prune() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.ForcePruneSweep(); err != nil {
		return chainerr.IOError(err)
	}
	return nil
}

// VerifyBlock runs block through the same context and input-verification
// rules Add would apply against its already-known declared parent, without
// persisting anything or touching c.tip/orphans/invalid — a dry run for a
// caller (e.g. a block-template assembler) that wants to know whether a
// candidate would be accepted before it is ever broadcast or added.
func (c *Chain) VerifyBlock(ctx context.Context, block Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent, ok := c.db.EntryByHash(block.Header.PrevHash)
	if !ok {
		return chainerr.Invalid(chainerr.CodeBadPrevLink, 0, "unknown parent for block under verification")
	}
	if !hashMeetsTarget(block.Hash(), block.Header.Bits) {
		return chainerr.Invalid(chainerr.CodeBadDifficultyBits, 50, "hash does not meet declared target")
	}
	if err := c.checkBlockContext(parent, block.Header, uint32(time.Now().Unix())); err != nil {
		return err
	}

	height := parent.Height + 1
	mtp := int64(chainutil.GetMedianTime(c.db, parent))
	if err := c.checkBlockFinality(block, height, mtp); err != nil {
		return err
	}
	if c.params.BIP34Height != 0 && height >= c.params.BIP34Height && len(block.Txs) > 0 {
		cb := block.Txs[0]
		if cb.IsCoinbase() && len(cb.Inputs) == 1 {
			if err := checkBIP34Coinbase(height, cb.Inputs[0].ScriptSig); err != nil {
				return err
			}
		}
	}
	if err := c.checkWitnessCommitment(block); err != nil {
		return err
	}

	scriptFlags, err := c.scriptFlags(height)
	if err != nil {
		return chainerr.IOError(err)
	}
	_, _, err = c.verifyBlockInputs(ctx, block, parent, uint32(scriptFlags), mtp)
	return err
}

// GetSpentView builds a CoinView previewing which of tx's inputs would be
// spent against the current persisted UTXO set, without mutating it (spec.md
// §4.3 "Public entry points"): a read-only lookup a caller outside Add's own
// pipeline (e.g. a mempool layer admitting a new transaction) can use to
// check spendability against live chain state.
func (c *Chain) GetSpentView(tx Tx) (*coins.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := coins.NewView(c.db)
	for _, in := range tx.Inputs {
		if _, err := view.SpendInput(in.Prev.Hash, in.Prev.Vout); err != nil {
			return nil, chainerr.Invalid(chainerr.CodeMissingOrSpentInput, 0, err.Error())
		}
	}
	return view, nil
}
