package chaindb

import (
	"fmt"

	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"
)

// TxRecord is the per-transaction indexing hint Chain supplies alongside a
// CoinView so ChainDB can maintain the optional t/T/C secondary indices
// without needing to understand wire transaction format itself (spec.md
// §4.1 "index via t, T, C as flags allow").
type TxRecord struct {
	Hash        primitives.Hash
	Raw         []byte
	Index       uint32
	Addresses   []primitives.Hash // every address hash touched by this tx's inputs or outputs, deduplicated
	OutputAddrs []OutputAddr      // this tx's own outputs, for the C (address -> unspent outpoint) index
	SpentAddrs  []SpentAddr       // outpoints this tx's inputs consume, for retiring their C entries
	Coinbase    bool
}

// OutputAddr names one of a TxRecord's own output indices by the address
// hash its locking script indexes to.
type OutputAddr struct {
	Index uint32
	Addr  primitives.Hash
}

// SpentAddr names a previously-unspent outpoint a TxRecord's input consumes,
// by the address hash the spent output's locking script indexes to.
type SpentAddr struct {
	Hash primitives.Hash
	Vout uint32
	Addr primitives.Hash
}

// ConnectBlock applies one block atomically (spec.md §4.1 "Connect block"):
// writes the header/height records, updates the tip set and main-chain
// forward/height pointers, persists the CoinView and its undo log, updates
// the running counters, maintains secondary indices, prunes the trailing
// edge of the window if enabled, and finally commits the new ChainState.
func (d *DB) ConnectBlock(entry *chainutil.Entry, prevState ChainState, block []byte, view *coins.View, txs []TxRecord, flags ChainFlags) error {
	batch, err := d.Start()
	if err != nil {
		return err
	}
	if err := connectBlockBatch(batch, entry, prevState, block, view, txs, flags); err != nil {
		_ = batch.Drop()
		return err
	}
	return batch.Commit()
}

func connectBlockBatch(batch *Batch, entry *chainutil.Entry, prevState ChainState, block []byte, view *coins.View, txs []TxRecord, flags ChainFlags) error {
	if err := batch.PutEntry(entry); err != nil {
		return fmt.Errorf("chaindb: connect: put entry: %w", err)
	}
	if err := batch.SetTip(entry.PrevHash, entry.Hash); err != nil {
		return fmt.Errorf("chaindb: connect: set tip: %w", err)
	}
	if err := batch.SetMainAt(entry.Height, entry.Hash); err != nil {
		return fmt.Errorf("chaindb: connect: set main: %w", err)
	}
	if err := batch.SetNext(entry.PrevHash, entry.Hash); err != nil {
		return fmt.Errorf("chaindb: connect: set next: %w", err)
	}
	if block != nil {
		if err := batch.PutBlock(entry.Hash, block); err != nil {
			return fmt.Errorf("chaindb: connect: put block: %w", err)
		}
	}
	if err := batch.ApplyView(view); err != nil {
		return fmt.Errorf("chaindb: connect: apply view: %w", err)
	}
	if len(view.Undo.Items) > 0 {
		if err := batch.PutUndo(entry.Hash, &view.Undo); err != nil {
			return fmt.Errorf("chaindb: connect: put undo: %w", err)
		}
	}

	created, createdValue := countCreated(view)
	spent, spentValue := countPreexistingSpent(view)

	newState := ChainState{
		Tip:       entry.Hash,
		TxCount:   prevState.TxCount + uint64(len(txs)),
		CoinCount: prevState.CoinCount + uint64(created) - uint64(spent),
		Value:     prevState.Value + createdValue - spentValue,
	}
	if err := batch.SetState(newState); err != nil {
		return fmt.Errorf("chaindb: connect: set state: %w", err)
	}

	if flags.IndexTx || flags.IndexAddress {
		if err := indexTxs(batch, entry, txs, flags); err != nil {
			return fmt.Errorf("chaindb: connect: index: %w", err)
		}
	}

	if err := applyPruneWindow(batch, entry.Height); err != nil {
		return fmt.Errorf("chaindb: connect: prune window: %w", err)
	}
	return nil
}

// countCreated sums the unspent outputs of every freshly-staged Coins
// bundle: the net new UTXOs this block adds to the set.
func countCreated(view *coins.View) (count int, value uint64) {
	for hash, c := range view.Entries() {
		if !view.Fresh(hash) {
			continue
		}
		for _, o := range c.Outputs {
			if o != nil {
				count++
				value += o.Value
			}
		}
	}
	return count, value
}

// countPreexistingSpent sums undo items whose source Coins bundle already
// existed before this block, excluding same-block create-then-spend pairs
// (which never touch persisted storage and so must not affect the running
// counters).
func countPreexistingSpent(view *coins.View) (count int, value uint64) {
	for _, item := range view.Undo.Items {
		if view.Fresh(item.Hash) {
			continue
		}
		count++
		value += item.Value
	}
	return count, value
}

func indexTxs(batch *Batch, entry *chainutil.Entry, txs []TxRecord, flags ChainFlags) error {
	for _, tr := range txs {
		if flags.IndexTx {
			if err := batch.PutTxIndex(tr.Hash, TxMeta{
				Raw:    tr.Raw,
				Block:  entry.Hash,
				Height: entry.Height,
				Index:  tr.Index,
			}); err != nil {
				return err
			}
		}
		if flags.IndexAddress {
			for _, addr := range tr.Addresses {
				if err := batch.PutAddrTx(addr, tr.Hash); err != nil {
					return err
				}
			}
			for _, oa := range tr.OutputAddrs {
				if err := batch.PutAddrOutpoint(oa.Addr, tr.Hash, oa.Index); err != nil {
					return err
				}
			}
			for _, sa := range tr.SpentAddrs {
				if err := batch.DeleteAddrOutpoint(sa.Addr, sa.Hash, sa.Vout); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// applyPruneWindow removes the block/undo records that fall off the
// trailing edge of the keep window once height crosses keepBlocks+pruneAfter
// (spec.md §4.1 "if pruning is on and height - keepBlocks > pruneAfter").
func applyPruneWindow(batch *Batch, height uint32) error {
	cfg := batch.db.cfg
	if !cfg.Flags.Prune || height < cfg.KeepBlocks {
		return nil
	}
	oldHeight := height - cfg.KeepBlocks
	if oldHeight <= cfg.PruneAfter {
		return nil
	}
	old, ok := batch.db.EntryAtHeight(oldHeight)
	if !ok {
		return nil
	}
	if err := batch.DeleteBlock(old.Hash); err != nil {
		return err
	}
	return batch.DeleteUndo(old.Hash)
}
