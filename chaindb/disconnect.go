package chaindb

import (
	"fmt"

	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/coins"
)

// DisconnectBlock is the mirror of ConnectBlock (spec.md §4.1 "Disconnect
// block"): the caller has already replayed entry's undo log into a fresh
// CoinView (reversing each consumed input, removing each output the block
// created); this persists that reversal, removes the block's own forward
// pointers, and commits ChainState pointing at prev.
func (d *DB) DisconnectBlock(entry *chainutil.Entry, curState ChainState, view *coins.View, txs []TxRecord, flags ChainFlags) error {
	batch, err := d.Start()
	if err != nil {
		return err
	}
	if err := disconnectBlockBatch(batch, entry, curState, view, txs, flags); err != nil {
		_ = batch.Drop()
		return err
	}
	return batch.Commit()
}

func disconnectBlockBatch(batch *Batch, entry *chainutil.Entry, curState ChainState, view *coins.View, txs []TxRecord, flags ChainFlags) error {
	if err := batch.ApplyView(view); err != nil {
		return fmt.Errorf("chaindb: disconnect: apply view: %w", err)
	}
	if err := batch.DeleteUndo(entry.Hash); err != nil {
		return fmt.Errorf("chaindb: disconnect: delete undo: %w", err)
	}
	if err := batch.ClearMainAt(entry.Height); err != nil {
		return fmt.Errorf("chaindb: disconnect: clear main: %w", err)
	}
	if err := batch.ClearNext(entry.PrevHash); err != nil {
		return fmt.Errorf("chaindb: disconnect: clear next: %w", err)
	}
	if err := batch.SetTip(entry.Hash, entry.PrevHash); err != nil {
		return fmt.Errorf("chaindb: disconnect: set tip: %w", err)
	}

	removed, removedValue := countCreated(view) // this block's own outputs, still unspent at disconnect time
	restored, restoredValue := countPreexistingSpent(view)

	newState := ChainState{
		Tip:       entry.PrevHash,
		TxCount:   curState.TxCount - uint64(len(txs)),
		CoinCount: curState.CoinCount - uint64(removed) + uint64(restored),
		Value:     curState.Value - removedValue + restoredValue,
	}
	if err := batch.SetState(newState); err != nil {
		return fmt.Errorf("chaindb: disconnect: set state: %w", err)
	}

	// The view may stage this block's own created transactions with their
	// original (pre-disconnect) output set, so countCreated above can tally
	// their true value; that leaves ApplyView treating them as a put rather
	// than a delete whenever any output was still unspent. A disconnected
	// block's transactions must not survive at all, so force their removal
	// here regardless of what ApplyView just wrote.
	for _, tr := range txs {
		if err := batch.tx.Bucket(bucketCoins).Delete(tr.Hash[:]); err != nil {
			return fmt.Errorf("chaindb: disconnect: remove own outputs: %w", err)
		}
		hash := tr.Hash
		batch.onCommit(func() { batch.db.coinsCache.Remove(hash) })
	}

	if flags.IndexTx || flags.IndexAddress {
		for _, tr := range txs {
			if flags.IndexTx {
				if err := batch.DeleteTxIndex(tr.Hash); err != nil {
					return err
				}
			}
			if flags.IndexAddress {
				for _, addr := range tr.Addresses {
					if err := batch.DeleteAddrTx(addr, tr.Hash); err != nil {
						return err
					}
				}
				for _, oa := range tr.OutputAddrs {
					if err := batch.DeleteAddrOutpoint(oa.Addr, tr.Hash, oa.Index); err != nil {
						return err
					}
				}
				for _, sa := range tr.SpentAddrs {
					if err := batch.PutAddrOutpoint(sa.Addr, sa.Hash, sa.Vout); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
