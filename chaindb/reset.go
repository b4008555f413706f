package chaindb

import (
	"fmt"

	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"
)

// ResetBlockData bundles what Reset's per-step callback must reconstruct
// for a single block being unwound: the CoinView produced by replaying that
// block's undo log, and the TxRecords needed to roll back secondary
// indices exactly as DisconnectBlock does.
type ResetBlockData struct {
	View *coins.View
	Txs  []TxRecord
}

// Reset walks backward from the current tip along each entry's PrevHash, deleting
// per-block records and committing a new ChainState at each step, so a
// crash mid-reset leaves the chain well-formed at some intermediate height
// (spec.md §4.1 "Reset").
//
// replay is called once per block being unwound, in tip-to-target order; it
// is the caller's (Chain's) responsibility to rebuild the CoinView from
// that block's undo record since chaindb has no notion of transaction wire
// format.
func (d *DB) Reset(targetHeight uint32, replay func(hash primitives.Hash, height uint32) (*ResetBlockData, error)) error {
	state, err := d.State()
	if err != nil {
		return err
	}
	tipHeight, ok := d.HeightOf(state.Tip)
	if !ok {
		return fmt.Errorf("chaindb: reset: tip height unknown")
	}
	if targetHeight >= tipHeight {
		return nil
	}

	cur := state.Tip
	curHeight := tipHeight
	curState := state
	for curHeight > targetHeight {
		entry, ok := d.EntryByHash(cur)
		if !ok {
			return fmt.Errorf("chaindb: reset: entry %s not found", cur)
		}
		data, err := replay(cur, curHeight)
		if err != nil {
			return fmt.Errorf("chaindb: reset: replay %s: %w", cur, err)
		}

		batch, err := d.Start()
		if err != nil {
			return err
		}
		flags, ferr := d.Flags()
		if ferr != nil {
			_ = batch.Drop()
			return ferr
		}
		if err := disconnectBlockBatch(batch, entry, curState, data.View, data.Txs, flags); err != nil {
			_ = batch.Drop()
			return fmt.Errorf("chaindb: reset: disconnect %s: %w", cur, err)
		}
		if err := batch.DeleteEntry(cur); err != nil {
			_ = batch.Drop()
			return err
		}
		if err := batch.Commit(); err != nil {
			return err
		}

		curState, err = d.State()
		if err != nil {
			return err
		}
		cur = entry.PrevHash
		curHeight--
	}
	return nil
}
