package chain

import (
	"context"

	"ledgerd.dev/chain/chaindb"
	"ledgerd.dev/chain/chainerr"
	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"
	"ledgerd.dev/chain/script"
)

// findFork walks a and b back to their most recent common ancestor (spec.md
// §4.3 "Reorganization"): first bring the taller side down to the shorter
// side's height, then step both back in lockstep until the hashes agree.
func (c *Chain) findFork(a, b *chainutil.Entry) (*chainutil.Entry, error) {
	for a.Height > b.Height {
		p, ok := c.db.EntryByHash(a.PrevHash)
		if !ok {
			return nil, chainerr.Corruption("missing ancestor while finding fork point")
		}
		a = p
	}
	for b.Height > a.Height {
		p, ok := c.db.EntryByHash(b.PrevHash)
		if !ok {
			return nil, chainerr.Corruption("missing ancestor while finding fork point")
		}
		b = p
	}
	for a.Hash != b.Hash {
		pa, ok := c.db.EntryByHash(a.PrevHash)
		if !ok {
			return nil, chainerr.Corruption("missing ancestor while finding fork point")
		}
		pb, ok := c.db.EntryByHash(b.PrevHash)
		if !ok {
			return nil, chainerr.Corruption("missing ancestor while finding fork point")
		}
		a, b = pa, pb
	}
	return a, nil
}

// reorganize switches the best chain from c.tip to competitor: disconnect
// down to the fork point (replaying each block's undo log into a fresh
// view), then reconnect the competitor's blocks with full verification,
// since alternate-branch blocks are stored without input verification until
// they might become the best chain (spec.md §4.3 "Reorganization",
// "blocks on an alternate branch... not input-verified until the branch
// wins"). A failure partway through reconnection aborts and restores the
// original tip, so a failed reorg leaves no partial persisted state.
func (c *Chain) reorganize(ctx context.Context, competitor *chainutil.Entry) error {
	oldTip := c.tip
	fork, err := c.findFork(oldTip, competitor)
	if err != nil {
		return err
	}

	var toDisconnect []*chainutil.Entry
	for cur := oldTip; cur.Hash != fork.Hash; {
		toDisconnect = append(toDisconnect, cur)
		p, ok := c.db.EntryByHash(cur.PrevHash)
		if !ok {
			return chainerr.Corruption("missing ancestor while unwinding for reorg")
		}
		cur = p
	}

	var toConnect []*chainutil.Entry
	for cur := competitor; cur.Hash != fork.Hash; {
		toConnect = append(toConnect, cur)
		p, ok := c.db.EntryByHash(cur.PrevHash)
		if !ok {
			return chainerr.Corruption("missing ancestor while walking competitor chain")
		}
		cur = p
	}
	for i, j := 0, len(toConnect)-1; i < j; i, j = i+1, j-1 {
		toConnect[i], toConnect[j] = toConnect[j], toConnect[i]
	}

	for _, entry := range toDisconnect {
		if err := c.disconnectOne(entry); err != nil {
			return chainerr.Wrap(chainerr.KindIO, chainerr.CodeInternal, 0, "disconnect during reorg", err)
		}
		c.emit(Event{Kind: EventDisconnect, Entry: entry})
	}

	connected := 0
	for _, entry := range toConnect {
		block, ok := c.altBlocks[entry.Hash]
		if !ok {
			err := chainerr.Corruption("missing cached block body for competitor chain entry")
			c.rollbackPartialReorg(toDisconnect, toConnect[:connected], fork, oldTip)
			return err
		}
		if err := c.connectVerified(ctx, entry, *block); err != nil {
			c.rollbackPartialReorg(toDisconnect, toConnect[:connected], fork, oldTip)
			return err
		}
		// Left cached rather than deleted here: if a later block in this same
		// reorg fails, rollbackPartialReorg needs this body again to
		// disconnect it. recentOrder's FIFO still bounds its lifetime.
		connected++
		c.emit(Event{Kind: EventReconnect, Entry: entry})
	}

	c.tip = competitor
	c.emit(Event{Kind: EventReorganize, Entry: competitor, OldEntry: oldTip})
	c.emit(Event{Kind: EventTip, Entry: competitor})
	return nil
}

// rollbackPartialReorg restores the chain to oldTip after a mid-flight
// reconnect failure: disconnect whatever of the competitor's blocks were
// already reconnected, then reconnect the original blocks in order.
func (c *Chain) rollbackPartialReorg(originalDisconnected []*chainutil.Entry, reconnected []*chainutil.Entry, fork, oldTip *chainutil.Entry) {
	for i := len(reconnected) - 1; i >= 0; i-- {
		_ = c.disconnectOne(reconnected[i])
	}
	for i := len(originalDisconnected) - 1; i >= 0; i-- {
		entry := originalDisconnected[i]
		block, ok := c.altBlocks[entry.Hash]
		if !ok {
			continue
		}
		_ = c.connectVerified(context.Background(), entry, *block)
	}
	c.tip = oldTip
}

// disconnectOne replays entry's undo log backward into a fresh CoinView,
// wipes the outputs the block itself created, and persists the reversal via
// chaindb.DisconnectBlock. A created-this-block output is staged with its
// true pre-disconnect contents (nil only where another transaction in the
// same block already spent it) so the running coin count and value still
// account for it correctly, then chaindb forces its removal outright once
// counted: the undo log's own entry for such a hash is skipped during the
// restore pass below, since the creating side's removal already accounts
// for it, and restoring it too would resurrect a same-block spend chain.
func (c *Chain) disconnectOne(entry *chainutil.Entry) error {
	view, txs, err := c.buildDisconnectData(entry)
	if err != nil {
		return err
	}

	state, err := c.db.State()
	if err != nil {
		return err
	}
	flags, err := c.db.Flags()
	if err != nil {
		return err
	}
	if err := c.db.DisconnectBlock(entry, state, view, txs, flags); err != nil {
		return err
	}
	c.tip, _ = c.db.EntryByHash(entry.PrevHash)
	return nil
}

// buildDisconnectData replays entry's undo log backward into a fresh
// CoinView and re-derives the TxRecords needed to unwind entry's secondary
// indices, the shared core of both disconnectOne and Chain.Reset's
// per-block replay callback. Requires entry's parsed body still be cached
// in c.altBlocks: without it, this block's own created outputs can neither
// be identified nor removed, which would leave stale UTXO entries behind, so
// a disconnect reaching past recentBlockCap aborts here rather than
// silently running with a corrupted coin set.
func (c *Chain) buildDisconnectData(entry *chainutil.Entry) (*coins.View, []TxRecord, error) {
	undo, ok, err := c.db.Undo(entry.Hash)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		// ConnectBlock stores no undo record for a block that spent no prior
		// outputs, so a missing record is an empty undo log.
		undo = &coins.UndoCoins{}
	}

	cached, haveBlock := c.altBlocks[entry.Hash]
	if !haveBlock {
		return nil, nil, chainerr.Corruption("missing cached block body for disconnect")
	}

	ownCoins := make(map[primitives.Hash]*coins.Coins)
	spentSameBlock := make(map[primitives.Hash]map[int]bool)
	for _, tx := range cached.Txs {
		for _, in := range tx.Inputs {
			if spentSameBlock[in.Prev.Hash] == nil {
				spentSameBlock[in.Prev.Hash] = make(map[int]bool)
			}
			spentSameBlock[in.Prev.Hash][int(in.Prev.Vout)] = true
		}
	}
	for _, tx := range cached.Txs {
		hash := tx.Hash()
		outs := make([]*coins.Output, len(tx.Outputs))
		for i, o := range tx.Outputs {
			if spentSameBlock[hash][i] {
				continue
			}
			outs[i] = &coins.Output{Value: o.Value, Script: o.Script}
		}
		ownCoins[hash] = coins.NewCoins(tx.Version, tx.IsCoinbase(), entry.Height, outs)
	}

	view := coins.NewView(c.db)
	for i := len(undo.Items) - 1; i >= 0; i-- {
		item := undo.Items[i]
		if ownCoins[item.Hash] != nil {
			continue
		}
		existing, err := view.Get(item.Hash)
		if err != nil {
			return nil, nil, err
		}
		if existing == nil {
			existing = coins.NewCoins(0, item.Coinbase, item.Height, nil)
			view.AddRestored(item.Hash, existing)
		}
		existing.Unspend(int(item.Vout), &coins.Output{Value: item.Value, Script: item.Script})
		view.Undo.Push(item)
	}

	for hash, oc := range ownCoins {
		view.AddTx(hash, oc)
	}

	txs := buildTxRecords(*cached, undo.Items)
	return view, txs, nil
}

// connectVerified runs full input verification on block (as if it were
// being freshly added) and persists it via chaindb.ConnectBlock.
func (c *Chain) connectVerified(ctx context.Context, entry *chainutil.Entry, block Block) error {
	parent := mustParent(c, entry)
	if _, err := c.computeVersionCached(parent); err != nil {
		return err
	}
	scriptFlags, err := c.scriptFlags(entry.Height)
	if err != nil {
		return err
	}
	mtp := int64(chainutil.GetMedianTime(c.db, parent))
	view, _, err := c.verifyBlockInputs(ctx, block, parent, uint32(scriptFlags), mtp)
	if err != nil {
		return err
	}
	state, err := c.db.State()
	if err != nil {
		return err
	}
	dbFlags, err := c.db.Flags()
	if err != nil {
		return err
	}
	txs := buildTxRecords(block, view.Undo.Items)
	if err := c.db.ConnectBlock(entry, state, block.Raw, view, txs, dbFlags); err != nil {
		return err
	}
	c.tip = entry
	return nil
}

func mustParent(c *Chain, entry *chainutil.Entry) *chainutil.Entry {
	p, _ := c.db.EntryByHash(entry.PrevHash)
	return p
}

// buildTxRecords derives the per-tx indexing hints chaindb needs from a
// parsed block and the undo items its inputs consumed: txid/coinbase-flag
// unconditionally, plus address-hash indexing data (spec.md §3
// "addressIndex") derived via script.AddressHash, which hashes a locking
// script directly rather than parsing it — script content stays opaque to
// this engine (spec.md §6) even though indexing by it does not.
//
// undo is the block's full consumed-input log (connect: the CoinView's own
// Undo.Items once verification has finished spending every input;
// disconnect: the persisted undo log being replayed) keyed by outpoint so
// each input's previously-unspent script can be recovered after CoinView
// has already zeroed it out via Coins.Spend.
func buildTxRecords(block Block, undo []coins.UndoItem) []TxRecord {
	prevScripts := make(map[TxOutPoint][]byte, len(undo))
	for _, item := range undo {
		prevScripts[TxOutPoint{Hash: item.Hash, Vout: item.Vout}] = item.Script
	}

	txs := make([]TxRecord, len(block.Txs))
	for i, tx := range block.Txs {
		tr := TxRecord{Hash: tx.Hash(), Raw: tx.Serialize(), Index: uint32(i), Coinbase: tx.IsCoinbase()}
		seen := make(map[primitives.Hash]bool)
		addAddr := func(addr primitives.Hash) {
			if seen[addr] {
				return
			}
			seen[addr] = true
			tr.Addresses = append(tr.Addresses, addr)
		}

		for idx, out := range tx.Outputs {
			if len(out.Script) == 0 {
				continue
			}
			addr := script.AddressHash(out.Script)
			tr.OutputAddrs = append(tr.OutputAddrs, chaindb.OutputAddr{Index: uint32(idx), Addr: addr})
			addAddr(addr)
		}
		if !tr.Coinbase {
			for _, in := range tx.Inputs {
				prevScript, ok := prevScripts[in.Prev]
				if !ok || len(prevScript) == 0 {
					continue
				}
				addr := script.AddressHash(prevScript)
				tr.SpentAddrs = append(tr.SpentAddrs, chaindb.SpentAddr{Hash: in.Prev.Hash, Vout: in.Prev.Vout, Addr: addr})
				addAddr(addr)
			}
		}
		txs[i] = tr
	}
	return txs
}

// TxRecord is an alias for chaindb.TxRecord, so callers in this package
// never need to import chaindb directly just to build one.
type TxRecord = chaindb.TxRecord
