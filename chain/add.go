package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"ledgerd.dev/chain/chainerr"
	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"
)

// Add runs the full validation/connect pipeline for block, originating from
// peerID (spec.md §4.3 "Add"): duplicate/invalid-ancestor rejection, orphan
// buffering, proof-of-work and contextual checks, input verification,
// persistence, fork-choice, and the orphan-cascade that follows once a
// parent resolves. Concurrent calls for the same hash coalesce onto one
// actual validation (spec.md §5's in-flight dedup).
func (c *Chain) Add(ctx context.Context, block Block, peerID string, flags VerifyFlags) (*chainutil.Entry, error) {
	hash := block.Hash()

	c.mu.Lock()
	if wg, ok := c.inFlight[hash]; ok {
		c.mu.Unlock()
		wg.Wait()
		if e, ok := c.db.EntryByHash(hash); ok {
			return e, nil
		}
		return nil, chainerr.Invalid(chainerr.CodeDuplicate, 0, "concurrent add did not produce a stored entry")
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.inFlight[hash] = wg
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, hash)
		c.mu.Unlock()
		wg.Done()
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(ctx, block, hash, peerID, flags)
}

func (c *Chain) addLocked(ctx context.Context, block Block, hash primitives.Hash, peerID string, flags VerifyFlags) (*chainutil.Entry, error) {
	if _, ok := c.db.EntryByHash(hash); ok {
		parentInvalid := c.invalid.Has(block.Header.PrevHash)
		return nil, chainerr.Duplicate(parentInvalid)
	}
	if c.invalid.Has(hash) {
		return nil, chainerr.Invalid(chainerr.CodeDuplicate, 100, "block previously marked invalid")
	}
	if c.invalid.Has(block.Header.PrevHash) {
		c.invalid.Add(hash)
		return nil, chainerr.Invalid(chainerr.CodeDuplicate, 100, "parent previously marked invalid")
	}

	parent, ok := c.db.EntryByHash(block.Header.PrevHash)
	if !ok {
		c.orphans.add(&Orphan{Block: &block, PeerID: peerID, ArrivalSec: time.Now().Unix(), Flags: flags})
		c.emit(Event{Kind: EventOrphan, Hash: hash, PeerID: peerID})
		return nil, nil
	}

	entry, err := c.validateAndConnect(ctx, block, parent, flags)
	if err != nil {
		if chainerr.IsConsensus(err) {
			if ve, _ := chainerr.As(err); ve == nil || !ve.Malleated {
				c.invalid.Add(hash)
			}
		}
		return nil, err
	}

	c.cacheRecentBlock(hash, &block)
	c.handleOrphans(ctx, entry)
	return entry, nil
}

// validateAndConnect performs PoW, context, and input verification for one
// candidate block against its known parent, then either extends the tip
// directly, stores it as a losing alternate, or triggers a reorg, following
// spec.md §4.3's fork-choice rule (strictly greater cumulative chainwork
// wins). Script-verification flags are always derived from chain state
// (scriptFlags), not taken from the caller, since they are a consensus
// property of height and deployment activation rather than a per-call hint.
func (c *Chain) validateAndConnect(ctx context.Context, block Block, parent *chainutil.Entry, flags VerifyFlags) (*chainutil.Entry, error) {
	if flags&VerifySkipPoW == 0 && !hashMeetsTarget(block.Hash(), block.Header.Bits) {
		return nil, chainerr.Invalid(chainerr.CodeBadDifficultyBits, 50, "hash does not meet declared target")
	}
	if err := c.checkBlockContext(parent, block.Header, uint32(time.Now().Unix())); err != nil {
		return nil, err
	}

	height := parent.Height + 1
	proof, err := primitives.ProofFromBits(block.Header.Bits)
	if err != nil {
		return nil, chainerr.Invalid(chainerr.CodeBadDifficultyBits, 100, "malformed difficulty bits")
	}
	chainwork := new(big.Int).Add(parent.Chainwork, proof)

	entry := &chainutil.Entry{
		Hash:       block.Hash(),
		PrevHash:   parent.Hash,
		MerkleRoot: block.Header.MerkleRoot,
		Version:    block.Header.Version,
		Timestamp:  block.Header.Timestamp,
		Bits:       block.Header.Bits,
		Nonce:      block.Header.Nonce,
		Height:     height,
		Chainwork:  chainwork,
	}

	mtp := int64(chainutil.GetMedianTime(c.db, parent))
	if err := c.checkBlockFinality(block, height, mtp); err != nil {
		return nil, err
	}
	if c.params.BIP34Height != 0 && height >= c.params.BIP34Height && len(block.Txs) > 0 {
		cb := block.Txs[0]
		if cb.IsCoinbase() && len(cb.Inputs) == 1 {
			if err := checkBIP34Coinbase(height, cb.Inputs[0].ScriptSig); err != nil {
				return nil, err
			}
		}
	}
	if err := c.checkWitnessCommitment(block); err != nil {
		return nil, err
	}

	if entry.Chainwork.Cmp(c.tip.Chainwork) <= 0 {
		return c.storeAsAlternate(entry, &block)
	}

	if _, err := c.computeVersionCached(parent); err != nil {
		return nil, chainerr.Wrap(chainerr.KindIO, chainerr.CodeInternal, 0, "compute block version", err)
	}

	if parent.Hash != c.tip.Hash {
		c.emit(Event{Kind: EventCompetitor, Entry: entry})
		// reorganize reconnects the competitor tip from c.altBlocks too.
		c.cacheRecentBlock(entry.Hash, &block)
		if err := c.reorganize(ctx, entry); err != nil {
			return nil, err
		}
		return entry, nil
	}

	scriptFlags, err := c.scriptFlags(height)
	if err != nil {
		return nil, chainerr.IOError(err)
	}
	view, _, err := c.verifyBlockInputs(ctx, block, parent, uint32(scriptFlags), mtp)
	if err != nil {
		return nil, err
	}
	state, err := c.db.State()
	if err != nil {
		return nil, chainerr.IOError(err)
	}
	dbFlags, err := c.db.Flags()
	if err != nil {
		return nil, chainerr.IOError(err)
	}
	txs := buildTxRecords(block, view.Undo.Items)
	if err := c.db.ConnectBlock(entry, state, block.Raw, view, txs, dbFlags); err != nil {
		return nil, chainerr.IOError(err)
	}

	oldTip := c.tip
	c.tip = entry
	c.emit(Event{Kind: EventConnect, Entry: entry, View: view})
	c.emit(Event{Kind: EventBlock, Entry: entry, Block: &block})
	c.emit(Event{Kind: EventTip, Entry: entry, OldEntry: oldTip})
	return entry, nil
}

// storeAsAlternate persists entry's header (and caches its body) without
// extending the best chain, for the case where a competing block does not
// beat the current tip's cumulative chainwork (spec.md §4.3 "Fork-choice").
func (c *Chain) storeAsAlternate(entry *chainutil.Entry, block *Block) (*chainutil.Entry, error) {
	batch, err := c.db.Start()
	if err != nil {
		return nil, chainerr.IOError(err)
	}
	if err := batch.PutEntry(entry); err != nil {
		_ = batch.Drop()
		return nil, chainerr.IOError(err)
	}
	if block.Raw != nil {
		if err := batch.PutBlock(entry.Hash, block.Raw); err != nil {
			_ = batch.Drop()
			return nil, chainerr.IOError(err)
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, chainerr.IOError(err)
	}
	c.cacheRecentBlock(entry.Hash, block)
	c.emit(Event{Kind: EventBlock, Entry: entry, Block: block})
	return entry, nil
}

// handleOrphans cascades connection attempts to every orphan waiting on
// parent's hash, recursively resolving further descendants as each one
// connects (spec.md §4.3 "Orphan resolution cascade").
func (c *Chain) handleOrphans(ctx context.Context, parent *chainutil.Entry) {
	o, ok := c.orphans.get(parent.Hash)
	if !ok {
		return
	}
	c.orphans.remove(o.Block.Hash())

	entry, err := c.validateAndConnect(ctx, *o.Block, parent, o.Flags)
	if err != nil {
		hash := o.Block.Hash()
		if chainerr.IsConsensus(err) {
			c.invalid.Add(hash)
		}
		c.emit(Event{Kind: EventBadOrphan, Hash: hash, Err: err})
		return
	}
	c.cacheRecentBlock(entry.Hash, o.Block)
	c.emit(Event{Kind: EventResolved, Entry: entry})
	c.handleOrphans(ctx, entry)
}

// hashMeetsTarget reports whether hash, read as a big-endian integer in
// display byte order, is numerically at or below the target compact bits
// decode to (the Bitcoin-family proof-of-work condition).
func hashMeetsTarget(hash primitives.Hash, bits uint32) bool {
	target := primitives.CompactToBig(bits)
	disp := hash.Reversed()
	val := new(big.Int).SetBytes(disp[:])
	return val.Cmp(target) <= 0
}
