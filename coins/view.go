package coins

import (
	"fmt"

	"ledgerd.dev/chain/primitives"
)

// Fetcher is the narrow read interface View needs from the backing store
// (chaindb) to load a Coins record it does not already have staged. Kept
// separate from chaindb to avoid an import cycle per the design notes on
// cyclic references between components.
type Fetcher interface {
	GetCoins(hash primitives.Hash) (*Coins, bool, error)
}

// View is the transient per-block CoinView (spec.md §3): a staged mapping of
// tx-hash to Coins, backed by a Fetcher for anything not already loaded, plus
// an append-only undo log recording everything the block's inputs consumed.
type View struct {
	fetcher Fetcher
	staged  map[primitives.Hash]*Coins
	fetched map[primitives.Hash]bool // tracks which entries came from the backing store, for undo height bookkeeping
	Undo    UndoCoins
}

// NewView builds an empty CoinView backed by fetcher.
func NewView(fetcher Fetcher) *View {
	return &View{
		fetcher: fetcher,
		staged:  make(map[primitives.Hash]*Coins),
		fetched: make(map[primitives.Hash]bool),
	}
}

// Get returns the staged or backing-store Coins record for hash, loading and
// caching it on first access.
func (v *View) Get(hash primitives.Hash) (*Coins, error) {
	if c, ok := v.staged[hash]; ok {
		return c, nil
	}
	if v.fetcher == nil {
		return nil, nil
	}
	c, ok, err := v.fetcher.GetCoins(hash)
	if err != nil {
		return nil, fmt.Errorf("coins: view: fetch %s: %w", hash, err)
	}
	if !ok {
		return nil, nil
	}
	v.staged[hash] = c
	v.fetched[hash] = true
	return c, nil
}

// AddTx stages a freshly created Coins bundle for a transaction within the
// block currently being validated.
func (v *View) AddTx(hash primitives.Hash, c *Coins) {
	v.staged[hash] = c
}

// AddRestored stages a Coins bundle reconstructed from a historical undo
// entry (a record whose every output had previously been spent, so it no
// longer existed in the backing store to Get). It is marked non-fresh, the
// same as a true Get hit, since it represents a preexisting record being
// restored rather than a brand-new one being created.
func (v *View) AddRestored(hash primitives.Hash, c *Coins) {
	v.staged[hash] = c
	v.fetched[hash] = true
}

// SpendInput loads the Coins bundle owning (hash, vout), marks that output
// spent, records an undo entry, and returns the spent output. It is an error
// for the output to be missing or already spent (spec.md §4.3
// "bad-txns-inputs-missingorspent").
func (v *View) SpendInput(hash primitives.Hash, vout uint32) (*Output, error) {
	c, err := v.Get(hash)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("coins: spend: unknown tx %s", hash)
	}
	out, err := c.Spend(int(vout))
	if err != nil {
		return nil, fmt.Errorf("coins: spend %s:%d: %w", hash, vout, err)
	}
	v.Undo.Push(UndoItem{
		Hash:     hash,
		Vout:     vout,
		Value:    out.Value,
		Script:   out.Script,
		Height:   c.Height,
		Coinbase: c.Coinbase,
	})
	return out, nil
}

// Entries returns the staged tx-hash -> Coins map for the caller (chaindb) to
// persist: a fully-spent Coins is a deletion, anything else is a put.
func (v *View) Entries() map[primitives.Hash]*Coins {
	return v.staged
}

// Fresh reports whether hash's Coins bundle was staged directly by this view
// (a brand-new tx in the block being validated) rather than loaded from the
// backing store.
func (v *View) Fresh(hash primitives.Hash) bool {
	return !v.fetched[hash]
}
