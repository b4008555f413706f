package chain

import (
	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"
)

// GetLocator builds a block locator for peer synchronization starting from
// start (or the current tip if start is nil): the Bitcoin-style "exponential
// step-back" list of ancestor hashes, dense near the tip and sparse toward
// genesis, that lets a peer find the most recent common block in O(log n)
// round trips. Locator construction lives on Chain's public surface even
// though the P2P layer itself is out of scope.
func (c *Chain) GetLocator(start *primitives.Hash) []primitives.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.tip
	if start != nil {
		if e, ok := c.db.EntryByHash(*start); ok {
			cur = e
		}
	}
	if cur == nil {
		return nil
	}

	var locator []primitives.Hash
	step := 1
	for {
		locator = append(locator, cur.Hash)
		if cur.Height == 0 {
			break
		}
		var targetHeight uint32
		if uint32(step) >= cur.Height {
			targetHeight = 0
		} else {
			targetHeight = cur.Height - uint32(step)
		}
		anc, ok := chainutil.GetAncestor(c.db, cur, targetHeight)
		if !ok {
			break
		}
		cur = anc
		if len(locator) >= 10 {
			step *= 2
		}
	}
	return locator
}
