package chain

import "ledgerd.dev/chain/primitives"

// recentBlockCap bounds how many connected block bodies Chain keeps around
// in memory for possible reorg replay (see altBlocks on Chain); anything
// older falls out and a reorg reaching that deep loses secondary-index
// rollback fidelity for the dropped blocks, a deliberate tradeoff against
// unbounded memory growth.
const recentBlockCap = 2016

// cacheRecentBlock remembers block under hash for later reorg replay and
// trims the cache back to recentBlockCap using simple FIFO eviction.
func (c *Chain) cacheRecentBlock(hash primitives.Hash, block *Block) {
	if _, exists := c.altBlocks[hash]; exists {
		return
	}
	c.altBlocks[hash] = block
	c.recentOrder = append(c.recentOrder, hash)
	for len(c.recentOrder) > recentBlockCap {
		oldest := c.recentOrder[0]
		c.recentOrder = c.recentOrder[1:]
		delete(c.altBlocks, oldest)
	}
}
