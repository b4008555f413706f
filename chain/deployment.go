package chain

import (
	"ledgerd.dev/chain/chaindb"
	"ledgerd.dev/chain/chainutil"
)

// topBits is the version base ORed with active/started deployment bits
// (spec.md §4.4 "computeBlockVersion ORs 1<<bit ... into the top-bits base
// 0x20000000"), following BIP9's version-bits signaling convention.
const topBits uint32 = 0x20000000

// deploymentStateAt computes the BIP9 threshold state for one deployment
// bit as of windowEnd (the last block of the period-window containing the
// block under consideration), per spec.md §4.4's state table. It walks
// back by window size to find the first windowEnd with a memoized state,
// then replays forward, writing newly computed states into the StateCache
// as it goes.
func (c *Chain) deploymentStateAt(batch *chaindb.Batch, dep chaindb.Deployment, windowEnd *chainutil.Entry) (chaindb.ThresholdState, error) {
	period := c.params.MinerConfirmationWindow
	if period == 0 || windowEnd.Height+1 < period {
		return chaindb.StateDefined, nil
	}

	var windowEnds []*chainutil.Entry
	cur := windowEnd
	for {
		if s, ok, err := c.db.ThresholdState(dep.Bit, cur.Hash); err != nil {
			return chaindb.StateDefined, err
		} else if ok {
			return c.replayForward(batch, dep, s, windowEnds)
		}
		windowEnds = append(windowEnds, cur)
		if cur.Height+1 < period {
			return c.replayForward(batch, dep, chaindb.StateDefined, windowEnds)
		}
		prevWindowEnd, ok := chainutil.GetAncestor(c.db, cur, cur.Height-period)
		if !ok {
			return c.replayForward(batch, dep, chaindb.StateDefined, windowEnds)
		}
		cur = prevWindowEnd
	}
}

// replayForward advances state forward through chain (oldest-computed-first
// order, i.e. chain is walked in reverse since it was appended
// newest-first), applying spec.md §4.4's transition table at each step and
// staging every newly computed state into the batch's StateCache.
func (c *Chain) replayForward(batch *chaindb.Batch, dep chaindb.Deployment, state chaindb.ThresholdState, windowEnds []*chainutil.Entry) (chaindb.ThresholdState, error) {
	for i := len(windowEnds) - 1; i >= 0; i-- {
		we := windowEnds[i]
		if cached, ok, err := c.db.ThresholdState(dep.Bit, we.Hash); err != nil {
			return state, err
		} else if ok {
			state = cached
			continue
		}
		state = c.nextDeploymentState(dep, state, we)
		if batch != nil {
			if err := batch.PutThresholdState(dep.Bit, we.Hash, state); err != nil {
				return state, err
			}
		}
	}
	return state, nil
}

// nextDeploymentState applies one window's transition (spec.md §4.4).
func (c *Chain) nextDeploymentState(dep chaindb.Deployment, prev chaindb.ThresholdState, windowEnd *chainutil.Entry) chaindb.ThresholdState {
	mtp := chainutil.GetMedianTime(c.db, windowEnd)
	switch prev {
	case chaindb.StateDefined:
		if mtp >= dep.Timeout {
			return chaindb.StateFailed
		}
		if mtp >= dep.StartTime {
			return chaindb.StateStarted
		}
		return chaindb.StateDefined
	case chaindb.StateStarted:
		if mtp >= dep.Timeout {
			return chaindb.StateFailed
		}
		if c.countSignalsInWindow(dep.Bit, windowEnd) >= c.params.RuleChangeActivationThreshold {
			return chaindb.StateLockedIn
		}
		return chaindb.StateStarted
	case chaindb.StateLockedIn:
		return chaindb.StateActive
	default:
		return prev
	}
}

// countSignalsInWindow counts how many of the MinerConfirmationWindow
// blocks ending at windowEnd signaled dep.Bit in their version field.
func (c *Chain) countSignalsInWindow(bit uint8, windowEnd *chainutil.Entry) uint32 {
	var count uint32
	cur := windowEnd
	for i := uint32(0); i < c.params.MinerConfirmationWindow && cur != nil; i++ {
		if cur.Version&topBits == topBits && cur.Version&(1<<uint(bit)) != 0 {
			count++
		}
		if cur.Height == 0 {
			break
		}
		parent, ok := c.db.EntryByHash(cur.PrevHash)
		if !ok {
			break
		}
		cur = parent
	}
	return count
}

// computeVersionCached wraps computeBlockVersion in its own commit so newly
// discovered StateCache entries persist even outside of a block-connect
// batch (e.g. while deciding whether to accept a reorg competitor). A crash
// between this commit and the caller's own work only costs a recomputation
// on next access, never a correctness violation, since deployment state is
// a pure function of chain history.
func (c *Chain) computeVersionCached(prev *chainutil.Entry) (uint32, error) {
	batch, err := c.db.Start()
	if err != nil {
		return 0, err
	}
	version, err := c.computeBlockVersion(batch, prev)
	if err != nil {
		_ = batch.Drop()
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// computeBlockVersion ORs 1<<bit for every deployment currently STARTED or
// LOCKED_IN into topBits (spec.md §4.4).
func (c *Chain) computeBlockVersion(batch *chaindb.Batch, prev *chainutil.Entry) (uint32, error) {
	version := topBits
	period := c.params.MinerConfirmationWindow
	if period == 0 {
		return version, nil
	}
	windowEndHeight := ((prev.Height + 1) / period) * period
	if windowEndHeight == 0 {
		return version, nil
	}
	windowEndHeight--
	windowEnd, ok := chainutil.GetAncestor(c.db, prev, windowEndHeight)
	if !ok {
		return version, nil
	}
	for _, dep := range c.params.Deployments {
		state, err := c.deploymentStateAt(batch, dep, windowEnd)
		if err != nil {
			return 0, err
		}
		if state == chaindb.StateStarted || state == chaindb.StateLockedIn {
			version |= 1 << uint(dep.Bit)
		}
	}
	return version, nil
}
