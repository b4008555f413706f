package chain

import (
	"math/big"
	"testing"

	"ledgerd.dev/chain/chaindb"
	"ledgerd.dev/chain/chainutil"
)

// buildDeploymentWindow appends one confirmation-window's worth of synthetic
// entries, stepping the timestamp by a fixed per-block spacing and ORing
// dep.Bit into the version field of every block for which signal(index) is
// true. spacing is held constant across an entire test's chain so the
// median-time-past at any window boundary is a predictable function of
// height alone.
func buildDeploymentWindow(t *testing.T, c *Chain, window uint32, spacing uint32, bit uint8, signal func(i int) bool) *chainutil.Entry {
	t.Helper()
	cur := c.Tip()
	for i := 0; i < int(window); i++ {
		version := topBits
		if signal(i) {
			version |= 1 << uint(bit)
		}
		next := &chainutil.Entry{
			PrevHash:  cur.Hash,
			Height:    cur.Height + 1,
			Timestamp: cur.Timestamp + spacing,
			Bits:      easyBits,
			Version:   version,
			Chainwork: new(big.Int).Add(cur.Chainwork, big.NewInt(1)),
		}
		next.Hash = next.ComputeHash()
		putSyntheticEntry(t, c, next)
		cur = next
	}
	return cur
}

func TestDeploymentStateMachineProgression(t *testing.T) {
	const (
		window    = 4
		threshold = 3
		bit       = 0
		spacing   = 200_000
	)
	base := uint32(1_600_000_000)
	// Window 1's MTP (median of heights 0-4) lands on height 2's timestamp;
	// window 2's MTP (median of heights 0-8) lands on height 4's. Setting
	// startTime strictly between the two means window 1 stays DEFINED and
	// window 2 is the one that crosses into STARTED.
	startTime := base + 3*spacing
	timeout := startTime + 100_000_000

	params := testParams()
	params.GenesisHeader.Timestamp = base
	params.MinerConfirmationWindow = window
	params.RuleChangeActivationThreshold = threshold
	params.Deployments = []chaindb.Deployment{{Bit: bit, StartTime: startTime, Timeout: timeout}}
	c, _ := openTestChain(t, params)
	dep := params.Deployments[0]

	// Window 1 (heights 1-4): MTP still below startTime, deployment stays
	// DEFINED.
	w1 := buildDeploymentWindow(t, c, window, spacing, bit, func(i int) bool { return false })
	state, err := c.deploymentStateAt(nil, dep, w1)
	if err != nil {
		t.Fatalf("deploymentStateAt w1: %v", err)
	}
	if state != chaindb.StateDefined {
		t.Fatalf("expected StateDefined after window 1, got %v", state)
	}

	// Window 2 (heights 5-8): MTP now at/above startTime, DEFINED -> STARTED.
	w2 := buildDeploymentWindow(t, c, window, spacing, bit, func(i int) bool { return false })
	state, err = c.deploymentStateAt(nil, dep, w2)
	if err != nil {
		t.Fatalf("deploymentStateAt w2: %v", err)
	}
	if state != chaindb.StateStarted {
		t.Fatalf("expected StateStarted after window 2, got %v", state)
	}

	// Window 3 (heights 9-12): 3 of 4 blocks signal the bit, meeting the
	// threshold, STARTED -> LOCKED_IN.
	w3 := buildDeploymentWindow(t, c, window, spacing, bit, func(i int) bool { return i < 3 })
	state, err = c.deploymentStateAt(nil, dep, w3)
	if err != nil {
		t.Fatalf("deploymentStateAt w3: %v", err)
	}
	if state != chaindb.StateLockedIn {
		t.Fatalf("expected StateLockedIn after window 3, got %v", state)
	}

	// Window 4 (heights 13-16): LOCKED_IN always advances to ACTIVE
	// regardless of this window's own signaling.
	w4 := buildDeploymentWindow(t, c, window, spacing, bit, func(i int) bool { return false })
	state, err = c.deploymentStateAt(nil, dep, w4)
	if err != nil {
		t.Fatalf("deploymentStateAt w4: %v", err)
	}
	if state != chaindb.StateActive {
		t.Fatalf("expected StateActive after window 4, got %v", state)
	}
}

func TestDeploymentStateMachineBelowThresholdStaysStarted(t *testing.T) {
	const (
		window    = 4
		threshold = 3
		bit       = 1
		spacing   = 200_000
	)
	base := uint32(1_600_000_000)
	startTime := base + 3*spacing
	timeout := startTime + 100_000_000

	params := testParams()
	params.GenesisHeader.Timestamp = base
	params.MinerConfirmationWindow = window
	params.RuleChangeActivationThreshold = threshold
	params.Deployments = []chaindb.Deployment{{Bit: bit, StartTime: startTime, Timeout: timeout}}
	c, _ := openTestChain(t, params)
	dep := params.Deployments[0]

	buildDeploymentWindow(t, c, window, spacing, bit, func(i int) bool { return false })
	// Window 2 reaches STARTED exactly as in the progression test above.
	// Only 2 of the next window's 4 blocks signal, below the threshold of 3,
	// so the deployment remains STARTED rather than locking in.
	w2 := buildDeploymentWindow(t, c, window, spacing, bit, func(i int) bool { return false })
	state, err := c.deploymentStateAt(nil, dep, w2)
	if err != nil {
		t.Fatalf("deploymentStateAt w2: %v", err)
	}
	if state != chaindb.StateStarted {
		t.Fatalf("expected StateStarted after window 2: %v", state)
	}

	w3 := buildDeploymentWindow(t, c, window, spacing, bit, func(i int) bool { return i < 2 })
	state, err = c.deploymentStateAt(nil, dep, w3)
	if err != nil {
		t.Fatalf("deploymentStateAt w3: %v", err)
	}
	if state != chaindb.StateStarted {
		t.Fatalf("expected StateStarted to persist below threshold, got %v", state)
	}
}
