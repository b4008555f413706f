package chain

import (
	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/coins"
	"ledgerd.dev/chain/primitives"
)

// EventKind identifies which of spec.md §6's subscriber events fired.
type EventKind int

const (
	EventTip EventKind = iota
	EventBlock
	EventConnect
	EventReconnect
	EventDisconnect
	EventReorganize
	EventCompetitor
	EventOrphan
	EventResolved
	EventBadOrphan
	EventCheckpoint
)

// Event is the single type carried to every subscriber; only the fields
// relevant to Kind are populated, matching the teacher's convention of one
// lean event envelope rather than per-kind payload types.
type Event struct {
	Kind EventKind

	Entry    *chainutil.Entry
	OldEntry *chainutil.Entry
	Block    *Block
	View     *coins.View
	PeerID   string
	Err      error
	Hash     primitives.Hash
	Height   uint32
}

// Subscriber receives events synchronously, in the chain lock's critical
// section per spec.md §5 ("After connect emits its tip event, the next
// observer is guaranteed to find the new ChainState persisted").
type Subscriber func(Event)

func (c *Chain) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Chain) emit(ev Event) {
	for _, sub := range c.subscribers {
		sub(ev)
	}
}
