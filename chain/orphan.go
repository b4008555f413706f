package chain

import (
	"time"

	"ledgerd.dev/chain/primitives"
)

// Orphan is a block buffered because its parent is unknown (spec.md §3):
// {block, originatingPeerId, arrivalTime, verifyFlags}. Owned by Chain, not
// persisted.
type Orphan struct {
	Block      *Block
	PeerID     string
	ArrivalSec int64
	Flags      VerifyFlags
}

// orphanPool is the plain map-plus-reverse-index structure spec.md §4.3
// describes, modeled on the teacher's dependency-free map style (no
// container library imported anywhere in node/store).
type orphanPool struct {
	byHash map[primitives.Hash]*Orphan
	byPrev map[primitives.Hash]primitives.Hash // prev -> hash of the orphan waiting on it

	maxOrphans int
	expirySec  int64
}

func newOrphanPool(maxOrphans int, expirySec int64) *orphanPool {
	return &orphanPool{
		byHash:     make(map[primitives.Hash]*Orphan),
		byPrev:     make(map[primitives.Hash]primitives.Hash),
		maxOrphans: maxOrphans,
		expirySec:  expirySec,
	}
}

// add stores o, replacing any earlier orphan that shares the same prev
// (spec.md §4.3 "Forked orphans (same prev, different hash) replace the
// earlier one").
func (p *orphanPool) add(o *Orphan) {
	hash := o.Block.Hash()
	if oldHash, ok := p.byPrev[o.Block.Header.PrevHash]; ok {
		delete(p.byHash, oldHash)
	}
	p.byHash[hash] = o
	p.byPrev[o.Block.Header.PrevHash] = hash
	p.evict()
}

func (p *orphanPool) get(prev primitives.Hash) (*Orphan, bool) {
	hash, ok := p.byPrev[prev]
	if !ok {
		return nil, false
	}
	o, ok := p.byHash[hash]
	return o, ok
}

func (p *orphanPool) remove(hash primitives.Hash) {
	o, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if p.byPrev[o.Block.Header.PrevHash] == hash {
		delete(p.byPrev, o.Block.Header.PrevHash)
	}
}

func (p *orphanPool) has(hash primitives.Hash) bool {
	_, ok := p.byHash[hash]
	return ok
}

// purge drops every orphan, used on checkpoint mismatch or reset (spec.md
// §4.3).
func (p *orphanPool) purge() {
	p.byHash = make(map[primitives.Hash]*Orphan)
	p.byPrev = make(map[primitives.Hash]primitives.Hash)
}

// evict drops entries older than expirySec, then trims down to maxOrphans
// by removing the oldest remaining entries (spec.md §4.3 "Eviction").
func (p *orphanPool) evict() {
	now := time.Now().Unix()
	for hash, o := range p.byHash {
		if now-o.ArrivalSec > p.expirySec {
			p.remove(hash)
		}
	}
	for len(p.byHash) > p.maxOrphans {
		var oldestHash primitives.Hash
		var oldestTime int64 = 1<<63 - 1
		for hash, o := range p.byHash {
			if o.ArrivalSec < oldestTime {
				oldestTime = o.ArrivalSec
				oldestHash = hash
			}
		}
		p.remove(oldestHash)
	}
}
