package chainutil

// medianTimeSpan is the number of ancestor timestamps averaged into the
// median-time-past rule (spec.md §4.2), matching Bitcoin's consensus
// constant.
const medianTimeSpan = 11

// ChainDBView is the narrow read accessor chainutil needs from the backing
// store to walk ancestors and resolve main-chain membership. Declared here
// rather than depending on chaindb directly, so chaindb (which imports
// chainutil for the Entry type) does not form an import cycle; chaindb's
// concrete type satisfies this interface structurally.
type ChainDBView interface {
	// EntryByHash returns the ChainEntry for hash, or ok=false if unknown.
	EntryByHash(hash [32]byte) (*Entry, bool)
	// EntryAtHeight returns the main-chain ChainEntry at height, or ok=false
	// if height exceeds the current tip or the chain is shorter.
	EntryAtHeight(height uint32) (*Entry, bool)
}

// GetAncestor walks prevHash pointers from e back to height. It first tries
// the O(1) main-chain index (EntryAtHeight) and falls back to a linear walk
// for side-chain entries not indexed by height.
func GetAncestor(db ChainDBView, e *Entry, height uint32) (*Entry, bool) {
	if e == nil || height > e.Height {
		return nil, false
	}
	if cur, ok := db.EntryAtHeight(e.Height); ok && cur.Hash == e.Hash {
		return db.EntryAtHeight(height)
	}
	cur := e
	for cur.Height > height {
		parent, ok := db.EntryByHash(cur.PrevHash)
		if !ok {
			return nil, false
		}
		cur = parent
	}
	return cur, true
}

// GetMedianTime computes the median of the timestamps of e and its
// medianTimeSpan-1 direct ancestors (spec.md §4.2's MTP rule), used to
// enforce monotonic block timestamps independent of any single miner's
// clock.
func GetMedianTime(db ChainDBView, e *Entry) uint32 {
	var times []uint32
	cur := e
	for i := 0; i < medianTimeSpan && cur != nil; i++ {
		times = append(times, cur.Timestamp)
		if cur.Height == 0 {
			break
		}
		parent, ok := db.EntryByHash(cur.PrevHash)
		if !ok {
			break
		}
		cur = parent
	}
	insertionSort(times)
	return times[len(times)/2]
}

func insertionSort(a []uint32) {
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for j >= 0 && a[j] > v {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = v
	}
}

// IsMainChain reports whether e is currently part of the best chain, i.e.
// the entry indexed at its own height has the same hash.
func IsMainChain(db ChainDBView, e *Entry) bool {
	cur, ok := db.EntryAtHeight(e.Height)
	return ok && cur.Hash == e.Hash
}
