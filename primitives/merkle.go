package primitives

import "crypto/sha256"

// MerkleRoot folds txids into a single root by iterative pairwise
// double-SHA-256 hashing, the algorithm a host runs as its own block-body
// check before ever presenting a block to the Chain state machine (merkle
// root, size, and sigops baseline are a caller's concern, not Chain's).
//
// An unpaired trailing id at a level is carried forward unchanged rather
// than duplicated: the classic duplicate-last-leaf rule lets two
// differently-shaped transaction lists hash to the same root
// (CVE-2012-2459), and carry-forward closes that without complicating the
// algorithm.
func MerkleRoot(txids []Hash) Hash {
	if len(txids) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(txids))
	copy(level, txids)

	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); {
			if i == len(level)-1 {
				next = append(next, level[i])
				i++
				continue
			}
			var pair [2 * HashSize]byte
			copy(pair[:HashSize], level[i][:])
			copy(pair[HashSize:], level[i+1][:])
			first := sha256.Sum256(pair[:])
			second := sha256.Sum256(first[:])
			next = append(next, Hash(second))
			i += 2
		}
		level = next
	}
	return level[0]
}
