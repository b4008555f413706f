package chaindb

import (
	"fmt"

	"ledgerd.dev/chain/chainutil"
	"ledgerd.dev/chain/primitives"
)

// ScanIter receives each main-chain block in order starting from Scan's
// start hash. It is responsible for matching transactions against its own
// filter state and mutating that filter as outputs match (spec.md §4.1
// "Scan": "a caller-supplied Bloom filter is mutated as outputs match, to
// catch downstream spending inputs in the same scan") — chaindb has no
// notion of transaction wire format or filter implementation, so both
// matching and filter mutation are the iterator's responsibility.
type ScanIter func(entry *chainutil.Entry, rawBlock []byte) error

// Scan streams blocks forward from start (inclusive) along the main chain,
// following `n` forward pointers, until either iter returns an error or the
// current tip is reached.
func (d *DB) Scan(start primitives.Hash, iter ScanIter) error {
	entry, ok := d.EntryByHash(start)
	if !ok {
		return fmt.Errorf("chaindb: scan: start hash %s not found", start)
	}
	if !chainutil.IsMainChain(d, entry) {
		return fmt.Errorf("chaindb: scan: start hash %s is not on the main chain", start)
	}

	for {
		raw, _, err := d.Block(entry.Hash)
		if err != nil {
			return fmt.Errorf("chaindb: scan: read block %s: %w", entry.Hash, err)
		}
		if err := iter(entry, raw); err != nil {
			return err
		}
		next, ok := d.Next(entry.Hash)
		if !ok {
			return nil
		}
		entry, ok = d.EntryByHash(next)
		if !ok {
			return fmt.Errorf("chaindb: scan: next hash %s not found", next)
		}
	}
}
