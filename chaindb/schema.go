// Package chaindb implements ChainDB (spec.md §4.1): the persistent,
// bbolt-backed store behind a single-byte key-prefix schema, one bucket per
// prefix, all mutation funneled through a single open batch at a time.
package chaindb

import bolt "go.etcd.io/bbolt"

// Bucket names mirror the spec's single-byte key prefixes one-to-one so the
// on-disk layout can be read back against §4.1's table directly.
var (
	bucketChainState  = []byte("R")
	bucketChainFlags  = []byte("O")
	bucketDeployments = []byte("V")
	bucketEntry       = []byte("e")
	bucketHeight      = []byte("h")
	bucketMainByHeight = []byte("H")
	bucketNext        = []byte("n")
	bucketTips        = []byte("p")
	bucketBlock       = []byte("b")
	bucketUndo        = []byte("u")
	bucketCoins       = []byte("c")
	bucketThreshold   = []byte("v")
	bucketTxMeta      = []byte("t")
	bucketAddrTx      = []byte("T")
	bucketAddrOutpoint = []byte("C")
)

var allBuckets = [][]byte{
	bucketChainState, bucketChainFlags, bucketDeployments,
	bucketEntry, bucketHeight, bucketMainByHeight, bucketNext, bucketTips,
	bucketBlock, bucketUndo, bucketCoins, bucketThreshold,
	bucketTxMeta, bucketAddrTx, bucketAddrOutpoint,
}

// SchemaVersion is the on-disk layout version checked at startup (spec.md
// §4.1 step 1). Bumped whenever a bucket layout changes incompatibly.
const SchemaVersion byte = 1

const schemaVersionKey = "schema_version"

func createBuckets(tx *bolt.Tx) error {
	for _, b := range allBuckets {
		if _, err := tx.CreateBucketIfNotExists(b); err != nil {
			return err
		}
	}
	return nil
}
