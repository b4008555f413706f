package chaindb

import (
	"ledgerd.dev/chain/primitives"

	bolt "go.etcd.io/bbolt"
)

// ThresholdState mirrors the BIP9 deployment states spec.md §4.4 defines.
type ThresholdState byte

const (
	StateDefined ThresholdState = iota
	StateStarted
	StateLockedIn
	StateActive
	StateFailed
)

func thresholdKey(bit uint8, hash primitives.Hash) []byte {
	k := make([]byte, 33)
	k[0] = bit
	copy(k[1:], hash[:])
	return k
}

// PutThresholdState stages a StateCache entry for (bit, windowEndHash),
// flushed atomically with the committing batch per spec.md §3.
func (b *Batch) PutThresholdState(bit uint8, windowEndHash primitives.Hash, s ThresholdState) error {
	return b.tx.Bucket(bucketThreshold).Put(thresholdKey(bit, windowEndHash), []byte{byte(s)})
}

// ThresholdState reads back a cached deployment state, if any.
func (d *DB) ThresholdState(bit uint8, windowEndHash primitives.Hash) (ThresholdState, bool, error) {
	var s ThresholdState
	found := false
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketThreshold).Get(thresholdKey(bit, windowEndHash))
		if v == nil {
			return nil
		}
		s, found = ThresholdState(v[0]), true
		return nil
	})
	return s, found, err
}

// InvalidateBit deletes every `v` entry for bit, used when a deployment's
// configured parameters differ from what is stored on disk (spec.md §4.1
// step 5: "cache invalidation").
func InvalidateBit(tx *bolt.Tx, bit uint8) error {
	c := tx.Bucket(bucketThreshold).Cursor()
	var toDelete [][]byte
	for k, _ := c.Seek([]byte{bit}); k != nil && k[0] == bit; k, _ = c.Next() {
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	for _, k := range toDelete {
		if err := tx.Bucket(bucketThreshold).Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Deployments reads the persisted deployment table (`V`).
func (d *DB) Deployments() ([]Deployment, error) {
	var out []Deployment
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDeployments).Get([]byte("table"))
		if v == nil {
			return nil
		}
		ds, err := decodeDeployments(v)
		if err != nil {
			return err
		}
		out = ds
		return nil
	})
	return out, err
}

// putDeployments writes the deployment table within an already-open tx,
// used both by the startup protocol and by Batch-level callers.
func putDeployments(tx *bolt.Tx, ds []Deployment) error {
	return tx.Bucket(bucketDeployments).Put([]byte("table"), encodeDeployments(ds))
}
