package chaindb

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// NeedsGenesis reports whether Open found no ChainState record, meaning the
// caller (chain.New) must initialize the store via InitGenesis, and write
// the genesis entry itself, before any other ChainDB operation (spec.md
// §4.1 step 2).
func (d *DB) NeedsGenesis() bool {
	return d.needsGenesis
}

// InitGenesis performs the "no ChainState exists" branch of the startup
// protocol: write flags, deployments, and a ChainState pointing at the
// caller-supplied genesis hash, all in one batch.
func (d *DB) InitGenesis(genesisHash [32]byte, flags ChainFlags, deployments []Deployment) error {
	if !d.needsGenesis {
		return fmt.Errorf("chaindb: init genesis: chain already initialized")
	}
	batch, err := d.Start()
	if err != nil {
		return err
	}
	if err := batch.tx.Bucket(bucketChainFlags).Put([]byte("flags"), encodeChainFlags(flags)); err != nil {
		_ = batch.Drop()
		return err
	}
	if err := putDeployments(batch.tx, deployments); err != nil {
		_ = batch.Drop()
		return err
	}
	state := ChainState{Tip: genesisHash}
	if err := batch.tx.Bucket(bucketChainState).Put(chainStateKey, encodeChainState(state)); err != nil {
		_ = batch.Drop()
		return err
	}
	if err := batch.SetTip([32]byte{}, genesisHash); err != nil {
		_ = batch.Drop()
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	d.needsGenesis = false
	return nil
}

// State returns the current ChainState record.
func (d *DB) State() (ChainState, error) {
	var s ChainState
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChainState).Get(chainStateKey)
		if v == nil {
			return fmt.Errorf("chaindb: state: uninitialized")
		}
		got, err := decodeChainState(v)
		if err != nil {
			return err
		}
		s = got
		return nil
	})
	return s, err
}

// SetState commits a new ChainState record as the final step of a batch
// (spec.md §4.1 "commit new ChainState to the block's hash").
func (b *Batch) SetState(s ChainState) error {
	return b.tx.Bucket(bucketChainState).Put(chainStateKey, encodeChainState(s))
}

// Flags returns the persisted ChainFlags record.
func (d *DB) Flags() (ChainFlags, error) {
	var f ChainFlags
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChainFlags).Get([]byte("flags"))
		if v == nil {
			return fmt.Errorf("chaindb: flags: uninitialized")
		}
		got, err := decodeChainFlags(v)
		if err != nil {
			return err
		}
		f = got
		return nil
	})
	return f, err
}

// runStartupProtocol implements spec.md §4.1 steps 1-4: schema version
// check, genesis-needed detection, flag-upgrade-policy enforcement, and
// retroactive prune sweep. Deployment-cache invalidation (step 5) is
// ReconcileDeployments, which chain.New calls after Open.
func (d *DB) runStartupProtocol() error {
	var storedVersion byte
	haveVersion := false
	var haveState bool
	err := d.bdb.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketChainState).Get([]byte(schemaVersionKey)); v != nil {
			storedVersion = v[0]
			haveVersion = true
		}
		haveState = tx.Bucket(bucketChainState).Get(chainStateKey) != nil
		return nil
	})
	if err != nil {
		return err
	}

	if haveVersion && storedVersion > SchemaVersion {
		return fmt.Errorf("chaindb: schema version %d newer than supported %d", storedVersion, SchemaVersion)
	}
	if !haveVersion {
		if err := d.bdb.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketChainState).Put([]byte(schemaVersionKey), []byte{SchemaVersion})
		}); err != nil {
			return err
		}
	}

	if !haveState {
		d.needsGenesis = true
		return nil
	}

	stored, err := d.Flags()
	if err != nil {
		return fmt.Errorf("chaindb: startup: read flags: %w", err)
	}
	if err := enforceFlagUpgradePolicy(stored, d.cfg); err != nil {
		return err
	}

	if d.cfg.Flags.Prune && !stored.Prune {
		if !d.cfg.ForcePrune {
			return fmt.Errorf("chaindb: retroactive prune requires ForcePrune")
		}
		if err := d.retroactivePruneSweep(); err != nil {
			return fmt.Errorf("chaindb: retroactive prune: %w", err)
		}
	}

	if err := d.persistReconciledFlags(stored); err != nil {
		return err
	}
	return nil
}

// enforceFlagUpgradePolicy applies spec.md §4.1 step 4: spv, indexTx and
// indexAddress cannot change at all (there is no force* opt-in for them);
// prune may be enabled but never disabled (the caller then requires
// ForcePrune); witness may always be retroactively enabled.
func enforceFlagUpgradePolicy(stored ChainFlags, cfg Config) error {
	cfgFlags := cfg.Flags
	if cfgFlags.SPV != stored.SPV {
		return fmt.Errorf("chaindb: spv flag cannot change (stored=%v configured=%v)", stored.SPV, cfgFlags.SPV)
	}
	if cfgFlags.IndexTx != stored.IndexTx {
		return fmt.Errorf("chaindb: indexTx flag cannot change")
	}
	if cfgFlags.IndexAddress != stored.IndexAddress {
		return fmt.Errorf("chaindb: indexAddress flag cannot change")
	}
	if cfgFlags.Prune != stored.Prune && !cfgFlags.Prune {
		return fmt.Errorf("chaindb: cannot disable prune once enabled")
	}
	if cfgFlags.Witness && !stored.Witness && !cfg.ForceWitness {
		// Witness may be retroactively enabled per spec.md §4.1 step 4 without
		// a force flag; ForceWitness exists only for symmetry with the other
		// force* knobs and is accepted but not required here.
		return nil
	}
	return nil
}

// persistReconciledFlags writes back the flags the configuration allows to
// change (witness, prune once force-enabled) so the stored record reflects
// reality going forward.
func (d *DB) persistReconciledFlags(stored ChainFlags) error {
	next := stored
	if d.cfg.Flags.Witness {
		next.Witness = true
	}
	if d.cfg.Flags.Prune {
		next.Prune = true
	}
	if next == stored {
		return nil
	}
	return d.bdb.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChainFlags).Put([]byte("flags"), encodeChainFlags(next))
	})
}

// ReconcileDeployments compares the configured deployment set against the
// on-disk table; for every bit whose startTime/timeout changed, it
// invalidates the cached StateCache entries for that bit (spec.md §4.1 step
// 5), then rewrites the table.
func (d *DB) ReconcileDeployments(configured []Deployment) error {
	onDisk, err := d.Deployments()
	if err != nil {
		return err
	}
	onDiskByBit := make(map[uint8]Deployment, len(onDisk))
	for _, dep := range onDisk {
		onDiskByBit[dep.Bit] = dep
	}

	return d.bdb.Update(func(tx *bolt.Tx) error {
		for _, dep := range configured {
			if prev, ok := onDiskByBit[dep.Bit]; !ok || prev != dep {
				if err := InvalidateBit(tx, dep.Bit); err != nil {
					return err
				}
			}
		}
		return putDeployments(tx, configured)
	})
}
