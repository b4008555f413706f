package chaindb

import (
	"encoding/binary"
	"fmt"

	"ledgerd.dev/chain/primitives"

	bolt "go.etcd.io/bbolt"
)

// TxMeta is the payload of the optional transaction index (spec.md §3
// "txIndex: txid -> {raw-tx, containing-block, height, index}").
type TxMeta struct {
	Raw    []byte
	Block  primitives.Hash
	Height uint32
	Index  uint32
}

func encodeTxMeta(m TxMeta) []byte {
	b := make([]byte, 32+4+4+4+len(m.Raw))
	copy(b[0:32], m.Block[:])
	binary.LittleEndian.PutUint32(b[32:36], m.Height)
	binary.LittleEndian.PutUint32(b[36:40], m.Index)
	binary.LittleEndian.PutUint32(b[40:44], uint32(len(m.Raw)))
	copy(b[44:], m.Raw)
	return b
}

func decodeTxMeta(b []byte) (TxMeta, error) {
	if len(b) < 44 {
		return TxMeta{}, fmt.Errorf("chaindb: txmeta: truncated")
	}
	var m TxMeta
	copy(m.Block[:], b[0:32])
	m.Height = binary.LittleEndian.Uint32(b[32:36])
	m.Index = binary.LittleEndian.Uint32(b[36:40])
	rawLen := binary.LittleEndian.Uint32(b[40:44])
	if int(44+rawLen) != len(b) {
		return TxMeta{}, fmt.Errorf("chaindb: txmeta: raw length mismatch")
	}
	m.Raw = append([]byte(nil), b[44:]...)
	return m, nil
}

// PutTxIndex writes the `t(tx-hash) -> TxMeta` record (spec.md §4.1
// "index via t, T, C as flags allow"). Only called when indexTx is enabled.
func (b *Batch) PutTxIndex(txHash primitives.Hash, m TxMeta) error {
	return b.tx.Bucket(bucketTxMeta).Put(txHash[:], encodeTxMeta(m))
}

// DeleteTxIndex removes the `t` record for txHash, used on disconnect.
func (b *Batch) DeleteTxIndex(txHash primitives.Hash) error {
	return b.tx.Bucket(bucketTxMeta).Delete(txHash[:])
}

// TxMetaByHash looks up the transaction index record for txHash.
func (d *DB) TxMetaByHash(txHash primitives.Hash) (TxMeta, bool, error) {
	var out TxMeta
	found := false
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTxMeta).Get(txHash[:])
		if v == nil {
			return nil
		}
		m, err := decodeTxMeta(v)
		if err != nil {
			return err
		}
		out, found = m, true
		return nil
	})
	return out, found, err
}

func addrTxKey(addrHash, txHash primitives.Hash) []byte {
	k := make([]byte, 64)
	copy(k[0:32], addrHash[:])
	copy(k[32:64], txHash[:])
	return k
}

func addrOutpointKey(addrHash, txHash primitives.Hash, index uint32) []byte {
	k := make([]byte, 68)
	copy(k[0:32], addrHash[:])
	copy(k[32:64], txHash[:])
	binary.BigEndian.PutUint32(k[64:68], index) // big-endian per §4.1 numeric-key ordering rule
	return k
}

var indexDummy = []byte{0x00}

// PutAddrTx records that txHash touches addrHash (the `T` presence index).
func (b *Batch) PutAddrTx(addrHash, txHash primitives.Hash) error {
	return b.tx.Bucket(bucketAddrTx).Put(addrTxKey(addrHash, txHash), indexDummy)
}

// DeleteAddrTx removes a `T` presence marker, used on disconnect.
func (b *Batch) DeleteAddrTx(addrHash, txHash primitives.Hash) error {
	return b.tx.Bucket(bucketAddrTx).Delete(addrTxKey(addrHash, txHash))
}

// PutAddrOutpoint records an unspent outpoint owned by addrHash (the `C`
// address-to-outpoint-set index).
func (b *Batch) PutAddrOutpoint(addrHash, txHash primitives.Hash, index uint32) error {
	return b.tx.Bucket(bucketAddrOutpoint).Put(addrOutpointKey(addrHash, txHash, index), indexDummy)
}

// DeleteAddrOutpoint removes a `C` entry when the outpoint is spent.
func (b *Batch) DeleteAddrOutpoint(addrHash, txHash primitives.Hash, index uint32) error {
	return b.tx.Bucket(bucketAddrOutpoint).Delete(addrOutpointKey(addrHash, txHash, index))
}

// AddressHasTx reports whether addrHash's `T` presence marker exists for
// txHash.
func (d *DB) AddressHasTx(addrHash, txHash primitives.Hash) (bool, error) {
	found := false
	err := d.bdb.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketAddrTx).Get(addrTxKey(addrHash, txHash)) != nil
		return nil
	})
	return found, err
}

// AddressOutpoints returns every outpoint key recorded as currently unspent
// and owned by addrHash, via a lexicographic range scan over the `C`
// bucket's addrHash prefix.
func (d *DB) AddressOutpoints(addrHash primitives.Hash) ([][]byte, error) {
	var out [][]byte
	err := d.bdb.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAddrOutpoint).Cursor()
		prefix := addrHash[:]
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			out = append(out, append([]byte(nil), k...))
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}
