// Package addrbook persists peer addresses learned through addr gossip.
// Entries are keyed by host:port and stored in their wire encoding, so the
// book survives restarts and can prime future discovery without re-probing
// the seed lists.
package addrbook

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/bittune/bittune/wire"
	"github.com/boltdb/bolt"
	"github.com/cevaris/ordered_map"
)

// addressesBucket is the bolt bucket holding one wire-encoded
// TimestampedNetAddress per host:port key.
var addressesBucket = []byte("addresses")

// AddrBook is a persistent address book.  Additions accumulate in an
// insertion-ordered pending queue and are written to the database in a single
// transaction on Flush.  For a given host:port the newest timestamp always
// wins, both within the pending queue and against the stored entry.
type AddrBook struct {
	mtx     sync.Mutex
	db      *bolt.DB
	pending *ordered_map.OrderedMap
}

// Open opens or creates the address book database at the given path.
func Open(dbPath string) (*AddrBook, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(addressesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &AddrBook{
		db:      db,
		pending: ordered_map.NewOrderedMap(),
	}, nil
}

// key returns the host:port lookup key for an address.
func key(na *wire.NetAddress) string {
	return na.TCPAddr().String()
}

// Add queues an address for persistence.  If the same host:port is already
// pending, the entry with the newest timestamp is kept.
//
// This function is safe for concurrent access.
func (ab *AddrBook) Add(tna *wire.TimestampedNetAddress) {
	ab.mtx.Lock()
	defer ab.mtx.Unlock()

	k := key(&tna.NetAddress)
	if existing, ok := ab.pending.Get(k); ok {
		if existing.(*wire.TimestampedNetAddress).Timestamp.After(tna.Timestamp) {
			return
		}
	}
	ab.pending.Set(k, tna)
}

// AddAll queues multiple addresses for persistence.
//
// This function is safe for concurrent access.
func (ab *AddrBook) AddAll(tnas []*wire.TimestampedNetAddress) {
	for _, tna := range tnas {
		ab.Add(tna)
	}
}

// PendingCount returns the number of addresses queued but not yet flushed.
//
// This function is safe for concurrent access.
func (ab *AddrBook) PendingCount() int {
	ab.mtx.Lock()
	defer ab.mtx.Unlock()

	return ab.pending.Len()
}

// storedTimestamp extracts the timestamp from a stored entry without decoding
// the whole address.  The timestamp is the leading u32 of the wire encoding.
func storedTimestamp(value []byte) time.Time {
	if len(value) < 4 {
		return time.Time{}
	}
	return time.Unix(int64(binary.LittleEndian.Uint32(value)), 0)
}

// Flush writes all pending addresses to the database in a single transaction,
// in the order they were added.  A stored entry is only overwritten when the
// pending one is at least as recent.
//
// This function is safe for concurrent access.
func (ab *AddrBook) Flush() error {
	ab.mtx.Lock()
	defer ab.mtx.Unlock()

	if ab.pending.Len() == 0 {
		return nil
	}

	err := ab.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(addressesBucket)

		iter := ab.pending.IterFunc()
		for kv, ok := iter(); ok; kv, ok = iter() {
			k := []byte(kv.Key.(string))
			tna := kv.Value.(*wire.TimestampedNetAddress)

			if stored := bucket.Get(k); stored != nil {
				if storedTimestamp(stored).After(tna.Timestamp) {
					continue
				}
			}

			var buf bytes.Buffer
			err := wire.WriteTimestampedNetAddress(&buf,
				wire.ProtocolVersion, tna)
			if err != nil {
				return err
			}
			if err := bucket.Put(k, buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debugf("Flushed %d addresses", ab.pending.Len())
	ab.pending = ordered_map.NewOrderedMap()
	return nil
}

// Addresses returns every stored address.  Pending additions are not included
// until they have been flushed.
//
// This function is safe for concurrent access.
func (ab *AddrBook) Addresses() ([]*wire.TimestampedNetAddress, error) {
	var addrs []*wire.TimestampedNetAddress
	err := ab.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(addressesBucket)
		return bucket.ForEach(func(k, v []byte) error {
			tna := &wire.TimestampedNetAddress{}
			err := wire.ReadTimestampedNetAddress(bytes.NewReader(v),
				wire.ProtocolVersion, tna)
			if err != nil {
				return fmt.Errorf("corrupt entry %q: %v",
					string(k), err)
			}
			addrs = append(addrs, tna)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// Count returns the number of stored addresses.
//
// This function is safe for concurrent access.
func (ab *AddrBook) Count() (int, error) {
	var count int
	err := ab.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(addressesBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close flushes any pending addresses and closes the underlying database.
func (ab *AddrBook) Close() error {
	if err := ab.Flush(); err != nil {
		return err
	}
	return ab.db.Close()
}
