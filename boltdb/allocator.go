package boltdb

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/playlake/playlake"
)

var idsBucket = []byte("songplayIDs")

// Allocator is a playlake.IDAllocator backed by a bolt database. Unlike the
// default run-local allocator, ids handed out here are stable across runs:
// the same event identity (timestamp, session, item in session, user) always
// maps to the same id, so downstream consumers may treat songplay_id as a
// durable key. Ids are monotonic in first-seen order, not contiguous per
// run. Allocator is safe for concurrent use.
type Allocator struct {
	db *bolt.DB
}

// NewAllocator opens (creating if needed) the bolt database at filename.
func NewAllocator(filename string) (*Allocator, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(idsBucket)
		return errors.Wrap(err, "creating ids bucket")
	})
	if err != nil {
		return nil, err
	}
	return &Allocator{db: db}, nil
}

func eventKey(e playlake.LogEvent) []byte {
	return []byte(fmt.Sprintf("%d|%d|%d|%s", e.Timestamp, e.SessionID, e.ItemInSession, e.UserID))
}

// ID implements playlake.IDAllocator. It returns the id already mapped to
// the event's identity, or allocates the next one.
func (a *Allocator) ID(e playlake.LogEvent) (id uint64, err error) {
	key := eventKey(e)

	var found bool
	err = a.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(idsBucket).Get(key); len(v) == 8 {
			id = binary.BigEndian.Uint64(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "looking up id")
	}
	if found {
		return id, nil
	}

	err = a.db.Batch(func(tx *bolt.Tx) error {
		b := tx.Bucket(idsBucket)
		// Re-check under the write lock; another goroutine may have won.
		if v := b.Get(key); len(v) == 8 {
			id = binary.BigEndian.Uint64(v)
			return nil
		}
		seq, err := b.NextSequence()
		if err != nil {
			return errors.Wrap(err, "getting next sequence")
		}
		id = seq - 1
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, id)
		return errors.Wrap(b.Put(key, val), "inserting into ids bucket")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Close syncs and closes the underlying database.
func (a *Allocator) Close() error {
	err := a.db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return a.db.Close()
}
