package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/hdt3213/pdis/lib/logger"
)

const boltFileName = "pdis.bolt"

var keyspaceBucket = []byte("keyspace")

// BoltEngine implements Engine with a single bolt bucket
type BoltEngine struct {
	db *bolt.DB
}

// NewBoltEngine opens (or creates) opts.Dir/pdis.bolt
func NewBoltEngine(opts Options) (*BoltEngine, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("bolt: dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("bolt: create dir: %w", err)
	}
	path := filepath.Join(opts.Dir, boltFileName)
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}
	db.NoSync = !opts.SyncWrites
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(keyspaceBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}
	logger.Infof("bolt engine started, file: %s", path)
	return &BoltEngine{db: db}, nil
}

// Get retrieves a value by key.
func (e *BoltEngine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(keyspaceBucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		value = append(make([]byte, 0, len(v)), v...)
		return nil
	})
	if err != nil {
		return nil, e.wrap(err)
	}
	return value, nil
}

// Put stores a key-value pair.
func (e *BoltEngine) Put(key, value []byte) error {
	return e.wrap(e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keyspaceBucket).Put(key, value)
	}))
}

// Delete removes a key.
func (e *BoltEngine) Delete(key []byte) (bool, error) {
	existed := false
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(keyspaceBucket)
		if b.Get(key) == nil {
			return nil
		}
		existed = true
		return b.Delete(key)
	})
	return existed, e.wrap(err)
}

// Exists tells whether the key is stored
func (e *BoltEngine) Exists(key []byte) (bool, error) {
	found := false
	err := e.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(keyspaceBucket).Get(key) != nil
		return nil
	})
	return found, e.wrap(err)
}

// ForEach visits pairs in key order
func (e *BoltEngine) ForEach(fn func(key, value []byte) bool) error {
	return e.wrap(e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(keyspaceBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !fn(k, v) {
				break
			}
		}
		return nil
	}))
}

// ForEachKey visits keys in order
func (e *BoltEngine) ForEachKey(fn func(key []byte) bool) error {
	return e.ForEach(func(key, _ []byte) bool {
		return fn(key)
	})
}

// Count reads the bucket statistics
func (e *BoltEngine) Count() (int64, error) {
	var n int64
	err := e.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(keyspaceBucket).Stats().KeyN)
		return nil
	})
	return n, e.wrap(err)
}

// Flush recreates the bucket
func (e *BoltEngine) Flush() error {
	return e.wrap(e.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(keyspaceBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(keyspaceBucket)
		return err
	}))
}

// Close closes the bolt file
func (e *BoltEngine) Close() error {
	return e.db.Close()
}

func (e *BoltEngine) wrap(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

var (
	_ Engine = (*BadgerEngine)(nil)
	_ Engine = (*BoltEngine)(nil)
)
