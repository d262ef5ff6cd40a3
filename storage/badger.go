package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/hdt3213/pdis/lib/logger"
)

const gcDiscardRatio = 0.5

// BadgerEngine implements Engine on top of badger's LSM tree
type BadgerEngine struct {
	db *badger.DB

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewBadgerEngine opens (or creates) a badger database in opts.Dir
func NewBadgerEngine(opts Options) (*BadgerEngine, error) {
	if opts.Dir == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = &badgerLogger{}
	bopts.SyncWrites = opts.SyncWrites

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}
	e := &BadgerEngine{
		db:     db,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if opts.GCInterval > 0 && !opts.InMemory {
		go e.gcLoop(opts.GCInterval)
	} else {
		close(e.doneCh)
	}
	logger.Infof("badger engine started, dir: %s, in-memory: %v", opts.Dir, opts.InMemory)
	return e, nil
}

// Get retrieves a value by key.
func (e *BadgerEngine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, e.wrap(err)
	}
	return value, nil
}

// Put stores a key-value pair.
func (e *BadgerEngine) Put(key, value []byte) error {
	return e.wrap(e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}))
}

// Delete removes a key.
func (e *BadgerEngine) Delete(key []byte) (bool, error) {
	existed := false
	err := e.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	return existed, e.wrap(err)
}

// Exists tells whether the key is stored
func (e *BadgerEngine) Exists(key []byte) (bool, error) {
	found := false
	err := e.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, e.wrap(err)
}

// ForEach visits pairs in key order
func (e *BadgerEngine) ForEach(fn func(key, value []byte) bool) error {
	return e.wrap(e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var goOn bool
			err := item.Value(func(val []byte) error {
				goOn = fn(item.Key(), val)
				return nil
			})
			if err != nil {
				return err
			}
			if !goOn {
				break
			}
		}
		return nil
	}))
}

// ForEachKey visits keys in order without loading values
func (e *BadgerEngine) ForEachKey(fn func(key []byte) bool) error {
	return e.wrap(e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Only need keys
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if !fn(it.Item().Key()) {
				break
			}
		}
		return nil
	}))
}

// Count walks the key index
func (e *BadgerEngine) Count() (int64, error) {
	var n int64
	err := e.ForEachKey(func(key []byte) bool {
		n++
		return true
	})
	return n, err
}

// Flush drops all data
func (e *BadgerEngine) Flush() error {
	return e.wrap(e.db.DropAll())
}

// Size returns the LSM and value log sizes in bytes
func (e *BadgerEngine) Size() (lsm, vlog int64) {
	return e.db.Size()
}

// Close stops the GC loop and closes the database
func (e *BadgerEngine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.stopCh)
		<-e.doneCh
		if cerr := e.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
		}
		logger.Info("badger engine shutdown complete")
	})
	return err
}

func (e *BadgerEngine) wrap(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// runGC rewrites value log files until badger reports nothing left to reclaim
func (e *BadgerEngine) runGC() error {
	for {
		err := e.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (e *BadgerEngine) gcLoop(interval time.Duration) {
	defer close(e.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := e.runGC(); err != nil {
				logger.Errorf("badger gc failed: %v", err)
			}
		case <-e.stopCh:
			return
		}
	}
}

// badgerLogger routes badger's log lines into the server log
type badgerLogger struct{}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Errorf("badger: "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warnf("badger: "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debugf("badger: "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debugf("badger: "+format, args...)
}
