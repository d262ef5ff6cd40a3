// Package storage defines the persistent key/value engine behind the keyspace
// and provides badger and bolt implementations of it.
package storage

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// Engine is a flat, ordered, durable byte-string map.
// Implementations are not required to be safe for concurrent writers.
type Engine interface {
	// Get returns ErrKeyNotFound for a missing key
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	// Delete reports whether the key existed
	Delete(key []byte) (bool, error)
	Exists(key []byte) (bool, error)
	// ForEach visits every pair in ascending key order until fn returns false.
	// key and value are only valid during the call.
	ForEach(fn func(key, value []byte) bool) error
	// ForEachKey is ForEach without loading values
	ForEachKey(fn func(key []byte) bool) error
	// Count returns the number of keys
	Count() (int64, error)
	// Flush removes every key
	Flush() error
	Close() error
}

// Sizer is implemented by engines able to report their on-disk footprint
type Sizer interface {
	// Size returns the LSM tree and value log sizes in bytes
	Size() (lsm, vlog int64)
}

// Engine names accepted by Open
const (
	BadgerName = "badger"
	BoltName   = "bolt"
)

// Options configures Open
type Options struct {
	// Engine is BadgerName or BoltName, empty means badger
	Engine string
	Dir    string
	// InMemory keeps badger data off disk, Dir is ignored
	InMemory   bool
	SyncWrites bool
	// GCInterval is the period of badger value log GC, zero disables it
	GCInterval time.Duration
}

// Open creates the engine named by opts.Engine
func Open(opts Options) (Engine, error) {
	switch opts.Engine {
	case "", BadgerName:
		return NewBadgerEngine(opts)
	case BoltName:
		return NewBoltEngine(opts)
	}
	return nil, fmt.Errorf("unknown storage engine %q", opts.Engine)
}
