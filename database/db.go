package database

import (
	"time"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/lib/wildcard"
	"github.com/hdt3213/pdis/storage"
)

// keys of the string keyspace live under this prefix in the engine,
// which also lets the engine hold the empty key
const stringPrefix byte = 's'

// DB is the keyspace on top of a storage engine.
// It is not safe for concurrent use, the Worker is its only user at runtime.
type DB struct {
	engine storage.Engine

	startedAt time.Time
	// writes since the last SAVE
	dirty    int64
	lastSave time.Time
}

// MakeDB wraps an opened engine
func MakeDB(engine storage.Engine) *DB {
	now := time.Now()
	return &DB{
		engine:    engine,
		startedAt: now,
		lastSave:  now,
	}
}

// OpenDB opens the engine described by props
func OpenDB(props *config.ServerProperties) (*DB, error) {
	engine, err := storage.Open(storage.Options{
		Engine:     props.Engine,
		Dir:        props.EngineDir(),
		SyncWrites: props.SyncWrites,
		GCInterval: props.GCInterval,
	})
	if err != nil {
		return nil, err
	}
	return MakeDB(engine), nil
}

// MakeMemoryDB creates a DB over an in-memory badger instance, for tests and tooling
func MakeMemoryDB() (*DB, error) {
	engine, err := storage.Open(storage.Options{Engine: storage.BadgerName, InMemory: true})
	if err != nil {
		return nil, err
	}
	return MakeDB(engine), nil
}

func encodeKey(key []byte) []byte {
	buf := make([]byte, len(key)+1)
	buf[0] = stringPrefix
	copy(buf[1:], key)
	return buf
}

// decodeKey returns false for engine keys outside the string keyspace
func decodeKey(raw []byte) ([]byte, bool) {
	if len(raw) == 0 || raw[0] != stringPrefix {
		return nil, false
	}
	return raw[1:], true
}

/* ---- Data Access ----- */

// GetValue returns the value bound to key, Absent if there is none
func (db *DB) GetValue(key []byte) (Value, error) {
	raw, err := db.engine.Get(encodeKey(key))
	if err == storage.ErrKeyNotFound {
		return Absent, nil
	}
	if err != nil {
		return Absent, err
	}
	return MakeValue(raw), nil
}

// PutValue binds key to v
func (db *DB) PutValue(key []byte, v Value) error {
	if err := db.engine.Put(encodeKey(key), v.Bytes()); err != nil {
		return err
	}
	db.dirty++
	return nil
}

// PutIfExists edit an existing value, and reports whether it did
func (db *DB) PutIfExists(key []byte, v Value) (bool, error) {
	exists, err := db.Exists(key)
	if err != nil || !exists {
		return false, err
	}
	return true, db.PutValue(key, v)
}

// PutIfAbsent insert a value only if the key does not exist
func (db *DB) PutIfAbsent(key []byte, v Value) (bool, error) {
	exists, err := db.Exists(key)
	if err != nil || exists {
		return false, err
	}
	return true, db.PutValue(key, v)
}

// Remove the given key from db, reports whether it existed
func (db *DB) Remove(key []byte) (bool, error) {
	existed, err := db.engine.Delete(encodeKey(key))
	if err != nil {
		return false, err
	}
	if existed {
		db.dirty++
	}
	return existed, nil
}

// Removes the given keys from db, returns the number of keys which existed
func (db *DB) Removes(keys ...[]byte) (int, error) {
	deleted := 0
	for _, key := range keys {
		existed, err := db.Remove(key)
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

// Exists tells whether key is bound
func (db *DB) Exists(key []byte) (bool, error) {
	return db.engine.Exists(encodeKey(key))
}

// Len returns the number of keys
func (db *DB) Len() (int64, error) {
	return db.engine.Count()
}

// Flush clean database
func (db *DB) Flush() error {
	if err := db.engine.Flush(); err != nil {
		return err
	}
	db.dirty++
	return nil
}

// ForEach visits every key and value in key order until fn returns false.
// The slices are only valid during the call.
func (db *DB) ForEach(fn func(key []byte, v Value) bool) error {
	return db.engine.ForEach(func(raw, value []byte) bool {
		key, ok := decodeKey(raw)
		if !ok {
			return true
		}
		return fn(key, MakeValue(value))
	})
}

// forEachKey visits keys of the string keyspace in order
func (db *DB) forEachKey(fn func(key []byte) bool) error {
	return db.engine.ForEachKey(func(raw []byte) bool {
		key, ok := decodeKey(raw)
		if !ok {
			return true
		}
		return fn(key)
	})
}

// Keys returns every key matching pattern, in key order
func (db *DB) Keys(pattern []byte) ([][]byte, error) {
	p := wildcard.CompilePattern(string(pattern))
	result := make([][]byte, 0)
	err := db.forEachKey(func(key []byte) bool {
		if p.IsMatchBytes(key) {
			result = append(result, append([]byte(nil), key...))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Scan skips the first cursor keys in key order, then collects up to count keys matching pattern.
// If the page fills up, next is the position right after the last collected key.
// Otherwise the iteration ran out and next is the number of keys visited, which is the key count.
func (db *DB) Scan(cursor int64, pattern []byte, count int64) (next int64, keys [][]byte, err error) {
	p := wildcard.CompilePattern(string(pattern))
	keys = make([][]byte, 0)
	var pos int64
	err = db.forEachKey(func(key []byte) bool {
		pos++
		if pos <= cursor {
			return true
		}
		if p.IsMatchBytes(key) {
			keys = append(keys, append([]byte(nil), key...))
			if int64(len(keys)) >= count {
				return false
			}
		}
		return true
	})
	if err != nil {
		return 0, nil, err
	}
	return pos, keys, nil
}

// Close closes the underlying engine
func (db *DB) Close() error {
	return db.engine.Close()
}
