package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engines(t *testing.T) map[string]Engine {
	badgerEngine, err := Open(Options{Engine: BadgerName, InMemory: true})
	require.NoError(t, err)
	boltEngine, err := Open(Options{Engine: BoltName, Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = badgerEngine.Close()
		_ = boltEngine.Close()
	})
	return map[string]Engine{
		BadgerName: badgerEngine,
		BoltName:   boltEngine,
	}
}

func TestEngineBasics(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, err := e.Get([]byte("missing"))
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, e.Put([]byte("k"), []byte("v1")))
			require.NoError(t, e.Put([]byte("k"), []byte("v2")))
			v, err := e.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), v)

			ok, err := e.Exists([]byte("k"))
			require.NoError(t, err)
			assert.True(t, ok)

			existed, err := e.Delete([]byte("k"))
			require.NoError(t, err)
			assert.True(t, existed)
			existed, err = e.Delete([]byte("k"))
			require.NoError(t, err)
			assert.False(t, existed)

			ok, err = e.Exists([]byte("k"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEngineOrderedIteration(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"b", "a", "c:2", "c:10", "aa"} {
				require.NoError(t, e.Put([]byte(k), []byte("val-"+k)))
			}
			var keys []string
			require.NoError(t, e.ForEachKey(func(key []byte) bool {
				keys = append(keys, string(key))
				return true
			}))
			assert.Equal(t, []string{"a", "aa", "b", "c:10", "c:2"}, keys)

			var pairs []string
			require.NoError(t, e.ForEach(func(key, value []byte) bool {
				pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
				return len(pairs) < 2
			}))
			assert.Equal(t, []string{"a=val-a", "aa=val-aa"}, pairs)

			n, err := e.Count()
			require.NoError(t, err)
			assert.EqualValues(t, 5, n)

			require.NoError(t, e.Flush())
			n, err = e.Count()
			require.NoError(t, err)
			assert.EqualValues(t, 0, n)
		})
	}
}

func TestBoltReopen(t *testing.T) {
	dir := t.TempDir()
	e, err := NewBoltEngine(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, e.Put([]byte("durable"), []byte("yes")))
	require.NoError(t, e.Close())

	e, err = NewBoltEngine(Options{Dir: dir})
	require.NoError(t, err)
	defer e.Close()
	v, err := e.Get([]byte("durable"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), v)
}

func TestUnknownEngine(t *testing.T) {
	_, err := Open(Options{Engine: "rocks"})
	assert.Error(t, err)
}
