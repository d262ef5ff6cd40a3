package servercli

import (
	"path/filepath"
	"testing"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/database"
	"github.com/hdt3213/pdis/lib/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectOverrides(t *testing.T) {
	require.NoError(t, rootCmd.ParseFlags([]string{"--port", "7000", "--engine", "bolt", "-c", "x.conf"}))
	overrides := collectOverrides(rootCmd)
	assert.Equal(t, map[string]any{"port": 7000, "engine": "bolt"}, overrides)
	assert.Equal(t, "x.conf", configFile)
}

func TestImportRDB(t *testing.T) {
	src, err := database.MakeMemoryDB()
	require.NoError(t, err)
	defer src.Close()
	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"c", ""}} {
		require.NoError(t, src.PutValue([]byte(kv[0]), database.MakeValue([]byte(kv[1]))))
	}
	dump := filepath.Join(t.TempDir(), "dump.rdb")
	require.NoError(t, src.SaveRDB(dump))

	for _, engine := range []string{"badger", "bolt"} {
		t.Run(engine, func(t *testing.T) {
			props := config.Default()
			props.Dir = t.TempDir()
			props.Engine = engine
			loaded, skipped, err := ImportRDB(props, dump)
			require.NoError(t, err)
			assert.Equal(t, 3, loaded)
			assert.Equal(t, 0, skipped)

			db, err := database.OpenDB(props)
			require.NoError(t, err)
			defer db.Close()
			n, err := db.Len()
			require.NoError(t, err)
			assert.EqualValues(t, 3, n)
			v, err := db.GetValue([]byte("b"))
			require.NoError(t, err)
			assert.True(t, utils.BytesEquals([]byte("2"), v.Bytes()))
		})
	}
}
