package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse(t *testing.T) {
	src := "# comment\n" +
		"bind 127.0.0.1\n" +
		"PORT 6399\n" +
		"sync-writes yes\n" +
		"dir \"/tmp/pdis\"\n"
	m, err := RedisConfParser().Unmarshal([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", m["bind"])
	assert.Equal(t, "6399", m["port"])
	assert.Equal(t, "true", m["sync-writes"])
	assert.Equal(t, "/tmp/pdis", m["dir"])

	_, err = RedisConfParser().Unmarshal([]byte("lonely\n"))
	assert.Error(t, err)
}

func TestLoadConfFile(t *testing.T) {
	path := writeFile(t, "redis.conf", "bind 127.0.0.1\nport 6399\nengine bolt\nsync-writes yes\ngc-interval 30s\n")
	p, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", p.Bind)
	assert.Equal(t, 6399, p.Port)
	assert.Equal(t, "bolt", p.Engine)
	assert.True(t, p.SyncWrites)
	assert.Equal(t, 30*time.Second, p.GCInterval)
	// untouched keys keep defaults
	assert.Equal(t, 1000, p.QueueSize)
	assert.Equal(t, "tcp", p.Transport)
	assert.NotEmpty(t, p.RunID)
	assert.Equal(t, path, p.CfPath)
	assert.Equal(t, "127.0.0.1:6399", p.Address())
}

func TestLoadYAMLAndOverrides(t *testing.T) {
	path := writeFile(t, "pdis.yaml", "port: 7000\ntransport: gnet\nqueue-size: 64\n")
	t.Setenv("PDIS_QUEUE_SIZE", "128")
	p, err := Load(path, map[string]any{"port": 7001})
	require.NoError(t, err)
	assert.Equal(t, 7001, p.Port)
	assert.Equal(t, "gnet", p.Transport)
	assert.Equal(t, 128, p.QueueSize)
}

func TestValidate(t *testing.T) {
	_, err := Load("", map[string]any{"engine": "rocksdb"})
	assert.Error(t, err)
	_, err = Load("", map[string]any{"queue-size": 0})
	assert.Error(t, err)
	_, err = Load("", map[string]any{"transport": "udp"})
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	p := Default()
	p.Dir = "/data"
	assert.Equal(t, filepath.Join("/data", "badger"), p.EngineDir())
	assert.Equal(t, filepath.Join("/data", "dump.rdb"), p.DumpPath())
}
