package database

import (
	"testing"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/utils"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandFrames(t *testing.T) {
	cmd, err := ParseCommand(protocol.MakeMultiBulkReply(utils.ToCmdLine("get", "k")))
	require.NoError(t, err)
	assert.Equal(t, &Get{Key: []byte("k")}, cmd)

	frame := protocol.MakeArrayReply(
		protocol.MakeStatusReply("SET"),
		protocol.MakeBulkReply([]byte("k")),
		protocol.MakeBulkReply([]byte("v")),
	)
	cmd, err = ParseCommand(frame)
	require.NoError(t, err)
	assert.Equal(t, &Set{Key: []byte("k"), Value: []byte("v")}, cmd)

	badFrames := []redis.Reply{
		protocol.MakeIntReply(1),
		protocol.MakeBulkReply([]byte("GET")),
		protocol.MakeArrayReply(protocol.MakeBulkReply([]byte("GET")), protocol.MakeIntReply(1)),
		protocol.MakeMultiBulkReply([][]byte{[]byte("GET"), nil}),
	}
	for _, frame := range badFrames {
		_, err := ParseCommand(frame)
		assert.EqualError(t, err, "ERR Protocol error: expected array of bulk strings")
	}

	_, err = ParseCommand(protocol.MakeMultiBulkReply([][]byte{}))
	assert.EqualError(t, err, "ERR empty command")
}

func TestParseCmdLineTypes(t *testing.T) {
	cases := []struct {
		line     []string
		expected Command
	}{
		{[]string{"set", "k", "v", "nx", "ex", "10"}, &Set{Key: []byte("k"), Value: []byte("v"), Cond: setIfAbsent, TTL: 10000}},
		{[]string{"SET", "k", "v", "PX", "10", "XX"}, &Set{Key: []byte("k"), Value: []byte("v"), Cond: setIfExists, TTL: 10}},
		{[]string{"incr", "k"}, &IncrBy{Verb: "incr", Key: []byte("k"), Delta: 1}},
		{[]string{"decrby", "k", "7"}, &IncrBy{Verb: "decrby", Key: []byte("k"), Delta: -7}},
		{[]string{"mset", "a", "1", "b", "2"}, &MSet{Keys: [][]byte{[]byte("a"), []byte("b")}, Values: [][]byte{[]byte("1"), []byte("2")}}},
		{[]string{"scan", "3", "match", "k*"}, &Scan{Cursor: 3, Pattern: []byte("k*"), Count: defaultScanCount}},
		{[]string{"pttl", "k"}, &TTL{Key: []byte("k"), Millis: true}},
		{[]string{"info", "Server"}, &Info{Sections: []string{"server"}}},
		{[]string{"flushall"}, &Unknown{Cmd: "flushall"}},
	}
	for _, c := range cases {
		cmd, err := ParseCmdLine(utils.ToCmdLine(c.line...))
		require.NoError(t, err, c.line)
		assert.Equal(t, c.expected, cmd, c.line)
	}
}

func TestParseErrorsAreReplies(t *testing.T) {
	cases := map[string][]string{
		"ERR wrong number of arguments for 'get' command":    {"GET", "a", "b"},
		"ERR wrong number of arguments for 'incrby' command": {"INCRBY", "k"},
		"ERR value is not an integer or out of range":        {"INCRBY", "k", "1.5"},
		"ERR syntax error":                                   {"SET", "k", "v", "NX", "NX", "XX"},
	}
	for expected, line := range cases {
		_, err := ParseCmdLine(utils.ToCmdLine(line...))
		require.Error(t, err)
		reply, ok := err.(redis.ErrorReply)
		require.True(t, ok, line)
		assert.Equal(t, expected, reply.Error())
	}
}

func TestCommandFlags(t *testing.T) {
	assert.True(t, isReadOnlyCommand("GET"))
	assert.True(t, isReadOnlyCommand("scan"))
	assert.False(t, isReadOnlyCommand("set"))
	assert.False(t, isReadOnlyCommand("nosuch"))
	assert.Equal(t, [][]byte{[]byte("readonly"), []byte("admin")}, cmdTable["save"].flagNames())
}
