package protocol

import (
	"testing"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/stretchr/testify/assert"
)

func TestReplyEncoding(t *testing.T) {
	cases := []struct {
		reply    redis.Reply
		expected string
	}{
		{MakeOkReply(), "+OK\r\n"},
		{MakeStatusReply("PONG"), "+PONG\r\n"},
		{MakeIntReply(-42), ":-42\r\n"},
		{MakeBulkReply([]byte("a\r\nb")), "$4\r\na\r\nb\r\n"},
		{MakeBulkReply([]byte{}), "$0\r\n\r\n"},
		{MakeBulkReply(nil), "$0\r\n\r\n"},
		{MakeNullBulkReply(), "$-1\r\n"},
		{MakeEmptyMultiBulkReply(), "*0\r\n"},
		{MakeMultiBulkReply([][]byte{[]byte("a"), nil, {}}), "*3\r\n$1\r\na\r\n$-1\r\n$0\r\n\r\n"},
		{MakeArrayReply(MakeIntReply(1), nil, MakeMultiBulkReply([][]byte{[]byte("x")})), "*3\r\n:1\r\n$-1\r\n*1\r\n$1\r\nx\r\n"},
		{MakeErrReply("ERR boom"), "-ERR boom\r\n"},
		{MakeArgNumErrReply("get"), "-ERR wrong number of arguments for 'get' command\r\n"},
		{MakeSyntaxErrReply(), "-ERR syntax error\r\n"},
		{MakeUnknownCommandErrReply("HSET"), "-ERR unknown command 'HSET'\r\n"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, string(c.reply.ToBytes()))
	}
}

func TestIsErrorReply(t *testing.T) {
	assert.True(t, IsErrorReply(MakeErrReply("ERR x")))
	assert.True(t, IsErrorReply(&NotIntegerErrReply{}))
	assert.False(t, IsErrorReply(MakeOkReply()))
	assert.False(t, IsErrorReply(MakeBulkReply([]byte("-ERR not an error"))))
}
