package gnet

import (
	"bufio"
	"bytes"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/hdt3213/pdis/database"
	"github.com/hdt3213/pdis/lib/sync/shutdown"
	"github.com/hdt3213/pdis/lib/utils"
	"github.com/hdt3213/pdis/redis/parser"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func dialRetry(t *testing.T, addr string) net.Conn {
	var conn net.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, err = net.Dial("tcp", addr)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return conn
}

func TestGnetServer(t *testing.T) {
	db, err := database.MakeMemoryDB()
	require.NoError(t, err)
	defer db.Close()
	addr := freeAddr(t)
	sig := shutdown.New()
	result := make(chan error, 1)
	go func() {
		result <- ListenAndServe(addr, database.NewWorker(db, 16), sig)
	}()

	conn := dialRetry(t, addr)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	// a pipeline split in the middle of a frame
	var payload []byte
	for i := 0; i < 3; i++ {
		payload = append(payload, protocol.MakeMultiBulkReply(utils.ToCmdLine("INCR", "n")).ToBytes()...)
	}
	_, err = conn.Write(payload[:7])
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = conn.Write(payload[7:])
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, ":"+strconv.Itoa(i)+"\r\n", line)
	}

	_, err = conn.Write(protocol.MakeMultiBulkReply(utils.ToCmdLine("NOPE")).ToBytes())
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "-ERR unknown command 'NOPE'\r\n", line)

	nested := dialRetry(t, addr)
	defer nested.Close()
	_, err = nested.Write(bytes.Repeat([]byte("*1\r\n"), parser.MaxDepth+1))
	require.NoError(t, err)
	line, err = bufio.NewReader(nested).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "-ERR Protocol error: too many nested arrays\r\n", line)

	_, err = conn.Write([]byte("*1\r\n$x\r\n"))
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "-ERR Protocol error:")

	sig.Shutdown()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("gnet server did not stop")
	}
}
