package connection

import (
	"bytes"
	"io"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/hdt3213/pdis/lib/utils"
	"github.com/hdt3213/pdis/redis/parser"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipe(t *testing.T) (*Connection, net.Conn) {
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewConn(server), client
}

// writeChunks writes data in small pieces so frames arrive split across reads
func writeChunks(conn net.Conn, data []byte, chunk int) {
	for len(data) > 0 {
		n := chunk
		if n > len(data) {
			n = len(data)
		}
		_, _ = conn.Write(data[:n])
		data = data[n:]
	}
}

func TestReadFramePipelined(t *testing.T) {
	conn, client := newPipe(t)
	var stream bytes.Buffer
	lines := [][][]byte{
		utils.ToCmdLine("SET", "a", "1"),
		utils.ToCmdLine("GET", "a"),
		utils.ToCmdLine("SET", "b", ""),
	}
	for _, line := range lines {
		stream.Write(protocol.MakeMultiBulkReply(line).ToBytes())
	}
	go func() {
		writeChunks(client, stream.Bytes(), 3)
		_ = client.Close()
	}()

	for _, line := range lines {
		frame, err := conn.ReadFrame()
		require.NoError(t, err)
		expected := protocol.MakeMultiBulkReply(line).ToBytes()
		assert.Equal(t, string(expected), string(frame.ToBytes()))
	}
	frame, err := conn.ReadFrame()
	assert.NoError(t, err)
	assert.Nil(t, frame)
}

func TestReadFrameGrowsBuffer(t *testing.T) {
	conn, client := newPipe(t)
	value := bytes.Repeat([]byte("x"), initialBufferSize*5)
	data := protocol.MakeMultiBulkReply([][]byte{[]byte("SET"), []byte("k"), value}).ToBytes()
	go func() {
		writeChunks(client, data, 1000)
	}()
	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, data, frame.ToBytes())
	assert.Equal(t, 0, conn.Buffered())
}

func TestReadFrameReset(t *testing.T) {
	conn, client := newPipe(t)
	go func() {
		_, _ = client.Write([]byte("*2\r\n$3\r\nGET\r\n"))
		_ = client.Close()
	}()
	_, err := conn.ReadFrame()
	assert.ErrorIs(t, err, ErrConnectionReset)
}

func TestReadFrameProtocolError(t *testing.T) {
	conn, client := newPipe(t)
	go func() {
		_, _ = client.Write([]byte("*1\r\n$x\r\n"))
	}()
	_, err := conn.ReadFrame()
	require.Error(t, err)
	assert.True(t, parser.IsProtocolError(err))
}

func TestWriteAndFlush(t *testing.T) {
	conn, client := newPipe(t)
	done := make(chan []byte)
	go func() {
		buf := make([]byte, 64)
		n, _ := io.ReadAtLeast(client, buf, len("+OK\r\n:1\r\n"))
		done <- buf[:n]
	}()
	require.NoError(t, conn.Write(protocol.MakeOkReply()))
	require.NoError(t, conn.WriteReply(protocol.MakeIntReply(1)))
	select {
	case got := <-done:
		assert.Equal(t, "+OK\r\n:1\r\n", string(got))
	case <-time.After(time.Second):
		t.Fatal("reply not flushed")
	}
}

func TestInterrupt(t *testing.T) {
	conn, _ := newPipe(t)
	errs := make(chan error, 1)
	go func() {
		_, err := conn.ReadFrame()
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)
	conn.Interrupt()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("read was not interrupted")
	}
	assert.NoError(t, conn.Close())
}

func withMaxBufferSize(t *testing.T, size int) {
	saved := MaxBufferSize
	MaxBufferSize = size
	t.Cleanup(func() {
		MaxBufferSize = saved
	})
}

func TestReadFrameTooLarge(t *testing.T) {
	withMaxBufferSize(t, 64*1024)
	conn, client := newPipe(t)
	go func() {
		header := "*1\r\n$100000\r\n"
		data := append([]byte(header), bytes.Repeat([]byte("a"), 64*1024-len(header))...)
		writeChunks(client, data, 4096)
	}()
	_, err := conn.ReadFrame()
	assert.Equal(t, ErrFrameTooLarge, err)
	assert.True(t, parser.IsProtocolError(err))
}

func TestReadFrameDeepNesting(t *testing.T) {
	conn, client := newPipe(t)
	go func() {
		writeChunks(client, bytes.Repeat([]byte("*1\r\n"), 100000), 4096)
	}()
	_, err := conn.ReadFrame()
	require.Error(t, err)
	assert.True(t, parser.IsProtocolError(err))
}

func TestReadFrameLargeArrayInChunks(t *testing.T) {
	conn, client := newPipe(t)
	count := 400000
	var stream bytes.Buffer
	stream.WriteString("*" + strconv.Itoa(count) + "\r\n")
	for i := 0; i < count; i++ {
		stream.WriteString("$1\r\na\r\n")
	}
	go func() {
		writeChunks(client, stream.Bytes(), 4096)
	}()

	start := time.Now()
	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	arr, ok := frame.(*protocol.ArrayReply)
	require.True(t, ok)
	assert.Len(t, arr.Items, count)
	assert.Equal(t, 0, conn.Buffered())
	assert.Less(t, time.Since(start), 3*time.Second)
}
