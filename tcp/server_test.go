package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hdt3213/pdis/lib/sync/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler writes every received line back
type echoHandler struct {
	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

func newEchoHandler() *echoHandler {
	return &echoHandler{conns: make(map[net.Conn]struct{})}
}

func (h *echoHandler) Handle(ctx context.Context, conn net.Conn) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()
	reader := bufio.NewReader(conn)
	for {
		msg, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte(msg))
	}
}

func (h *echoHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing = true
	for conn := range h.conns {
		_ = conn.Close()
	}
	return nil
}

func TestListenAndServe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	sig := shutdown.New()
	result := make(chan error, 1)
	go func() {
		result <- ListenAndServe(listener, newEchoHandler(), sig.Done())
	}()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	reader := bufio.NewReader(conn)
	for i := 0; i < 10; i++ {
		val := strconv.Itoa(rand.Int())
		_, err = conn.Write([]byte(val + "\n"))
		require.NoError(t, err)
		line, _, err := reader.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, val, string(line))
	}
	for i := 0; i < 5; i++ {
		// create idle connection
		idle, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		defer idle.Close()
	}
	sig.Shutdown()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	// the open connection was closed by the handler
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = reader.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

var errAcceptFailed = errors.New("too many open files")

// flakyListener fails the first failures accepts, then behaves like inner
type flakyListener struct {
	net.Listener
	mu       sync.Mutex
	failures int
	calls    int
}

func (l *flakyListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.calls++
	fail := l.calls <= l.failures
	l.mu.Unlock()
	if fail {
		return nil, errAcceptFailed
	}
	return l.Listener.Accept()
}

func withBackoffUnit(t *testing.T, unit time.Duration) {
	saved := BackoffUnit
	BackoffUnit = unit
	t.Cleanup(func() {
		BackoffUnit = saved
	})
}

func TestAcceptBackoffRecovers(t *testing.T) {
	withBackoffUnit(t, time.Millisecond)
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	listener := &flakyListener{Listener: inner, failures: 3}
	sig := shutdown.New()
	result := make(chan error, 1)
	go func() {
		result <- ListenAndServe(listener, newEchoHandler(), sig.Done())
	}()

	conn, err := net.Dial("tcp", inner.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)
	line, _, err := bufio.NewReader(conn).ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(line))

	sig.Shutdown()
	assert.NoError(t, <-result)
}

func TestAcceptBackoffGivesUp(t *testing.T) {
	withBackoffUnit(t, time.Microsecond)
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	listener := &flakyListener{Listener: inner, failures: 1000}
	err = ListenAndServe(listener, newEchoHandler(), make(chan struct{}))
	assert.ErrorIs(t, err, errAcceptFailed)
	// 1, 2, 4 ... 64 units of retries, then the error
	assert.Equal(t, 8, listener.calls)
}

func TestBackoffInterruptedByClose(t *testing.T) {
	withBackoffUnit(t, time.Hour)
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	listener := &flakyListener{Listener: inner, failures: 1}
	sig := shutdown.New()
	result := make(chan error, 1)
	go func() {
		result <- ListenAndServe(listener, newEchoHandler(), sig.Done())
	}()
	time.Sleep(20 * time.Millisecond)
	sig.Shutdown()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("backoff was not interrupted")
	}
}
