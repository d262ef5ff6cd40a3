package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hdt3213/pdis/lib/utils"
	"github.com/hdt3213/pdis/redis/protocol/asserts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, cmd ...string) Command {
	parsed, err := ParseCmdLine(utils.ToCmdLine(cmd...))
	require.NoError(t, err)
	return parsed
}

func TestWorkerConcurrentIncr(t *testing.T) {
	db := makeTestDB()
	defer db.Close()
	worker := NewWorker(db, 16)
	stop := make(chan struct{})
	go worker.Run(stop)

	ctx := context.Background()
	key := utils.RandString(10)
	_, err := worker.Exec(ctx, mustParse(t, "SET", key, "100"))
	require.NoError(t, err)

	n := 50
	incr := mustParse(t, "INCR", key)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := worker.Exec(ctx, incr)
			assert.NoError(t, err)
			asserts.AssertNotError(t, reply)
		}()
	}
	wg.Wait()

	reply, err := worker.Exec(ctx, mustParse(t, "GET", key))
	require.NoError(t, err)
	asserts.AssertBulkReply(t, reply, "150")

	close(stop)
	<-worker.Done()
}

func TestWorkerErrorsAreReplies(t *testing.T) {
	db := makeTestDB()
	defer db.Close()
	worker := NewWorker(db, 1)
	stop := make(chan struct{})
	go worker.Run(stop)
	defer close(stop)

	ctx := context.Background()
	_, _ = worker.Exec(ctx, mustParse(t, "SET", "k", "abc"))
	reply, err := worker.Exec(ctx, mustParse(t, "INCR", "k"))
	require.NoError(t, err)
	asserts.AssertErrReply(t, reply, "ERR value is not an integer or out of range")

	reply, err = worker.Exec(ctx, mustParse(t, "NOSUCH"))
	require.NoError(t, err)
	asserts.AssertErrReply(t, reply, "ERR unknown command 'NOSUCH'")

	// the worker keeps serving after a failed command
	reply, err = worker.Exec(ctx, mustParse(t, "GET", "k"))
	require.NoError(t, err)
	asserts.AssertBulkReply(t, reply, "abc")
}

func TestWorkerStoreError(t *testing.T) {
	db := makeTestDB()
	worker := NewWorker(db, 1)
	stop := make(chan struct{})
	go worker.Run(stop)
	defer close(stop)

	require.NoError(t, db.Close())
	reply, err := worker.Exec(context.Background(), mustParse(t, "GET", "k"))
	require.NoError(t, err)
	assert.Equal(t, byte('-'), reply.ToBytes()[0])
}

func TestExecuteReportsFailure(t *testing.T) {
	db := makeTestDB()
	worker := &Worker{db: db}
	cases := []struct {
		cmd    []string
		failed bool
	}{
		{[]string{"SET", "k", "abc"}, false},
		{[]string{"GET", "k"}, false},
		{[]string{"GET", "missing"}, false},
		{[]string{"INCR", "k"}, true},
		{[]string{"NOSUCH"}, true},
	}
	for _, c := range cases {
		reply, failed := worker.execute(mustParse(t, c.cmd...))
		assert.Equal(t, c.failed, failed, "%v: %s", c.cmd, reply.ToBytes())
	}

	require.NoError(t, db.Close())
	reply, failed := worker.execute(mustParse(t, "GET", "k"))
	assert.True(t, failed)
	assert.Equal(t, byte('-'), reply.ToBytes()[0])
}

func TestWorkerDrainsOnStop(t *testing.T) {
	db := makeTestDB()
	defer db.Close()
	size := 8
	worker := NewWorker(db, size)

	// queue commands before the worker runs, then stop it right away
	replies := make(chan error, size)
	incr := mustParse(t, "INCR", "counter")
	for i := 0; i < size; i++ {
		go func() {
			_, err := worker.Exec(context.Background(), incr)
			replies <- err
		}()
	}
	require.Eventually(t, func() bool {
		return len(worker.queue) == size
	}, time.Second, time.Millisecond)

	stop := make(chan struct{})
	close(stop)
	require.NoError(t, worker.Run(stop))
	for i := 0; i < size; i++ {
		assert.NoError(t, <-replies)
	}
	value, err := db.GetValue([]byte("counter"))
	require.NoError(t, err)
	assert.Equal(t, "8", string(value.Bytes()))

	_, err = worker.Exec(context.Background(), mustParse(t, "PING"))
	assert.ErrorIs(t, err, ErrWorkerStopped)
}

func TestWorkerExecCanceled(t *testing.T) {
	worker := NewWorker(testDB, 1)
	ping := mustParse(t, "PING")
	// nobody serves the queue, the second command cannot be queued
	go func() {
		_, _ = worker.Exec(context.Background(), ping)
	}()
	require.Eventually(t, func() bool {
		return len(worker.queue) == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := worker.Exec(ctx, ping)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stop := make(chan struct{})
	close(stop)
	_ = worker.Run(stop)
}
