package database

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/logger"
	"github.com/hdt3213/pdis/lib/metrics"
	"github.com/hdt3213/pdis/redis/protocol"
)

// ErrWorkerStopped is returned by Exec once the worker has drained and exited
var ErrWorkerStopped = errors.New("store worker stopped")

var errInternal = protocol.MakeErrReply("ERR internal error")

type request struct {
	cmd   Command
	reply chan redis.Reply
}

// Worker owns the DB and applies commands one at a time, in the order they were queued.
// Connections never touch the DB directly, they submit commands through Exec.
type Worker struct {
	db    *DB
	queue chan *request
	done  chan struct{}
}

// NewWorker creates a worker whose queue holds up to queueSize pending commands
func NewWorker(db *DB, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Worker{
		db:    db,
		queue: make(chan *request, queueSize),
		done:  make(chan struct{}),
	}
}

// Exec queues cmd and waits for its reply.
// ctx only bounds the wait for a queue slot, a queued command is always applied unless the worker
// exits first, in which case ErrWorkerStopped is returned.
func (w *Worker) Exec(ctx context.Context, cmd Command) (redis.Reply, error) {
	req := &request{
		cmd:   cmd,
		reply: make(chan redis.Reply, 1),
	}
	select {
	case w.queue <- req:
	case <-w.done:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	metrics.SetQueueDepth(len(w.queue))
	select {
	case reply := <-req.reply:
		return reply, nil
	case <-w.done:
		// the reply is sent before done is closed
		select {
		case reply := <-req.reply:
			return reply, nil
		default:
			return nil, ErrWorkerStopped
		}
	}
}

// Run applies queued commands until stop is closed, then answers everything still queued and returns.
func (w *Worker) Run(stop <-chan struct{}) error {
	defer close(w.done)
	for {
		select {
		case req := <-w.queue:
			w.handle(req)
		case <-stop:
			w.drain()
			return nil
		}
	}
}

// drain serves what is already queued
func (w *Worker) drain() {
	for {
		select {
		case req := <-w.queue:
			w.handle(req)
		default:
			logger.Info("store worker stopped")
			return
		}
	}
}

// Done is closed when Run has returned
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) handle(req *request) {
	start := time.Now()
	reply, failed := w.execute(req.cmd)
	metrics.ObserveCommand(req.cmd.Name(), time.Since(start), failed)
	metrics.SetQueueDepth(len(w.queue))
	req.reply <- reply
}

// execute applies one command and turns every failure into an error reply, failed tells which happened
func (w *Worker) execute(cmd Command) (result redis.Reply, failed bool) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error(fmt.Sprintf("panic while applying %s: %v\n%s", cmd.Name(), err, string(debug.Stack())))
			result, failed = errInternal, true
		}
	}()
	reply, err := apply(w.db, cmd)
	if err != nil {
		var errReply redis.ErrorReply
		if errors.As(err, &errReply) {
			return errReply, true
		}
		logger.Errorf("store error while applying %s: %v", cmd.Name(), err)
		return protocol.MakeErrReply("ERR " + err.Error()), true
	}
	if reply == nil {
		return protocol.MakeNullBulkReply(), false
	}
	// some commands answer with an error frame instead of failing
	return reply, protocol.IsErrorReply(reply)
}
