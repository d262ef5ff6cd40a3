package server

/*
 * A tcp.Handler implements redis protocol
 */

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/database"
	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/logger"
	"github.com/hdt3213/pdis/lib/metrics"
	"github.com/hdt3213/pdis/lib/sync/shutdown"
	"github.com/hdt3213/pdis/redis/connection"
	"github.com/hdt3213/pdis/redis/parser"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/hdt3213/pdis/tcp"
	"golang.org/x/sync/errgroup"
)

var (
	errMaxClients   = protocol.MakeErrReply("ERR max number of clients reached")
	errShuttingDown = protocol.MakeErrReply("ERR server is shutting down")
	unknownErrReply = &protocol.UnknownErrReply{}
)

// Handler implements tcp.Handler and serves as a redis server
type Handler struct {
	activeConn sync.Map // *connection.Connection -> struct{}
	clients    atomic.Int32
	worker     *database.Worker
	sig        *shutdown.Signal
}

// MakeHandler creates a Handler submitting commands to worker.
// Close shuts sig down, and a shut down sig stops every connection after its current command.
func MakeHandler(worker *database.Worker, sig *shutdown.Signal) *Handler {
	return &Handler{
		worker: worker,
		sig:    sig,
	}
}

func (h *Handler) closeClient(client *connection.Connection) {
	_ = client.Close()
	h.activeConn.Delete(client)
	h.clients.Add(-1)
	metrics.ClientClosed()
}

// Handle receives and executes redis commands, one at a time, until the client leaves or the handler closes
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	if h.sig.IsShutdown() {
		// closing handler refuse new connection
		_ = conn.Close()
		return
	}
	client := connection.NewConn(conn)
	n := h.clients.Add(1)
	if max := config.Properties.MaxClients; max > 0 && int(n) > max {
		h.clients.Add(-1)
		_ = client.WriteReply(errMaxClients)
		_ = client.Close()
		logger.Warnf("refused %s: max number of clients reached", client.RemoteAddr())
		return
	}
	metrics.ClientConnected()
	h.activeConn.Store(client, struct{}{})
	defer h.closeClient(client)

	for !h.sig.IsShutdown() {
		frame, err := client.ReadFrame()
		if err != nil {
			h.readFailed(client, err)
			return
		}
		if frame == nil {
			logger.Debugf("connection closed: %s", client.RemoteAddr())
			return
		}
		reply, err := h.exec(ctx, frame)
		if err != nil {
			_ = client.WriteReply(errShuttingDown)
			return
		}
		if err := client.WriteReply(reply); err != nil {
			logger.Infof("connection closed: %s, %v", client.RemoteAddr(), err)
			return
		}
	}
}

// exec turns a frame into a reply. It only fails when the store worker is gone.
func (h *Handler) exec(ctx context.Context, frame redis.Reply) (redis.Reply, error) {
	cmd, err := database.ParseCommand(frame)
	if err != nil {
		var errReply redis.ErrorReply
		if errors.As(err, &errReply) {
			return errReply, nil
		}
		return protocol.MakeErrReply("ERR " + err.Error()), nil
	}
	reply, err := h.worker.Exec(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return unknownErrReply, nil
	}
	return reply, nil
}

func (h *Handler) readFailed(client *connection.Connection, err error) {
	var protocolErr *parser.ProtocolError
	switch {
	case errors.As(err, &protocolErr):
		_ = client.WriteReply(&protocol.ProtocolErrReply{Msg: protocolErr.Msg})
		logger.Warnf("protocol error from %s: %s", client.RemoteAddr(), protocolErr.Msg)
	case errors.Is(err, os.ErrDeadlineExceeded) && h.sig.IsShutdown():
		// interrupted by Close
	default:
		logger.Infof("connection closed: %s, %v", client.RemoteAddr(), err)
	}
}

// Close stops handler, connections finish their current command and leave
func (h *Handler) Close() error {
	logger.Info("handler shutting down...")
	h.sig.Shutdown()
	h.activeConn.Range(func(key interface{}, val interface{}) bool {
		client := key.(*connection.Connection)
		client.Interrupt()
		return true
	})
	return nil
}

// Serve runs worker and the accept loop on listener until sig shuts down.
// The worker is stopped, and drained, only after every connection has finished.
func Serve(listener net.Listener, worker *database.Worker, sig *shutdown.Signal) error {
	handler := MakeHandler(worker, sig)
	stopWorker := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		return worker.Run(stopWorker)
	})
	g.Go(func() error {
		defer close(stopWorker)
		err := tcp.ListenAndServe(listener, handler, sig.Done())
		sig.Shutdown()
		return err
	})
	return g.Wait()
}
