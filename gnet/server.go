// Package gnet serves the redis protocol on gnet event loops instead of a goroutine per connection.
package gnet

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/database"
	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/logger"
	"github.com/hdt3213/pdis/lib/metrics"
	"github.com/hdt3213/pdis/lib/sync/shutdown"
	"github.com/hdt3213/pdis/redis/parser"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/panjf2000/gnet/v2"
	"golang.org/x/sync/errgroup"
)

var (
	errMaxClients = protocol.MakeErrReply("ERR max number of clients reached")
	errStopped    = protocol.MakeErrReply("ERR server is shutting down")
)

// GnetServer is a gnet.EventHandler decoding requests with the same parser as the tcp transport.
// Commands are executed synchronously on the event loop which received them.
type GnetServer struct {
	gnet.BuiltinEventEngine
	eng       gnet.Engine
	booted    chan struct{}
	connected int32
	worker    *database.Worker
}

// NewGnetServer creates a server submitting commands to worker
func NewGnetServer(worker *database.Worker) *GnetServer {
	return &GnetServer{
		worker: worker,
		booted: make(chan struct{}),
	}
}

func (s *GnetServer) OnBoot(eng gnet.Engine) (action gnet.Action) {
	s.eng = eng
	close(s.booted)
	return
}

func (s *GnetServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	n := atomic.AddInt32(&s.connected, 1)
	if max := config.Properties.MaxClients; max > 0 && int(n) > max {
		atomic.AddInt32(&s.connected, -1)
		logger.Warnf("refused %s: max number of clients reached", c.RemoteAddr())
		return errMaxClients.ToBytes(), gnet.Close
	}
	c.SetContext(new(parser.Checker))
	metrics.ClientConnected()
	return
}

func (s *GnetServer) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	if c.Context() == nil {
		// refused in OnOpen
		return
	}
	if err != nil {
		logger.Infof("error occurred on connection=%s, %v", c.RemoteAddr(), err)
	}
	atomic.AddInt32(&s.connected, -1)
	metrics.ClientClosed()
	return
}

// OnTraffic answers every complete frame in the inbound buffer, a trailing partial frame waits for more traffic
func (s *GnetServer) OnTraffic(c gnet.Conn) (action gnet.Action) {
	checker := c.Context().(*parser.Checker)
	for c.InboundBuffered() > 0 {
		buf, err := c.Peek(c.InboundBuffered())
		if err != nil {
			logger.Errorf("read inbound buffer failed: %v", err)
			return gnet.Close
		}
		frame, n, err := checker.Decode(buf)
		if err == parser.ErrIncomplete {
			return gnet.None
		}
		if err != nil {
			var protocolErr *parser.ProtocolError
			if errors.As(err, &protocolErr) {
				_, _ = c.Write((&protocol.ProtocolErrReply{Msg: protocolErr.Msg}).ToBytes())
			}
			logger.Infof("parse command line failed: %v", err)
			return gnet.Close
		}
		_, _ = c.Discard(n)
		reply, ok := s.exec(frame)
		if _, err := c.Write(reply.ToBytes()); err != nil {
			return gnet.Close
		}
		if !ok {
			return gnet.Close
		}
	}
	return gnet.None
}

// exec returns false when the worker is gone and the connection should be closed
func (s *GnetServer) exec(frame redis.Reply) (redis.Reply, bool) {
	cmd, err := database.ParseCommand(frame)
	if err != nil {
		var errReply redis.ErrorReply
		if errors.As(err, &errReply) {
			return errReply, true
		}
		return protocol.MakeErrReply("ERR " + err.Error()), true
	}
	reply, err := s.worker.Exec(context.Background(), cmd)
	if err != nil {
		return errStopped, false
	}
	return reply, true
}

// Stop stops the event loops, it is a no-op before the engine booted
func (s *GnetServer) Stop(ctx context.Context) error {
	select {
	case <-s.booted:
		return s.eng.Stop(ctx)
	default:
		return nil
	}
}

// ListenAndServe runs worker and gnet event loops on addr until sig shuts down.
// The worker is stopped after the event loops returned.
func ListenAndServe(addr string, worker *database.Worker, sig *shutdown.Signal) error {
	server := NewGnetServer(worker)
	stopWorker := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		return worker.Run(stopWorker)
	})
	g.Go(func() error {
		defer close(stopWorker)
		err := gnet.Run(server, "tcp://"+addr, gnet.WithMulticore(true), gnet.WithLogger(gnetLogger{}))
		sig.Shutdown()
		return err
	})
	g.Go(func() error {
		<-sig.Done()
		select {
		case <-server.booted:
		case <-stopWorker:
			// Run failed before booting
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down...")
		return server.Stop(ctx)
	})
	return g.Wait()
}

// gnetLogger routes gnet logs into lib/logger
type gnetLogger struct{}

func (gnetLogger) Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }
func (gnetLogger) Infof(format string, args ...interface{})  { logger.Infof(format, args...) }
func (gnetLogger) Warnf(format string, args ...interface{})  { logger.Warnf(format, args...) }
func (gnetLogger) Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }
func (gnetLogger) Fatalf(format string, args ...interface{}) { logger.Fatal(fmt.Sprintf(format, args...)) }
