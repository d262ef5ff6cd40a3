package tcp

/**
 * A tcp server
 */

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hdt3213/pdis/interface/tcp"
	"github.com/hdt3213/pdis/lib/logger"
	"github.com/hdt3213/pdis/lib/sync/shutdown"
)

// BackoffUnit is the first delay before retrying a failed accept, it doubles on each consecutive failure
var BackoffUnit = time.Second

// accept errors are propagated once the backoff would exceed maxBackoff units
const maxBackoff = 64

// NotifySignals turns SIGHUP, SIGQUIT, SIGTERM and SIGINT into sig.Shutdown.
// The returned function stops listening for signals.
func NotifySignals(sig *shutdown.Signal) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case s := <-sigCh:
			logger.Infof("received signal %s", s)
			sig.Shutdown()
		case <-sig.Done():
		}
	}()
	return func() {
		signal.Stop(sigCh)
	}
}

// ListenAndServe accepts connections until closeChan is closed, then closes the listener and the handler
// and waits for every connection to be handled.
// Failed accepts are retried with an exponential backoff, the error is returned once it gets too long.
func ListenAndServe(listener net.Listener, handler tcp.Handler, closeChan <-chan struct{}) error {
	var closeOnce sync.Once
	closeAll := func() {
		closeOnce.Do(func() {
			logger.Info("shutting down...")
			_ = listener.Close() // listener.Accept() will return err immediately
			_ = handler.Close()  // close connections
		})
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-closeChan:
			logger.Info("get exit signal")
			closeAll()
		case <-done:
		}
	}()

	ctx := context.Background()
	var waitDone sync.WaitGroup
	var result error
	backoff := 1
	for {
		conn, err := listener.Accept()
		if err != nil {
			if isClosing(closeChan) {
				break
			}
			if errors.Is(err, net.ErrClosed) || backoff > maxBackoff {
				logger.Errorf("accept error: %v", err)
				result = err
				break
			}
			delay := time.Duration(backoff) * BackoffUnit
			logger.Warnf("accept error: %v, retry in %v", err, delay)
			if !sleep(delay, closeChan) {
				break
			}
			backoff *= 2
			continue
		}
		backoff = 1
		logger.Debugf("accept link from %s", conn.RemoteAddr())
		waitDone.Add(1)
		go func() {
			defer waitDone.Done()
			handler.Handle(ctx, conn)
		}()
	}
	closeAll()
	waitDone.Wait()
	return result
}

func isClosing(closeChan <-chan struct{}) bool {
	select {
	case <-closeChan:
		return true
	default:
		return false
	}
}

// sleep returns false if closeChan was closed first
func sleep(d time.Duration, closeChan <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-closeChan:
		return false
	}
}
