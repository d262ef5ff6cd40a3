// Package shutdown provides the process-wide stop flag shared by the accept loop,
// the connection handlers and the store worker.
package shutdown

import (
	"sync"
	"sync/atomic"
)

// Signal is a one-way switch from running to shutting down.
// Every holder observes the transition, late subscribers included.
type Signal struct {
	once sync.Once
	ch   chan struct{}
	flag atomic.Bool
}

// New creates a Signal in the running state
func New() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Shutdown flips the signal. Calling it more than once is a no-op.
func (s *Signal) Shutdown() {
	s.once.Do(func() {
		s.flag.Store(true)
		close(s.ch)
	})
}

// Done returns a channel closed once Shutdown was called
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// IsShutdown polls the signal without blocking
func (s *Signal) IsShutdown() bool {
	return s.flag.Load()
}
