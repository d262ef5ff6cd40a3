package connection

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/sync/wait"
	"github.com/hdt3213/pdis/redis/parser"
)

const initialBufferSize = 4 * 1024

// MaxBufferSize bounds the bytes buffered for a single frame.
// A frame holding a maximal bulk string plus its headers must fit.
var MaxBufferSize = parser.MaxBulkLen + 64*1024

var (
	// ErrConnectionReset means the peer closed the connection in the middle of a frame
	ErrConnectionReset = errors.New("connection reset by peer")
	// ErrFrameTooLarge means a single frame exceeds MaxBufferSize
	ErrFrameTooLarge = &parser.ProtocolError{Msg: "frame too large"}
)

// Connection represents a connection with a redis client.
// ReadFrame must be called from a single goroutine, writes may come from any goroutine.
type Connection struct {
	conn net.Conn

	// unread bytes are buf[start:end]
	buf   []byte
	start int
	end   int

	// remembers how much of a partially received frame was already checked
	checker parser.Checker

	// waiting until reply finished
	waitingReply wait.Wait

	// lock while server sending response
	mu     sync.Mutex
	writer *bufio.Writer
}

// NewConn creates Connection instance
func NewConn(conn net.Conn) *Connection {
	return &Connection{
		conn:   conn,
		buf:    make([]byte, initialBufferSize),
		writer: bufio.NewWriter(conn),
	}
}

// RemoteAddr returns the remote network address
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadFrame returns the next frame sent by the peer.
// It returns nil, nil when the peer closed the connection cleanly between frames,
// ErrConnectionReset if it closed in the middle of one, and a *parser.ProtocolError on malformed input.
func (c *Connection) ReadFrame() (redis.Reply, error) {
	for {
		if c.end > c.start {
			frame, n, err := c.checker.Decode(c.buf[c.start:c.end])
			if err == nil {
				c.start += n
				if c.start == c.end {
					c.start, c.end = 0, 0
				}
				return frame, nil
			}
			if err != parser.ErrIncomplete {
				return nil, err
			}
		}
		if err := c.fill(); err != nil {
			if err == io.EOF {
				if c.end > c.start {
					return nil, ErrConnectionReset
				}
				return nil, nil
			}
			return nil, err
		}
	}
}

// Buffered returns the number of received bytes not consumed by ReadFrame yet
func (c *Connection) Buffered() int {
	return c.end - c.start
}

// fill reads at least one more byte into buf, growing it when there is no room left
func (c *Connection) fill() error {
	if c.end == len(c.buf) {
		if c.start > 0 {
			copy(c.buf, c.buf[c.start:c.end])
			c.end -= c.start
			c.start = 0
		} else {
			if len(c.buf) >= MaxBufferSize {
				return ErrFrameTooLarge
			}
			size := len(c.buf) * 2
			if size > MaxBufferSize {
				size = MaxBufferSize
			}
			grown := make([]byte, size)
			copy(grown, c.buf[:c.end])
			c.buf = grown
		}
	}
	for {
		n, err := c.conn.Read(c.buf[c.end:])
		c.end += n
		if n > 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Write buffers reply, it reaches the peer on the next Flush
func (c *Connection) Write(reply redis.Reply) error {
	b := reply.ToBytes()
	if len(b) == 0 {
		return nil
	}
	c.mu.Lock()
	c.waitingReply.Add(1)
	defer func() {
		c.waitingReply.Done()
		c.mu.Unlock()
	}()
	_, err := c.writer.Write(b)
	return err
}

// Flush sends buffered replies
func (c *Connection) Flush() error {
	c.mu.Lock()
	c.waitingReply.Add(1)
	defer func() {
		c.waitingReply.Done()
		c.mu.Unlock()
	}()
	return c.writer.Flush()
}

// WriteReply writes reply and flushes it at once
func (c *Connection) WriteReply(reply redis.Reply) error {
	if err := c.Write(reply); err != nil {
		return err
	}
	return c.Flush()
}

// Interrupt makes a blocked ReadFrame return with a timeout error
func (c *Connection) Interrupt() {
	_ = c.conn.SetReadDeadline(time.Now())
}

// Close disconnect with the client, after waiting a little for pending replies
func (c *Connection) Close() error {
	c.waitingReply.WaitWithTimeout(10 * time.Second)
	return c.conn.Close()
}
