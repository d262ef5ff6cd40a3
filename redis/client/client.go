package client

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hdt3213/pdis/interface/redis"
	"github.com/hdt3213/pdis/lib/logger"
	"github.com/hdt3213/pdis/redis/connection"
	"github.com/hdt3213/pdis/redis/protocol"
)

const (
	created = iota
	running
	closed
)

var (
	// ErrClosed is returned by Send after Close or once the connection broke
	ErrClosed = errors.New("client closed")
	// ErrTimeout is returned by Send when the server did not answer in time
	ErrTimeout = errors.New("server time out")
)

// Client is a pipeline mode redis client.
// Requests are written by one goroutine and replies are matched to them in order by another.
type Client struct {
	conn        *connection.Connection
	pendingReqs chan *request // wait to send
	waitingReqs chan *request // waiting response
	ticker      *time.Ticker
	addr        string

	// guards status and sends on pendingReqs
	mu     sync.RWMutex
	status int

	broken     chan struct{}
	brokenOnce sync.Once
	err        error
	stopped    chan struct{}
}

// request is a message sends to redis server
type request struct {
	args  [][]byte
	reply redis.Reply
	err   error
	done  chan struct{}
}

const (
	chanSize = 256
	maxWait  = 3 * time.Second
)

// MakeClient dials addr, Start must be called before Send
func MakeClient(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, maxWait)
	if err != nil {
		return nil, err
	}
	return &Client{
		addr:        addr,
		conn:        connection.NewConn(conn),
		pendingReqs: make(chan *request, chanSize),
		waitingReqs: make(chan *request, chanSize),
		broken:      make(chan struct{}),
		stopped:     make(chan struct{}),
	}, nil
}

// Start starts asynchronous goroutines
func (client *Client) Start() {
	client.ticker = time.NewTicker(10 * time.Second)
	client.mu.Lock()
	client.status = running
	client.mu.Unlock()
	go client.handleWrite()
	go client.handleRead()
	go client.heartbeat()
}

// Addr is the server address
func (client *Client) Addr() string {
	return client.addr
}

// Close stops asynchronous goroutines and close connection
func (client *Client) Close() {
	client.mu.Lock()
	if client.status == closed {
		client.mu.Unlock()
		return
	}
	wasRunning := client.status == running
	client.status = closed
	// stop new request
	close(client.pendingReqs)
	client.mu.Unlock()

	close(client.stopped)
	if wasRunning {
		client.ticker.Stop()
	}
	_ = client.conn.Close()
	client.fail(ErrClosed)
}

// Alive tells whether Send may still succeed
func (client *Client) Alive() bool {
	client.mu.RLock()
	defer client.mu.RUnlock()
	if client.status != running {
		return false
	}
	select {
	case <-client.broken:
		return false
	default:
		return true
	}
}

// fail marks the connection unusable, pending and future requests get err
func (client *Client) fail(err error) {
	client.brokenOnce.Do(func() {
		client.err = err
		close(client.broken)
	})
}

func (client *Client) heartbeat() {
	for {
		select {
		case <-client.ticker.C:
			client.doHeartbeat()
		case <-client.stopped:
			return
		}
	}
}

func (client *Client) doHeartbeat() {
	_, err := client.Send([][]byte{[]byte("PING")})
	if err != nil {
		logger.Debugf("heartbeat to %s failed: %v", client.addr, err)
	}
}

// Send sends a request to redis server and waits for its reply.
// Error replies from the server are replies, err only reports transport failures.
func (client *Client) Send(args [][]byte) (redis.Reply, error) {
	req := &request{
		args: args,
		done: make(chan struct{}),
	}
	client.mu.RLock()
	if client.status != running {
		client.mu.RUnlock()
		return nil, ErrClosed
	}
	select {
	case client.pendingReqs <- req:
	case <-client.broken:
		client.mu.RUnlock()
		return nil, client.err
	}
	client.mu.RUnlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-req.done:
		return req.reply, req.err
	case <-client.broken:
		select {
		case <-req.done:
			return req.reply, req.err
		default:
			return nil, client.err
		}
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (client *Client) handleWrite() {
	for req := range client.pendingReqs {
		client.doRequest(req)
	}
}

func (client *Client) doRequest(req *request) {
	if len(req.args) == 0 {
		req.finish(nil, errors.New("empty command"))
		return
	}
	err := client.conn.WriteReply(protocol.MakeMultiBulkReply(req.args))
	if err != nil {
		client.fail(err)
		req.finish(nil, err)
		return
	}
	select {
	case client.waitingReqs <- req:
	case <-client.broken:
		req.finish(nil, client.err)
	}
}

func (client *Client) handleRead() {
	for {
		frame, err := client.conn.ReadFrame()
		if err == nil && frame == nil {
			err = io.EOF
		}
		if err != nil {
			client.fail(err)
			return
		}
		select {
		case req := <-client.waitingReqs:
			req.finish(frame, nil)
		case <-client.broken:
			return
		}
	}
}

func (req *request) finish(reply redis.Reply, err error) {
	req.reply = reply
	req.err = err
	close(req.done)
}
