package client

import (
	"context"
	"errors"

	"github.com/hdt3213/pdis/interface/redis"
	pool "github.com/jolestar/go-commons-pool/v2"
)

type connectionFactory struct {
	Peer string
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	c, err := MakeClient(f.Peer)
	if err != nil {
		return nil, err
	}
	c.Start()
	return pool.NewPooledObject(c), nil
}

func (f *connectionFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	c, ok := object.Object.(*Client)
	if !ok {
		return errors.New("type mismatch")
	}
	c.Close()
	return nil
}

func (f *connectionFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	c, ok := object.Object.(*Client)
	return ok && c.Alive()
}

func (f *connectionFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	// do activate
	return nil
}

func (f *connectionFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	// do passivate
	return nil
}

// Pool shares up to size clients of one server between goroutines
type Pool struct {
	pool *pool.ObjectPool
}

// NewPool creates a pool of clients connected to addr, connections are made on demand
func NewPool(addr string, size int) *Pool {
	config := pool.NewDefaultPoolConfig()
	config.MaxTotal = size
	config.MaxIdle = size
	config.TestOnBorrow = true
	return &Pool{
		pool: pool.NewObjectPool(context.Background(), &connectionFactory{Peer: addr}, config),
	}
}

// Send borrows a client, sends args and returns the client to the pool.
// A client which failed to send is discarded.
func (p *Pool) Send(ctx context.Context, args [][]byte) (redis.Reply, error) {
	raw, err := p.pool.BorrowObject(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := raw.(*Client)
	if !ok {
		return nil, errors.New("type mismatch")
	}
	reply, err := c.Send(args)
	if err != nil {
		_ = p.pool.InvalidateObject(ctx, c)
		return nil, err
	}
	if err := p.pool.ReturnObject(ctx, c); err != nil {
		return nil, err
	}
	return reply, nil
}

// Close destroys every idle client
func (p *Pool) Close() {
	p.pool.Close(context.Background())
}
