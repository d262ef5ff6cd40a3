package tcp

import (
	"context"
	"net"
)

// Handler serves the connections accepted by tcp.ListenAndServe.
// Handle owns conn and must close it before returning.
// Close is called once the accept loop stops; it must unblock every
// in-flight Handle so the server can wait for them.
type Handler interface {
	Handle(ctx context.Context, conn net.Conn)
	Close() error
}
