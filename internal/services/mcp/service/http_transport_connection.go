package service

import (
	"context"
	"errors"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

var errConnectionClosed = errors.New("connection closed")

// httpConnection implements mcp.Connection for one HTTP session. Requests
// arrive on reqChan; responses are routed to the waiting POST by request id
// and everything else goes to notifyChan for the SSE stream. The channels
// are never closed; closed signals shutdown to every reader and writer.
type httpConnection struct {
	sessionID  string
	reqChan    chan jsonrpc.Message
	notifyChan chan jsonrpc.Message
	closed     chan struct{}
	ready      chan struct{} // signaled on the server's first Read
	readyOnce  sync.Once
	closeOnce  sync.Once

	pendingMu   sync.Mutex
	pendingReqs map[jsonrpc.ID]chan jsonrpc.Message
}

// Read implements mcp.Connection.Read.
func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	c.readyOnce.Do(func() {
		select {
		case c.ready <- struct{}{}:
		default:
		}
	})

	select {
	case msg := <-c.reqChan:
		return msg, nil
	case <-c.closed:
		return nil, errConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements mcp.Connection.Write. A response whose id matches a
// pending request goes to that request; anything else is a notification.
func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if c.isClosed() {
		return errConnectionClosed
	}

	target := c.notifyChan
	if resp, ok := msg.(*jsonrpc.Response); ok && resp.ID != (jsonrpc.ID{}) {
		c.pendingMu.Lock()
		respChan, exists := c.pendingReqs[resp.ID]
		c.pendingMu.Unlock()
		if exists {
			target = respChan
		}
	}

	select {
	case target <- msg:
		return nil
	case <-c.closed:
		return errConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await registers a pending request and returns the channel its response
// will be delivered on, plus a function that forgets it.
func (c *httpConnection) await(id jsonrpc.ID) (<-chan jsonrpc.Message, func()) {
	respChan := make(chan jsonrpc.Message, 1)
	c.pendingMu.Lock()
	c.pendingReqs[id] = respChan
	c.pendingMu.Unlock()
	return respChan, func() {
		c.pendingMu.Lock()
		delete(c.pendingReqs, id)
		c.pendingMu.Unlock()
	}
}

// Close implements mcp.Connection.Close.
func (c *httpConnection) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *httpConnection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// SessionID implements mcp.Connection.SessionID.
func (c *httpConnection) SessionID() string {
	return c.sessionID
}
