package ws

import (
	"context"
	"sync"

	"chatpulse/internal/core/domain"
)

// Conn is the transport a client writes frames to.
type Conn interface {
	WriteMessage(data []byte) error
	Close()
}

// RuntimeClient pairs one websocket with a buffered outbound queue drained
// by a single write loop, so concurrent emits never interleave frames.
// Delivery is best-effort: when the queue is full the frame is dropped
// rather than blocking the emitter. The queue is never closed; shutdown is
// signalled through the context alone, so Send can race Close safely.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   Conn
	connID string
	userID string
	out    chan []byte
	once   sync.Once
}

func NewClient(
	parent context.Context,
	conn Conn,
	connID, userID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		connID: connID,
		userID: userID,
		out:    make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string     { return c.connID }
func (c *RuntimeClient) UserID() string { return c.userID }

func (c *RuntimeClient) Send(_ context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return domain.ErrClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

// writeLoop exits on the first failed write; a peer that cannot take frames
// is disconnected instead of backing the engine up.
func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.conn.WriteMessage(data); err != nil {
				return
			}
		}
	}
}
