package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatpulse/internal/core/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	block  chan struct{} // when set, WriteMessage waits on it
	closed bool
}

func (f *fakeConn) WriteMessage(data []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestSendConcurrentWithCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 200; i++ {
		c := NewClient(context.Background(), &fakeConn{}, "conn-1", "alice")
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					_ = c.Send(context.Background(), []byte("x"))
				}
			}()
		}
		c.Close()
		wg.Wait()
	}
}

func TestSendAfterCloseReturnsClientClosed(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(context.Background(), conn, "conn-1", "alice")
	c.Close()

	if err := c.Send(context.Background(), []byte("x")); !errors.Is(err, domain.ErrClientClosed) {
		t.Fatalf("got %v, want ErrClientClosed", err)
	}
	if !conn.wasClosed() {
		t.Fatal("transport not closed")
	}
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	conn := &fakeConn{block: make(chan struct{})}
	defer close(conn.block)
	c := NewClient(context.Background(), conn, "conn-1", "alice")
	defer c.Close()

	// The write loop is stuck on the first frame, so the queue fills up and
	// further sends must fail fast instead of blocking.
	dropped := false
	for i := 0; i < 300; i++ {
		if err := c.Send(context.Background(), []byte("x")); errors.Is(err, domain.ErrSendBufferFull) {
			dropped = true
			break
		}
	}
	if !dropped {
		t.Fatal("send to a full queue never dropped")
	}
}

func TestWriteErrorClosesClient(t *testing.T) {
	conn := &fakeConn{err: errors.New("broken pipe")}
	c := NewClient(context.Background(), conn, "conn-1", "alice")

	_ = c.Send(context.Background(), []byte("x"))

	for i := 0; i < 100; i++ {
		if err := c.Send(context.Background(), []byte("y")); errors.Is(err, domain.ErrClientClosed) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("client not closed after write error")
}
