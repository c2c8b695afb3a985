package ws

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulse/domain"
	"pulse/domain/event"
)

// fakeConn records what the write pump sends.
type fakeConn struct {
	mu       sync.Mutex
	written  []event.Envelope
	closed   bool
	notify   chan struct{}
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{notify: make(chan struct{}, 16)}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v.(event.Envelope))
	c.notify <- struct{}{}
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) envelopes() []event.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Envelope, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testSession(conn conn) *Session {
	identity := domain.Identity{UserID: "alice", DisplayName: "Alice"}
	return NewSession(slog.Default(), identity, conn, 16, time.Second, time.Hour)
}

func TestSession_Lifecycle(t *testing.T) {
	t.Run("should start authenticated and activate once", func(t *testing.T) {
		req := require.New(t)
		session := testSession(newFakeConn())

		req.Equal(StateAuthenticated, session.State())
		session.Activate()
		req.Equal(StateActive, session.State())
	})

	t.Run("should close the socket exactly once and stay closed", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()
		session := testSession(conn)

		session.Close()
		session.Close()

		req.Equal(StateClosed, session.State())
		req.True(conn.isClosed())

		// Closed is final: activation cannot resurrect the session.
		session.Activate()
		req.Equal(StateClosed, session.State())
	})
}

func TestSession_WritePump(t *testing.T) {
	t.Run("should write enqueued events in order as typed envelopes", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()
		session := testSession(conn)
		session.Activate()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = session.Run(ctx) }()

		first := event.RoomJoined{Room: domain.RoomGeneral}
		second := event.RoomLeft{Room: domain.RoomGeneral}
		req.NoError(session.Consume(ctx, first))
		req.NoError(session.Consume(ctx, second))

		<-conn.notify
		<-conn.notify

		envelopes := conn.envelopes()
		req.Len(envelopes, 2)
		req.Equal("room_joined", envelopes[0].Type)
		req.Equal(first, envelopes[0].Data)
		req.Equal("room_left", envelopes[1].Type)
		req.Equal(second, envelopes[1].Data)
	})

	t.Run("should close the session when a write fails", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()
		conn.writeErr = context.DeadlineExceeded
		session := testSession(conn)
		session.Activate()

		done := make(chan struct{})
		go func() {
			_ = session.Run(context.Background())
			close(done)
		}()

		req.NoError(session.Consume(context.Background(), event.RoomJoined{Room: domain.RoomGeneral}))

		<-done
		req.Equal(StateClosed, session.State())
		req.True(conn.isClosed())
	})
}

func TestSession_Consume(t *testing.T) {
	t.Run("should silently swallow events sent to a closed session", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()
		session := testSession(conn)
		session.Close()

		// A publisher racing with disconnect must not see an error.
		req.NoError(session.Consume(context.Background(), event.RoomJoined{Room: domain.RoomGeneral}))
		req.Empty(conn.envelopes())
	})

	t.Run("should drop instead of blocking when the buffer is full", func(t *testing.T) {
		req := require.New(t)
		identity := domain.Identity{UserID: "alice"}
		session := NewSession(slog.Default(), identity, newFakeConn(), 1, time.Second, time.Hour)

		// No write pump running: the second event finds the buffer full.
		req.NoError(session.Consume(context.Background(), event.RoomJoined{Room: domain.RoomGeneral}))
		req.NoError(session.Consume(context.Background(), event.RoomLeft{Room: domain.RoomGeneral}))
	})
}
