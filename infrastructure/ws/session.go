package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pulse/domain"
	"pulse/domain/event"
)

// State is the lifecycle of one connection:
// Opening → Authenticated → Active → Closed, with Opening → Closed directly
// on auth failure. A session never re-enters Active after Closed.
type State int32

const (
	// StateOpening covers the raw HTTP handshake; a Session object only
	// exists once the credential has been verified.
	StateOpening State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

// conn is the subset of *websocket.Conn the session writes through,
// narrowed so tests can substitute it.
type conn interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one authenticated live connection. It owns the only goroutine
// allowed to write on the socket, so a slow peer backs up its own buffer and
// nothing else. It implements contract.LiveSession.
type Session struct {
	log          *slog.Logger
	identity     domain.Identity
	openedAt     time.Time
	conn         conn
	out          chan event.DomainEvent
	state        atomic.Int32
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewSession(log *slog.Logger, identity domain.Identity, conn conn,
	bufferSize int, writeTimeout, pingInterval time.Duration) *Session {
	s := &Session{
		log:          log,
		identity:     identity,
		openedAt:     time.Now().UTC(),
		conn:         conn,
		out:          make(chan event.DomainEvent, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
	s.state.Store(int32(StateAuthenticated))
	return s
}

func (s *Session) Identity() domain.Identity { return s.identity }
func (s *Session) OpenedAt() time.Time       { return s.openedAt }

func (s *Session) State() State {
	return State(s.state.Load())
}

// Activate marks the session live once the registry has recorded it.
func (s *Session) Activate() {
	s.state.CompareAndSwap(int32(StateAuthenticated), int32(StateActive))
}

// Consume enqueues the event for the write pump. A closed session swallows
// the event silently: stale sends are expected under concurrent disconnect
// races. A full buffer drops the event rather than stalling the publisher.
func (s *Session) Consume(ctx context.Context, e event.DomainEvent) error {
	if s.State() == StateClosed {
		return nil
	}
	select {
	case s.out <- e:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Session buffer full, dropping event",
			"user_id", s.identity.UserID, "event", e.Kind())
		return nil
	}
}

// Run is the write pump: the single writer on the socket. Events leave in
// the order they were enqueued, which carries the per-room FIFO guarantee
// from Publish down to the wire. Exits on write failure, close, or context
// cancellation; the session is closed on the way out.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case e := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteJSON(event.Envelope{Type: e.Kind(), Data: e}); err != nil {
				s.log.Debug("Write failed, closing session",
					"user_id", s.identity.UserID, "error", err)
				return nil
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.Debug("Ping failed, closing session",
					"user_id", s.identity.UserID, "error", err)
				return nil
			}
		}
	}
}

// Close is idempotent and final: the state moves to Closed and the
// underlying socket is closed exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		_ = s.conn.Close()
	})
}
