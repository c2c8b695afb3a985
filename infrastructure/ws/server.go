// Package ws is the live transport of the hub: it upgrades HTTP requests to
// websocket sessions, authenticates them, and feeds client messages into the
// runtime.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"pulse/contract"
	"pulse/domain"
	"pulse/domain/event"
	"pulse/errors"
)

// Config bounds every blocking step of the transport so one slow peer or
// collaborator cannot tie up resources indefinitely.
type Config struct {
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	PongTimeout          time.Duration
	PingInterval         time.Duration
	ReplayTimeout        time.Duration
	ConnectionBufferSize int
	MaxMessageSize       int64
}

// ClientMessage is the single client→server frame shape.
type ClientMessage struct {
	Type   string `json:"type" validate:"required,oneof=join_room leave_room typing_start typing_stop presence_update"`
	Room   string `json:"room,omitempty" validate:"omitempty,min=1,max=128"`
	Kind   string `json:"kind,omitempty" validate:"omitempty,max=32"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=online away busy offline"`
}

type Server struct {
	log      *slog.Logger
	verifier contract.CredentialVerifier
	registry contract.IRegistry
	rooms    contract.IRoomIndex
	feed     contract.LiveFeed
	notifier contract.INotifier
	validate *validator.Validate
	upgrader websocket.Upgrader
	cfg      Config
}

func NewServer(log *slog.Logger, verifier contract.CredentialVerifier,
	registry contract.IRegistry, rooms contract.IRoomIndex, feed contract.LiveFeed,
	notifier contract.INotifier, cfg Config) *Server {
	return &Server{
		log:      log,
		verifier: verifier,
		registry: registry,
		rooms:    rooms,
		feed:     feed,
		notifier: notifier,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			// Origin policy belongs to the route layer in front of the hub.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg: cfg,
	}
}

// ServeHTTP is the connection-open path: extract the bearer credential,
// verify it, upgrade, register, replay, acknowledge, then pump messages
// until the peer goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.verifier.Verify(bearerToken(r))
	if !ok {
		// One uniform answer for every rejection reason.
		s.log.Debug("Handshake rejected", "remote", r.RemoteAddr, "error", errors.ErrAuthFailed)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own response.
		s.log.Debug("Upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	session := NewSession(s.log, identity, socket,
		s.cfg.ConnectionBufferSize, s.cfg.WriteTimeout, s.cfg.PingInterval)
	go func() {
		_ = session.Run(context.Background())
	}()

	s.onOpen(session)
	s.readLoop(session, socket)
	s.onClose(session)
}

func (s *Server) onOpen(session *Session) {
	if replaced := s.registry.Put(session); replaced != nil {
		// Last-writer-wins: the earlier device silently loses live delivery.
		s.log.Info("Session replaced by newer handshake",
			"user_id", session.Identity().UserID)
	}
	session.Activate()

	user := session.Identity()
	s.rooms.Join(user.UserID, domain.PersonalRoom(user.UserID))
	s.rooms.Join(user.UserID, domain.RoomGeneral)
	s.rooms.Join(user.UserID, domain.RoomBroadcast)
	if user.IsStaff() {
		s.rooms.Join(user.UserID, domain.RoomAdmin)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReplayTimeout)
	defer cancel()
	s.notifier.Replay(ctx, session)

	_ = session.Consume(ctx, event.ConnectionAck{
		UserID:     user.UserID,
		ServerTime: time.Now().UTC(),
	})
	s.log.Info("Session opened", "user_id", user.UserID, "role", user.Role)
}

// onClose tears down exactly what onOpen set up, but only when the registry
// entry still belongs to this session: a raced reconnect must keep the
// newer session's registration and room memberships intact.
func (s *Server) onClose(session *Session) {
	user := session.Identity()
	if s.registry.Drop(session) {
		s.rooms.Purge(user.UserID)
		s.feed.Publish(context.Background(), domain.RoomGeneral,
			event.UserOffline{UserID: user.UserID})
	}
	session.Close()
	s.log.Info("Session closed", "user_id", user.UserID)
}

func (s *Server) readLoop(session *Session, socket *websocket.Conn) {
	socket.SetReadLimit(s.cfg.MaxMessageSize)
	_ = socket.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Connection dropped",
					"user_id", session.Identity().UserID, "error", err)
			}
			return
		}
		s.handleMessage(session, data)
	}
}

// handleMessage dispatches one inbound frame. A malformed or unknown frame
// never kills the connection; the client gets a diagnostic and the loop
// continues.
func (s *Server) handleMessage(session *Session, data []byte) {
	user := session.Identity()
	ctx := context.Background()

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Debug("Undecodable client frame", "user_id", user.UserID, "error", err)
		_ = session.Consume(ctx, event.ErrorNotice{Message: errors.ErrInvalidMessage.Error()})
		return
	}
	if err := s.validate.Struct(msg); err != nil {
		s.log.Debug("Rejected client frame",
			"user_id", user.UserID, "type", msg.Type, "error", err)
		_ = session.Consume(ctx, event.ErrorNotice{Message: errors.ErrInvalidMessage.Error()})
		return
	}

	switch msg.Type {
	case "join_room":
		if msg.Room == "" {
			return
		}
		room := domain.Room(msg.Room)
		s.rooms.Join(user.UserID, room)
		_ = session.Consume(ctx, event.RoomJoined{Room: room})

	case "leave_room":
		if msg.Room == "" {
			return
		}
		room := domain.Room(msg.Room)
		s.rooms.Leave(user.UserID, room)
		_ = session.Consume(ctx, event.RoomLeft{Room: room})

	case "typing_start", "typing_stop":
		if msg.Room == "" {
			return
		}
		s.feed.Publish(ctx, domain.Room(msg.Room), event.Typing{
			Room:        domain.Room(msg.Room),
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			TypingKind:  msg.Kind,
			Active:      msg.Type == "typing_start",
		})

	case "presence_update":
		status := domain.PresenceStatus(msg.Status)
		if !status.Valid() {
			return
		}
		s.feed.Publish(ctx, domain.RoomGeneral, event.PresenceUpdated{
			UserID: user.UserID,
			Status: status,
		})

	default:
		s.log.Debug(fmt.Sprintf("Not implemented message type : %s", msg.Type))
		_ = session.Consume(ctx, event.ErrorNotice{Message: errors.ErrUnknownMessage.Error()})
	}
}

// bearerToken accepts the credential either as an Authorization header or,
// for browser websocket clients that cannot set headers, as a query param.
func bearerToken(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return r.URL.Query().Get("token")
}
