// Package event defines the messages fanned out to live sessions.
// Every event marshals to the client as Envelope{Type: Kind(), Data: event}.
package event

import (
	"time"

	"pulse/domain"
)

// DomainEvent is anything that can be pushed to a live session. Kind is the
// wire-level message type the client switches on.
type DomainEvent interface {
	Kind() string
}

// Envelope is the server→client frame.
type Envelope struct {
	Type string      `json:"type"`
	Data DomainEvent `json:"data,omitempty"`
}

// ConnectionAck is sent once, right after a handshake succeeds.
type ConnectionAck struct {
	UserID     string    `json:"user_id"`
	ServerTime time.Time `json:"server_time"`
}

func (ConnectionAck) Kind() string { return "connection_ack" }

type RoomJoined struct {
	Room domain.Room `json:"room"`
}

func (RoomJoined) Kind() string { return "room_joined" }

type RoomLeft struct {
	Room domain.Room `json:"room"`
}

func (RoomLeft) Kind() string { return "room_left" }

// Typing covers both user_typing and user_stopped_typing depending on Active.
type Typing struct {
	Room        domain.Room `json:"room"`
	UserID      string      `json:"user_id"`
	DisplayName string      `json:"display_name"`
	TypingKind  string      `json:"kind"`
	Active      bool        `json:"-"`
}

func (t Typing) Kind() string {
	if t.Active {
		return "user_typing"
	}
	return "user_stopped_typing"
}

type PresenceUpdated struct {
	UserID string                `json:"user_id"`
	Status domain.PresenceStatus `json:"status"`
}

func (PresenceUpdated) Kind() string { return "presence_updated" }

type UserOffline struct {
	UserID string `json:"user_id"`
}

func (UserOffline) Kind() string { return "user_offline" }

// NotificationDelivered pushes the full durable record to a session, either
// live at delivery time or replayed from the cache on reconnect.
type NotificationDelivered struct {
	Notification domain.Notification `json:"notification"`
}

func (NotificationDelivered) Kind() string { return "notification" }

type PostUpdate struct {
	PostID string         `json:"post_id"`
	Action domain.Action  `json:"action"`
	Post   map[string]any `json:"post,omitempty"`
}

func (PostUpdate) Kind() string { return "post_update" }

type LikeUpdate struct {
	PostID string            `json:"post_id"`
	UserID string            `json:"user_id"`
	Action domain.LikeAction `json:"action"`
}

func (LikeUpdate) Kind() string { return "like_update" }

type CommentUpdate struct {
	PostID    string         `json:"post_id"`
	CommentID string         `json:"comment_id"`
	Action    domain.Action  `json:"action"`
	Comment   map[string]any `json:"comment,omitempty"`
}

func (CommentUpdate) Kind() string { return "comment_update" }

type ConnectionUpdate struct {
	UserID          string                  `json:"user_id"`
	ConnectedUserID string                  `json:"connected_user_id"`
	Action          domain.ConnectionAction `json:"action"`
}

func (ConnectionUpdate) Kind() string { return "connection_update" }

// ErrorNotice tells the client one of its frames was rejected. The connection
// stays up.
type ErrorNotice struct {
	Message string `json:"message"`
}

func (ErrorNotice) Kind() string { return "error" }

type SystemAnnouncement struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (SystemAnnouncement) Kind() string { return "system_announcement" }
