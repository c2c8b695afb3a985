package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind is the closed set of notification categories.
type NotificationKind string

const (
	KindLike       NotificationKind = "like"
	KindComment    NotificationKind = "comment"
	KindConnection NotificationKind = "connection"
	KindMention    NotificationKind = "mention"
	KindSystem     NotificationKind = "system"
)

// Draft is what a broadcaster hands to the delivery pipeline. The pipeline
// assigns the id and creation timestamp when it persists the draft.
type Draft struct {
	Kind    NotificationKind
	Title   string
	Body    string
	Payload map[string]any
}

// Notification is the durable record. After creation it is only ever
// mutated by the mark-read path, never by the delivery pipeline.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Payload   map[string]any   `json:"payload,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}

// ReplayKey is the cache key holding a copy of a notification for
// offline replay.
func ReplayKey(userID string, id uuid.UUID) string {
	return ReplayPrefix(userID) + id.String()
}

// ReplayPrefix scans every cached notification of one user.
func ReplayPrefix(userID string) string {
	return "replay:" + userID + ":"
}
