package domain

// Change actions shared by post and comment events.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

type LikeAction string

const (
	ActionLiked   LikeAction = "liked"
	ActionUnliked LikeAction = "unliked"
)

type ConnectionAction string

const (
	ActionConnected    ConnectionAction = "connected"
	ActionDisconnected ConnectionAction = "disconnected"
)

// PostChange describes a mutation of a post, as reported by the route layer.
type PostChange struct {
	PostID     string
	AuthorID   string
	AuthorName string
	Action     Action
	Post       map[string]any
}

// LikeChange carries the post owner so the broadcaster can decide whether a
// notification is due without a round trip to the relational store.
type LikeChange struct {
	PostID    string
	OwnerID   string
	ActorID   string
	ActorName string
	Action    LikeAction
}

type CommentChange struct {
	PostID    string
	CommentID string
	OwnerID   string
	ActorID   string
	ActorName string
	Action    Action
	Comment   map[string]any
}

// ConnectionChange describes a social-graph edge change between two users.
// The initiator is the user whose action triggered the change.
type ConnectionChange struct {
	InitiatorID   string
	InitiatorName string
	TargetID      string
	Action        ConnectionAction
}

type Announcement struct {
	Title   string
	Message string
	Data    map[string]any
}
