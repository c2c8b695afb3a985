package domain

// Room is a named broadcast group. A room has no lifecycle object of its
// own: it exists exactly as long as its membership set is non-empty.
type Room string

// Always-on rooms every session is subscribed to at handshake time.
const (
	// RoomGeneral carries the public feed and presence traffic.
	RoomGeneral Room = "general"
	// RoomBroadcast contains every connected identity and receives
	// system announcements.
	RoomBroadcast Room = "broadcast"
	// RoomAdmin is joined only by staff identities.
	RoomAdmin Room = "admin"
)

// PersonalRoom reaches all open sessions of a single user.
func PersonalRoom(userID string) Room {
	return Room("user:" + userID)
}

// PostRoom groups the sessions currently viewing a post.
func PostRoom(postID string) Room {
	return Room("post:" + postID)
}
