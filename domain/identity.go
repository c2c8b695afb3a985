// Package domain contains core concepts of the realtime hub.
// No runtime, network, or storage logic should be added here.
package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Identity is the authenticated principal bound to a live session.
// It is immutable for the lifetime of the session that carries it.
type Identity struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}

// IsStaff reports whether the identity may join the administrative room.
func (i Identity) IsStaff() bool {
	return i.Role == RoleAdmin || i.Role == RoleModerator
}
