package runtime

import (
	"sync"

	"github.com/samber/lo"

	"pulse/domain"
)

type memberSet map[string]struct{}
type roomSet map[domain.Room]struct{}

// RoomIndex maintains both directions of the identity↔room mapping under a
// single mutex, so no reader can ever observe one side without the other.
type RoomIndex struct {
	mu      sync.RWMutex
	rooms   map[string]roomSet        // user -> rooms
	members map[domain.Room]memberSet // room -> users
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		rooms:   make(map[string]roomSet),
		members: make(map[domain.Room]memberSet),
	}
}

// Join is idempotent: adding an existing membership is a no-op.
func (i *RoomIndex) Join(userID string, room domain.Room) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.rooms[userID]; !ok {
		i.rooms[userID] = make(roomSet)
	}
	i.rooms[userID][room] = struct{}{}

	if _, ok := i.members[room]; !ok {
		i.members[room] = make(memberSet)
	}
	i.members[room][userID] = struct{}{}
}

// Leave is idempotent: removing an absent membership is a no-op. Empty sets
// are pruned so the maps do not grow with dead rooms over time.
func (i *RoomIndex) Leave(userID string, room domain.Room) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.leaveLocked(userID, room)
}

func (i *RoomIndex) leaveLocked(userID string, room domain.Room) {
	if rooms, ok := i.rooms[userID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(i.rooms, userID)
		}
	}
	if members, ok := i.members[room]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(i.members, room)
		}
	}
}

// MembersOf returns a snapshot of the room's membership.
func (i *RoomIndex) MembersOf(room domain.Room) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	members, ok := i.members[room]
	if !ok {
		return nil
	}
	return lo.Keys(members)
}

// RoomsOf returns a snapshot of the rooms the user belongs to.
func (i *RoomIndex) RoomsOf(userID string) []domain.Room {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rooms, ok := i.rooms[userID]
	if !ok {
		return nil
	}
	return lo.Keys(rooms)
}

// Purge removes the user from every room in one mutating operation, so a
// concurrent reader sees either full membership or none at all. Used on
// disconnect. Returns the rooms that were left.
func (i *RoomIndex) Purge(userID string) []domain.Room {
	i.mu.Lock()
	defer i.mu.Unlock()

	rooms, ok := i.rooms[userID]
	if !ok {
		return nil
	}
	left := lo.Keys(rooms)
	for _, room := range left {
		i.leaveLocked(userID, room)
	}
	return left
}
