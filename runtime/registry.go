// Package runtime holds the in-process mutable state of the hub: the
// connection registry and the room membership index, plus the fan-out
// primitive built on both. It orchestrates delivery without containing
// business logic or domain rules.
package runtime

import (
	"sync"

	"github.com/samber/lo"

	"pulse/contract"
	"pulse/domain"
)

// Registry owns the identity→session mapping and nothing else. The mutex is
// held only for map mutation, never across I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.LiveSession
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.LiveSession)}
}

// Put records the session keyed by its identity. A prior session for the
// same identity is overwritten (last-writer-wins) and returned so the caller
// can log the replacement; the registry never closes it itself.
func (r *Registry) Put(s contract.LiveSession) contract.LiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := s.Identity().UserID
	replaced := r.sessions[userID]
	r.sessions[userID] = s
	return replaced
}

// Drop removes the entry for the session's identity only if it still points
// at this very session. When two handshakes race, the close of the losing
// session must not evict the winner.
func (r *Registry) Drop(s contract.LiveSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := s.Identity().UserID
	if current, ok := r.sessions[userID]; !ok || current != s {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *Registry) Get(userID string) (contract.LiveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Get(userID)
	return ok
}

func (r *Registry) CountOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) ListOnline() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapToSlice(r.sessions, func(_ string, s contract.LiveSession) domain.Identity {
		return s.Identity()
	})
}
