package runtime

import (
	"context"
	"log/slog"
	"time"

	"pulse/contract"
	"pulse/domain"
	"pulse/domain/event"
)

// Feed is the fan-out primitive: it resolves a room to its current sessions
// and hands each one the events in publish order. It implements
// contract.LiveFeed.
type Feed struct {
	log         *slog.Logger
	registry    contract.IRegistry
	rooms       contract.IRoomIndex
	sinkTimeout time.Duration
}

func NewFeed(log *slog.Logger, registry contract.IRegistry, rooms contract.IRoomIndex,
	sinkTimeout time.Duration) *Feed {
	return &Feed{log: log, registry: registry, rooms: rooms, sinkTimeout: sinkTimeout}
}

// Publish delivers the events to every current member of the room. Each
// member receives the events in the order they were issued; no ordering
// holds across distinct Publish calls. Members without a live session are
// skipped, and a failing sink never aborts delivery to the others.
func (f *Feed) Publish(ctx context.Context, room domain.Room, events ...event.DomainEvent) {
	for _, userID := range f.rooms.MembersOf(room) {
		session, ok := f.registry.Get(userID)
		if !ok {
			continue
		}
		f.consumeAll(ctx, session, events)
	}
}

// SendTo delivers directly to one user's session, bypassing rooms. Reports
// false when the user has no live session.
func (f *Feed) SendTo(ctx context.Context, userID string, events ...event.DomainEvent) bool {
	session, ok := f.registry.Get(userID)
	if !ok {
		return false
	}
	f.consumeAll(ctx, session, events)
	return true
}

func (f *Feed) consumeAll(ctx context.Context, session contract.LiveSession, events []event.DomainEvent) {
	for _, evt := range events {
		sinkCtx, cancel := context.WithTimeout(ctx, f.sinkTimeout)
		err := session.Consume(sinkCtx, evt)
		cancel()
		if err != nil {
			f.log.Warn("Sink rejected event",
				"user_id", session.Identity().UserID,
				"event", evt.Kind(),
				"error", err)
		}
	}
}
