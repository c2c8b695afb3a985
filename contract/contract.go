//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"

	"pulse/domain"
	"pulse/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; supervision handles panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events fanned out to it. Implementations must
// not block longer than the context allows.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// LiveSession is one authenticated duplex connection. A session that has
// been closed swallows writes silently: a stale send is expected under
// concurrent disconnect races, not an error.
type LiveSession interface {
	EventSink
	Identity() domain.Identity
	OpenedAt() time.Time
	Close()
}

// IRegistry owns the identity→session mapping. At most one session per
// identity: a later Put for the same identity replaces the earlier entry.
type IRegistry interface {
	Put(s LiveSession) (replaced LiveSession)
	// Drop removes the entry only if it still points at s, guarding against
	// removing a newer session when two handshakes raced.
	Drop(s LiveSession) bool
	Get(userID string) (LiveSession, bool)
	IsOnline(userID string) bool
	CountOnline() int
	ListOnline() []domain.Identity
}

// IRoomIndex is the bidirectional identity↔room membership mapping.
type IRoomIndex interface {
	Join(userID string, room domain.Room)
	Leave(userID string, room domain.Room)
	MembersOf(room domain.Room) []string
	RoomsOf(userID string) []domain.Room
	// Purge removes the user from every room, atomically with respect to
	// concurrent readers. It returns the rooms that were left.
	Purge(userID string) []domain.Room
}

// LiveFeed is the fan-out primitive broadcasters publish through.
type LiveFeed interface {
	// Publish delivers the events, in order, to every current member of the
	// room. Ordering is only guaranteed within a single Publish call.
	Publish(ctx context.Context, room domain.Room, events ...event.DomainEvent)
	// SendTo delivers directly to one user's session. Reports false when
	// the user has no live session.
	SendTo(ctx context.Context, userID string, events ...event.DomainEvent) bool
}

// CredentialVerifier authenticates a bearer token. Failure is a value, never
// a panic or a typed reason that would leak why the token was rejected.
type CredentialVerifier interface {
	Verify(token string) (domain.Identity, bool)
}

// NotificationStore is the durable, authoritative notification record store.
type NotificationStore interface {
	Create(ctx context.Context, n domain.Notification) error
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) error
}

// PushChannel reaches a user's registered off-band endpoints (mobile/web
// push). Best-effort: errors are reported but deliveries are never retried.
type PushChannel interface {
	Send(ctx context.Context, userID string, n domain.Notification) error
}

// ReplayCache holds notification copies with a TTL so reconnecting users can
// be made whole without querying the durable store. Loss of the cache is not
// a correctness failure.
type ReplayCache interface {
	Set(ctx context.Context, key string, n domain.Notification, ttl time.Duration) error
	ListByPrefix(ctx context.Context, prefix string) ([]domain.Notification, error)
}

// SocialGraph resolves audiences from the relational store, which this
// subsystem otherwise never touches.
type SocialGraph interface {
	FollowersOf(ctx context.Context, userID string) ([]string, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// INotifier is the guaranteed-delivery pipeline.
type INotifier interface {
	Deliver(ctx context.Context, recipient string, draft domain.Draft) (uuid.UUID, error)
	// Replay pushes the recipient's cached notifications over a freshly
	// opened session without deleting them (at-least-once).
	Replay(ctx context.Context, session LiveSession)
}
