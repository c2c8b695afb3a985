package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pulse/contract"
	"pulse/domain"
	"pulse/domain/event"
	"pulse/errors"
)

// Notifier is the guaranteed-delivery pipeline. For every delivery it
// persists the record, pushes it over the recipient's live session when one
// exists, always attempts the off-band push channel, and caches a copy for
// replay. Only the persistence step can fail the call.
type Notifier struct {
	log            *slog.Logger
	store          contract.NotificationStore
	push           contract.PushChannel
	cache          contract.ReplayCache
	feed           contract.LiveFeed
	persistTimeout time.Duration
	pushTimeout    time.Duration
	cacheTimeout   time.Duration
	replayTTL      time.Duration
}

func NewNotifier(log *slog.Logger, store contract.NotificationStore,
	push contract.PushChannel, cache contract.ReplayCache, feed contract.LiveFeed,
	persistTimeout, pushTimeout, cacheTimeout, replayTTL time.Duration) *Notifier {
	return &Notifier{
		log:            log,
		store:          store,
		push:           push,
		cache:          cache,
		feed:           feed,
		persistTimeout: persistTimeout,
		pushTimeout:    pushTimeout,
		cacheTimeout:   cacheTimeout,
		replayTTL:      replayTTL,
	}
}

// Deliver records the draft durably and then spreads it across the delivery
// channels. The durable store is written first and is the only step whose
// failure (or timeout) is surfaced: callers asking for a durable
// notification need to know it was not recorded. Live, push and cache
// failures are logged and swallowed.
func (n *Notifier) Deliver(ctx context.Context, recipient string, draft domain.Draft) (uuid.UUID, error) {
	record := domain.Notification{
		ID:        uuid.New(),
		UserID:    recipient,
		Kind:      draft.Kind,
		Title:     draft.Title,
		Body:      draft.Body,
		Payload:   draft.Payload,
		CreatedAt: time.Now().UTC(),
	}

	persistCtx, cancel := context.WithTimeout(ctx, n.persistTimeout)
	defer cancel()
	if err := n.store.Create(persistCtx, record); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errors.ErrPersistNotification, err)
	}

	// Absence of a live session is not an error; the recipient is simply
	// offline on this channel.
	n.feed.SendTo(ctx, recipient, event.NotificationDelivered{Notification: record})

	// Off-band push happens even when the live send succeeded: the user may
	// be online on one device and unreachable on another. The duplication is
	// the cost of reaching every device.
	go n.pushOut(record)
	go n.cacheCopy(record)

	return record.ID, nil
}

// Replay pushes every cached notification of the session's identity over the
// freshly opened session. Entries are never deleted from the cache, so a
// reconnect within the TTL window sees them again: replay is at-least-once.
func (n *Notifier) Replay(ctx context.Context, session contract.LiveSession) {
	userID := session.Identity().UserID
	records, err := n.cache.ListByPrefix(ctx, domain.ReplayPrefix(userID))
	if err != nil {
		n.log.Warn("Replay cache unavailable, skipping replay", "user_id", userID, "error", err)
		return
	}
	for _, record := range records {
		if err := session.Consume(ctx, event.NotificationDelivered{Notification: record}); err != nil {
			n.log.Warn("Replay delivery failed",
				"user_id", userID, "notification_id", record.ID, "error", err)
		}
	}
}

func (n *Notifier) pushOut(record domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.pushTimeout)
	defer cancel()
	if err := n.push.Send(ctx, record.UserID, record); err != nil {
		n.log.Warn("Push channel delivery failed",
			"user_id", record.UserID, "notification_id", record.ID, "error", err)
	}
}

func (n *Notifier) cacheCopy(record domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cacheTimeout)
	defer cancel()
	key := domain.ReplayKey(record.UserID, record.ID)
	if err := n.cache.Set(ctx, key, record, n.replayTTL); err != nil {
		n.log.Warn("Replay cache write failed",
			"user_id", record.UserID, "notification_id", record.ID, "error", err)
	}
}
