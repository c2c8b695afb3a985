package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pulse/domain"
	"pulse/errors"
)

const notificationPrefix = "ntf"

// NotificationRepository persists notification records in BadgerDB.
// It implements contract.NotificationStore.
type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

// notificationKey is formatted as "ntf:{user_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if two
//     notifications arrive at the same nanosecond.
func notificationKey(userID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%019d:%s", notificationPrefix, userID, at.UnixNano(), id))
}

func userPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", notificationPrefix, userID))
}

func (r NotificationRepository) Create(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bytes, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := notificationKey(n.UserID, n.CreatedAt, n.ID)
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
}

// ListUnread returns the recipient's unread notifications, oldest first.
// Thanks to the padded timestamp in the key, records are naturally sorted by
// creation time.
func (r NotificationRepository) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := userPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var n domain.Notification
				if err := json.Unmarshal(value, &n); err != nil {
					return err
				}
				if !n.Read {
					out = append(out, n)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips the read flag and stamps the read time. The scan and the
// rewrite happen inside one transaction so a concurrent MarkRead for the
// same record cannot interleave.
func (r NotificationRepository) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		prefix := userPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var n domain.Notification
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &n)
			})
			if err != nil {
				return err
			}
			if n.ID != id {
				continue
			}
			if n.Read {
				return nil
			}
			now := time.Now().UTC()
			n.Read = true
			n.ReadAt = &now
			bytes, err := json.Marshal(n)
			if err != nil {
				return err
			}
			return txn.Set(item.KeyCopy(nil), bytes)
		}
		return errors.ErrNotificationNotFound
	})
}
