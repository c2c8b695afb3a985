package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pulse/domain"
	"pulse/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func notification(userID string, kind domain.NotificationKind, at time.Time) domain.Notification {
	return domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Title:     "title",
		Body:      "body",
		CreatedAt: at,
	}
}

func Test_Create_And_List_Unread_Oldest_First(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	at := time.Now().UTC()
	records := []domain.Notification{
		notification("alice", domain.KindLike, at),
		notification("alice", domain.KindComment, at.Add(1*time.Minute)),
		notification("alice", domain.KindSystem, at.Add(2*time.Minute)),
	}
	// Insert out of order; the padded key restores chronology.
	for _, i := range []int{2, 0, 1} {
		req.NoError(repository.Create(ctx, records[i]))
	}

	unread, err := repository.ListUnread(ctx, "alice")

	req.NoError(err)
	req.Len(unread, 3)
	for i, n := range unread {
		req.Equal(records[i].ID, n.ID)
	}
}

func Test_List_Unread_Is_Scoped_To_One_User(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	at := time.Now().UTC()
	req.NoError(repository.Create(ctx, notification("alice", domain.KindLike, at)))
	req.NoError(repository.Create(ctx, notification("bob", domain.KindLike, at)))

	unread, err := repository.ListUnread(ctx, "alice")

	req.NoError(err)
	req.Len(unread, 1)
	req.Equal("alice", unread[0].UserID)
}

func Test_Mark_Read_Removes_From_Unread(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	at := time.Now().UTC()
	first := notification("alice", domain.KindLike, at)
	second := notification("alice", domain.KindComment, at.Add(1*time.Minute))
	req.NoError(repository.Create(ctx, first))
	req.NoError(repository.Create(ctx, second))

	req.NoError(repository.MarkRead(ctx, "alice", first.ID))

	unread, err := repository.ListUnread(ctx, "alice")
	req.NoError(err)
	req.Len(unread, 1)
	req.Equal(second.ID, unread[0].ID)
}

func Test_Mark_Read_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	record := notification("alice", domain.KindLike, time.Now().UTC())
	req.NoError(repository.Create(ctx, record))

	req.NoError(repository.MarkRead(ctx, "alice", record.ID))
	req.NoError(repository.MarkRead(ctx, "alice", record.ID))
}

func Test_Mark_Read_Unknown_Notification(t *testing.T) {
	req := require.New(t)
	repository := NewNotificationRepository(openTestDB(t), slog.Default())

	err := repository.MarkRead(context.Background(), "alice", uuid.New())

	req.ErrorIs(err, errors.ErrNotificationNotFound)
}
