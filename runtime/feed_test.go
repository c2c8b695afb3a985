package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pulse/domain"
	"pulse/domain/event"
)

func TestFeed_Publish(t *testing.T) {
	t.Run("should deliver the events in order to every room member", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := NewRegistry()
		rooms := NewRoomIndex()
		feed := NewFeed(slog.Default(), registry, rooms, time.Second)

		first := event.RoomJoined{Room: domain.RoomGeneral}
		second := event.RoomLeft{Room: domain.RoomGeneral}

		for _, userID := range []string{"alice", "bob"} {
			session := newSession(ctrl, userID)
			gomock.InOrder(
				session.EXPECT().Consume(gomock.Any(), first).Return(nil).Times(1),
				session.EXPECT().Consume(gomock.Any(), second).Return(nil).Times(1),
			)
			registry.Put(session)
			rooms.Join(userID, domain.RoomGeneral)
		}

		feed.Publish(context.Background(), domain.RoomGeneral, first, second)
	})

	t.Run("should skip members without a live session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := NewRegistry()
		rooms := NewRoomIndex()
		feed := NewFeed(slog.Default(), registry, rooms, time.Second)

		online := newSession(ctrl, "alice")
		online.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)
		registry.Put(online)
		rooms.Join("alice", domain.RoomGeneral)
		// Bob left his membership behind without a session in the registry.
		rooms.Join("bob", domain.RoomGeneral)

		feed.Publish(context.Background(), domain.RoomGeneral, event.RoomJoined{Room: domain.RoomGeneral})
	})

	t.Run("should keep delivering when one sink fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := NewRegistry()
		rooms := NewRoomIndex()
		feed := NewFeed(slog.Default(), registry, rooms, time.Second)

		for _, userID := range []string{"alice", "bob"} {
			session := newSession(ctrl, userID)
			err := context.DeadlineExceeded
			if userID == "bob" {
				err = nil
			}
			session.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(err).Times(1)
			registry.Put(session)
			rooms.Join(userID, domain.RoomGeneral)
		}

		feed.Publish(context.Background(), domain.RoomGeneral, event.RoomJoined{Room: domain.RoomGeneral})
	})
}

func TestFeed_SendTo(t *testing.T) {
	t.Run("should deliver directly to the user's session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		req := require.New(t)

		registry := NewRegistry()
		feed := NewFeed(slog.Default(), registry, NewRoomIndex(), time.Second)

		evt := event.ConnectionAck{UserID: "alice"}
		session := newSession(ctrl, "alice")
		session.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
		registry.Put(session)

		req.True(feed.SendTo(context.Background(), "alice", evt))
	})

	t.Run("should report false when the user is offline", func(t *testing.T) {
		req := require.New(t)

		feed := NewFeed(slog.Default(), NewRegistry(), NewRoomIndex(), time.Second)

		req.False(feed.SendTo(context.Background(), "ghost", event.ConnectionAck{UserID: "ghost"}))
	})
}
