package services

import (
	"context"
	"fmt"
	"log/slog"

	"pulse/contract"
	"pulse/domain"
	"pulse/domain/event"
)

// Broadcaster is the only surface the rest of the backend calls into this
// subsystem, next to Notifier.Deliver. Each method resolves the audience of
// one domain event kind and composes the live feed with the delivery
// pipeline. A broadcaster never propagates failure: the business action that
// triggered it must succeed even when realtime delivery does not.
type Broadcaster struct {
	log      *slog.Logger
	feed     contract.LiveFeed
	notifier contract.INotifier
	graph    contract.SocialGraph
}

func NewBroadcaster(log *slog.Logger, feed contract.LiveFeed,
	notifier contract.INotifier, graph contract.SocialGraph) *Broadcaster {
	return &Broadcaster{log: log, feed: feed, notifier: notifier, graph: graph}
}

// PostChanged publishes the change to the general feed room. A freshly
// created post additionally notifies the author's followers, resolved
// through the social graph.
func (b *Broadcaster) PostChanged(ctx context.Context, change domain.PostChange) {
	b.feed.Publish(ctx, domain.RoomGeneral, event.PostUpdate{
		PostID: change.PostID,
		Action: change.Action,
		Post:   change.Post,
	})

	if change.Action != domain.ActionCreated {
		return
	}
	followers, err := b.graph.FollowersOf(ctx, change.AuthorID)
	if err != nil {
		b.log.Error("Resolving followers failed", "author_id", change.AuthorID, "error", err)
		return
	}
	for _, followerID := range followers {
		if followerID == change.AuthorID {
			continue
		}
		b.deliver(ctx, followerID, domain.Draft{
			Kind:  domain.KindMention,
			Title: "New post",
			Body:  fmt.Sprintf("%s published a new post", change.AuthorName),
			Payload: map[string]any{
				"post_id":   change.PostID,
				"author_id": change.AuthorID,
			},
		})
	}
}

// LikeChanged publishes a live event to the post's room so current viewers
// see the count change. Only a like on someone else's post notifies the
// owner; unliking never does.
func (b *Broadcaster) LikeChanged(ctx context.Context, change domain.LikeChange) {
	b.feed.Publish(ctx, domain.PostRoom(change.PostID), event.LikeUpdate{
		PostID: change.PostID,
		UserID: change.ActorID,
		Action: change.Action,
	})

	if change.Action != domain.ActionLiked || change.ActorID == change.OwnerID {
		return
	}
	b.deliver(ctx, change.OwnerID, domain.Draft{
		Kind:  domain.KindLike,
		Title: "New like",
		Body:  fmt.Sprintf("%s liked your post", change.ActorName),
		Payload: map[string]any{
			"post_id": change.PostID,
			"user_id": change.ActorID,
		},
	})
}

// CommentChanged mirrors LikeChanged: per-post room publish, owner
// notification only for a created comment by someone else.
func (b *Broadcaster) CommentChanged(ctx context.Context, change domain.CommentChange) {
	b.feed.Publish(ctx, domain.PostRoom(change.PostID), event.CommentUpdate{
		PostID:    change.PostID,
		CommentID: change.CommentID,
		Action:    change.Action,
		Comment:   change.Comment,
	})

	if change.Action != domain.ActionCreated || change.ActorID == change.OwnerID {
		return
	}
	b.deliver(ctx, change.OwnerID, domain.Draft{
		Kind:  domain.KindComment,
		Title: "New comment",
		Body:  fmt.Sprintf("%s commented on your post", change.ActorName),
		Payload: map[string]any{
			"post_id":    change.PostID,
			"comment_id": change.CommentID,
			"user_id":    change.ActorID,
		},
	})
}

// ConnectionChanged publishes to both parties' personal rooms so every open
// tab of either user updates. A new connection notifies the party who did
// not initiate it.
func (b *Broadcaster) ConnectionChanged(ctx context.Context, change domain.ConnectionChange) {
	evt := event.ConnectionUpdate{
		UserID:          change.InitiatorID,
		ConnectedUserID: change.TargetID,
		Action:          change.Action,
	}
	b.feed.Publish(ctx, domain.PersonalRoom(change.InitiatorID), evt)
	b.feed.Publish(ctx, domain.PersonalRoom(change.TargetID), evt)

	if change.Action != domain.ActionConnected {
		return
	}
	b.deliver(ctx, change.TargetID, domain.Draft{
		Kind:  domain.KindConnection,
		Title: "New connection",
		Body:  fmt.Sprintf("You are now connected with %s", change.InitiatorName),
		Payload: map[string]any{
			"user_id": change.InitiatorID,
		},
	})
}

// Announce publishes to the room holding every connected identity and
// delivers a durable notification to every registered user, connected or
// not, so offline users still receive it through push or replay.
func (b *Broadcaster) Announce(ctx context.Context, announcement domain.Announcement) {
	b.feed.Publish(ctx, domain.RoomBroadcast, event.SystemAnnouncement{
		Title:   announcement.Title,
		Message: announcement.Message,
		Data:    announcement.Data,
	})

	userIDs, err := b.graph.ListUserIDs(ctx)
	if err != nil {
		b.log.Error("Listing users for announcement failed", "error", err)
		return
	}
	for _, userID := range userIDs {
		b.deliver(ctx, userID, domain.Draft{
			Kind:    domain.KindSystem,
			Title:   announcement.Title,
			Body:    announcement.Message,
			Payload: announcement.Data,
		})
	}
}

func (b *Broadcaster) deliver(ctx context.Context, recipient string, draft domain.Draft) {
	if _, err := b.notifier.Deliver(ctx, recipient, draft); err != nil {
		b.log.Error("Notification delivery failed",
			"recipient", recipient, "kind", draft.Kind, "error", err)
	}
}
