// Package api exposes the hub's entry points to the rest of the backend:
// the five broadcasters and direct delivery. Route handlers and background
// jobs call these endpoints after committing their own business action, so
// a realtime failure can never fail the action that triggered it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"pulse/contract"
	"pulse/domain"
	pulseerrors "pulse/errors"
)

// Broadcaster is the subset of services.Broadcaster the API fronts.
type Broadcaster interface {
	PostChanged(ctx context.Context, change domain.PostChange)
	LikeChanged(ctx context.Context, change domain.LikeChange)
	CommentChanged(ctx context.Context, change domain.CommentChange)
	ConnectionChanged(ctx context.Context, change domain.ConnectionChange)
	Announce(ctx context.Context, announcement domain.Announcement)
}

type Server struct {
	log         *slog.Logger
	broadcaster Broadcaster
	notifier    contract.INotifier
	store       contract.NotificationStore
	registry    contract.IRegistry
	validate    *validator.Validate
}

func NewServer(log *slog.Logger, broadcaster Broadcaster, notifier contract.INotifier,
	store contract.NotificationStore, registry contract.IRegistry) *Server {
	return &Server{
		log:         log,
		broadcaster: broadcaster,
		notifier:    notifier,
		store:       store,
		registry:    registry,
		validate:    validator.New(),
	}
}

// Register mounts the internal endpoints on the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/broadcast/post", s.handlePost)
	mux.HandleFunc("POST /internal/broadcast/like", s.handleLike)
	mux.HandleFunc("POST /internal/broadcast/comment", s.handleComment)
	mux.HandleFunc("POST /internal/broadcast/connection", s.handleConnection)
	mux.HandleFunc("POST /internal/broadcast/announce", s.handleAnnounce)
	mux.HandleFunc("POST /internal/deliver", s.handleDeliver)
	mux.HandleFunc("GET /internal/notifications/{user}", s.handleListUnread)
	mux.HandleFunc("POST /internal/notifications/{user}/{id}/read", s.handleMarkRead)
	mux.HandleFunc("GET /internal/online", s.handleOnline)
}

type postRequest struct {
	PostID     string         `json:"post_id" validate:"required"`
	AuthorID   string         `json:"author_id" validate:"required"`
	AuthorName string         `json:"author_name"`
	Action     string         `json:"action" validate:"required,oneof=created updated deleted"`
	Post       map[string]any `json:"post,omitempty"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.broadcaster.PostChanged(r.Context(), domain.PostChange{
		PostID:     req.PostID,
		AuthorID:   req.AuthorID,
		AuthorName: req.AuthorName,
		Action:     domain.Action(req.Action),
		Post:       req.Post,
	})
	w.WriteHeader(http.StatusAccepted)
}

type likeRequest struct {
	PostID    string `json:"post_id" validate:"required"`
	OwnerID   string `json:"owner_id" validate:"required"`
	ActorID   string `json:"actor_id" validate:"required"`
	ActorName string `json:"actor_name"`
	Action    string `json:"action" validate:"required,oneof=liked unliked"`
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.broadcaster.LikeChanged(r.Context(), domain.LikeChange{
		PostID:    req.PostID,
		OwnerID:   req.OwnerID,
		ActorID:   req.ActorID,
		ActorName: req.ActorName,
		Action:    domain.LikeAction(req.Action),
	})
	w.WriteHeader(http.StatusAccepted)
}

type commentRequest struct {
	PostID    string         `json:"post_id" validate:"required"`
	CommentID string         `json:"comment_id" validate:"required"`
	OwnerID   string         `json:"owner_id" validate:"required"`
	ActorID   string         `json:"actor_id" validate:"required"`
	ActorName string         `json:"actor_name"`
	Action    string         `json:"action" validate:"required,oneof=created updated deleted"`
	Comment   map[string]any `json:"comment,omitempty"`
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.broadcaster.CommentChanged(r.Context(), domain.CommentChange{
		PostID:    req.PostID,
		CommentID: req.CommentID,
		OwnerID:   req.OwnerID,
		ActorID:   req.ActorID,
		ActorName: req.ActorName,
		Action:    domain.Action(req.Action),
		Comment:   req.Comment,
	})
	w.WriteHeader(http.StatusAccepted)
}

type connectionRequest struct {
	InitiatorID   string `json:"initiator_id" validate:"required"`
	InitiatorName string `json:"initiator_name"`
	TargetID      string `json:"target_id" validate:"required"`
	Action        string `json:"action" validate:"required,oneof=connected disconnected"`
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.broadcaster.ConnectionChanged(r.Context(), domain.ConnectionChange{
		InitiatorID:   req.InitiatorID,
		InitiatorName: req.InitiatorName,
		TargetID:      req.TargetID,
		Action:        domain.ConnectionAction(req.Action),
	})
	w.WriteHeader(http.StatusAccepted)
}

type announceRequest struct {
	Title   string         `json:"title" validate:"required"`
	Message string         `json:"message" validate:"required"`
	Data    map[string]any `json:"data,omitempty"`
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.broadcaster.Announce(r.Context(), domain.Announcement{
		Title:   req.Title,
		Message: req.Message,
		Data:    req.Data,
	})
	w.WriteHeader(http.StatusAccepted)
}

type deliverRequest struct {
	Recipient string         `json:"recipient" validate:"required"`
	Kind      string         `json:"kind" validate:"required,oneof=like comment connection mention system"`
	Title     string         `json:"title" validate:"required"`
	Body      string         `json:"body"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// handleDeliver is the one endpoint whose failure is visible to the caller:
// when the durable store did not record the notification, the caller must
// know delivery was not guaranteed.
func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	var req deliverRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.notifier.Deliver(r.Context(), req.Recipient, domain.Draft{
		Kind:    domain.NotificationKind(req.Kind),
		Title:   req.Title,
		Body:    req.Body,
		Payload: req.Payload,
	})
	if err != nil {
		if errors.Is(err, pulseerrors.ErrPersistNotification) {
			http.Error(w, "delivery not guaranteed", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "delivery failed", http.StatusInternalServerError)
		return
	}
	s.reply(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleListUnread(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	notifications, err := s.store.ListUnread(r.Context(), userID)
	if err != nil {
		s.log.Error("Listing unread notifications failed", "user_id", userID, "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	s.reply(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "malformed notification id", http.StatusBadRequest)
		return
	}
	if err := s.store.MarkRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, pulseerrors.ErrNotificationNotFound) {
			http.Error(w, "unknown notification", http.StatusNotFound)
			return
		}
		s.log.Error("Marking notification read failed",
			"user_id", userID, "notification_id", id, "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]any{
		"count": s.registry.CountOnline(),
		"users": s.registry.ListOnline(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(into); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("Reply encoding failed", "error", err)
	}
}
