package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pulse/domain"
)

func TestWebhook_Send(t *testing.T) {
	record := domain.Notification{
		ID:     uuid.New(),
		UserID: "alice",
		Kind:   domain.KindLike,
		Title:  "New like",
		Body:   "Bob liked your post",
	}

	t.Run("should post the payload to the provider endpoint", func(t *testing.T) {
		req := require.New(t)

		var received map[string]any
		provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req.Equal(http.MethodPost, r.Method)
			req.Equal("application/json", r.Header.Get("Content-Type"))
			req.NoError(json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer provider.Close()

		webhook := NewWebhook(slog.Default(), provider.URL, time.Second)

		req.NoError(webhook.Send(context.Background(), "alice", record))
		req.Equal("alice", received["user_id"])
		req.Equal("like", received["kind"])
		req.Equal("New like", received["title"])
	})

	t.Run("should fail on a non 2xx provider answer", func(t *testing.T) {
		req := require.New(t)

		provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer provider.Close()

		webhook := NewWebhook(slog.Default(), provider.URL, time.Second)

		req.Error(webhook.Send(context.Background(), "alice", record))
	})

	t.Run("should be a no-op when no endpoint is configured", func(t *testing.T) {
		req := require.New(t)

		webhook := NewWebhook(slog.Default(), "", time.Second)

		req.NoError(webhook.Send(context.Background(), "alice", record))
	})
}
