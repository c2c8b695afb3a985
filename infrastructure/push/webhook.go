// Package push is the client for the external push-notification provider.
// The provider owns device registration and per-endpoint fan-out; the hub
// only hands it a payload and forgets about it.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pulse/domain"
)

// Webhook posts notification payloads to the provider's ingest endpoint.
// It implements contract.PushChannel. With an empty endpoint the channel is
// disabled and every send is a logged no-op, which keeps local setups free
// of a provider dependency.
type Webhook struct {
	log      *slog.Logger
	endpoint string
	client   *http.Client
}

func NewWebhook(log *slog.Logger, endpoint string, timeout time.Duration) *Webhook {
	return &Webhook{
		log:      log,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	UserID  string                  `json:"user_id"`
	Kind    domain.NotificationKind `json:"kind"`
	Title   string                  `json:"title"`
	Body    string                  `json:"body"`
	Payload map[string]any          `json:"payload,omitempty"`
}

func (w *Webhook) Send(ctx context.Context, userID string, n domain.Notification) error {
	if w.endpoint == "" {
		w.log.Debug("Push channel disabled, skipping", "user_id", userID)
		return nil
	}

	body, err := json.Marshal(payload{
		UserID:  userID,
		Kind:    n.Kind,
		Title:   n.Title,
		Body:    n.Body,
		Payload: n.Payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push provider answered %d", resp.StatusCode)
	}
	return nil
}
