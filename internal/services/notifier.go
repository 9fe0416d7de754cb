package services

import (
	"context"
	"fmt"
	"time"

	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier forwards bet events to an external HTTP endpoint.
// 5xx responses and transport errors are retried.
type WebhookNotifier struct {
	url    string
	client *resty.Client
	log    *zap.Logger
}

func NewWebhookNotifier(url string, log *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})
	return &WebhookNotifier{url: url, client: client, log: log}
}

type notification struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, event events.Event) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(notification{Type: event.Type, Payload: event.Payload, SentAt: time.Now().UTC()}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook unavailable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), truncate(resp.String(), 512))
	}
	return nil
}

// Forward is a subscriber handler; failures are logged and dropped.
func (n *WebhookNotifier) Forward(ctx context.Context) func(events.Event) {
	return func(event events.Event) {
		if err := n.Notify(ctx, event); err != nil {
			n.log.Warn("failed to forward notification", zap.String("type", event.Type), zap.Error(err))
			return
		}
		n.log.Debug("notification forwarded", zap.String("type", event.Type))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
