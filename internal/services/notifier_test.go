package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/coinflip-escrow/backend/internal/events"
	"go.uber.org/zap"
)

func TestWebhookNotifier(t *testing.T) {
	var got notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zap.NewNop())
	err := n.Notify(context.Background(), events.Event{
		Type:    events.EventBetSettled,
		Payload: map[string]any{"outcome": "coin_flip"},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.Type != events.EventBetSettled || got.Payload["outcome"] != "coin_flip" || got.SentAt.IsZero() {
		t.Errorf("unexpected notification %+v", got)
	}
}

func TestWebhookNotifierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zap.NewNop())
	if err := n.Notify(context.Background(), events.Event{Type: events.EventBetProposed}); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("webhook called %d times, want 3", got)
	}
	// Forward swallows the error
	n.Forward(context.Background())(events.Event{Type: events.EventBetProposed})
}

func TestWebhookNotifierDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zap.NewNop())
	if err := n.Notify(context.Background(), events.Event{Type: events.EventBetSettled}); err == nil {
		t.Fatal("expected an error for a 422 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("webhook called %d times, want 1", got)
	}
}
