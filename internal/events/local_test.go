package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestLocalBusDeliversToStreamSubscribers(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	var got []string
	_ = bus.Subscribe(ctx, StreamBets, func(e Event) { got = append(got, e.Type) })
	_ = bus.Subscribe(ctx, "events:other", func(e Event) { t.Errorf("unexpected delivery of %s", e.Type) })

	_ = bus.Publish(ctx, StreamBets, Event{Type: EventBetProposed})
	_ = bus.Publish(ctx, StreamBets, Event{Type: EventBetAccepted})

	if len(got) != 2 || got[0] != EventBetProposed || got[1] != EventBetAccepted {
		t.Fatalf("delivered = %v", got)
	}
	if n := len(bus.Published()); n != 2 {
		t.Errorf("Published() len = %d, want 2", n)
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, string, Event) error {
	f.calls++
	return errors.New("redis down")
}

func TestPublishAllContinuesAfterFailure(t *testing.T) {
	p := &failingPublisher{}
	PublishAll(context.Background(), p, StreamBets, []Event{{Type: EventBetProposed}, {Type: EventBetSettled}}, zap.NewNop())
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}
