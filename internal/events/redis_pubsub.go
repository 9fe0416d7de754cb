package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, stream, data).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, stream, err)
	}
	return nil
}

type RedisSubscriber struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisSubscriber(client *redis.Client, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, log: log}
}

// Subscribe blocks until the subscription is confirmed, then dispatches
// messages to handler on a background goroutine until ctx is done.
func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", stream, err)
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Error("failed to unmarshal event", zap.String("stream", stream), zap.Error(err))
					continue
				}
				handler(event)
			}
		}
	}()

	return nil
}

// PublishAll publishes events in order. Failures are logged and do not stop
// the remaining events: notifications are best effort once state is committed.
func PublishAll(ctx context.Context, p Publisher, stream string, evs []Event, log *zap.Logger) {
	for _, ev := range evs {
		if err := p.Publish(ctx, stream, ev); err != nil {
			log.Warn("event publish failed", zap.String("type", ev.Type), zap.Error(err))
		}
	}
}
