package events

import "context"

// Stream carrying every bet lifecycle notification.
const StreamBets = "events:bet"

// Event types
const (
	EventBetProposed     = "BetProposed"
	EventBetAccepted     = "BetAccepted"
	EventBetRevealed     = "BetRevealed"
	EventBetSettled      = "BetSettled"
	EventDepositCredited = "DepositCredited"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
