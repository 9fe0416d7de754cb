package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/coinflip-escrow/backend/internal/auth"
	"github.com/coinflip-escrow/backend/internal/commit"
	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// wsFilter narrows what a socket receives. Deposit events only ever go to
// the credited account.
type wsFilter struct {
	addr common.Address
	bet  *common.Hash // ?commitment=
}

func (f wsFilter) matches(event events.Event) bool {
	if event.Type == events.EventDepositCredited {
		a, _ := event.Payload["address"].(string)
		return strings.EqualFold(a, f.addr.Hex())
	}
	if f.bet == nil {
		return true
	}
	key, _ := event.Payload["commitment_a"].(string)
	if key == "" {
		key, _ = event.Payload["commitment"].(string)
	}
	return strings.EqualFold(key, f.bet.Hex())
}

type wsClient struct {
	conn   *websocket.Conn
	filter wsFilter
	mu     sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub fans bet events out to connected sockets.
type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[*wsClient]struct{}
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:        cfg,
		subscriber: subscriber,
		log:        log,
		clients:    make(map[*wsClient]struct{}),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamBets, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal ws event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.filter.matches(event) {
			continue
		}
		if err := c.send(data); err != nil {
			h.log.Debug("ws write failed", zap.String("address", c.filter.addr.Hex()), zap.Error(err))
		}
	}
}

// Connected returns how many sockets are open.
func (h *WSHub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleWS serves /ws?token=<jwt>[&commitment=<commitmentA>].
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	reject := func(msg string) {
		b, _ := json.Marshal(fiber.Map{"error": msg})
		_ = conn.WriteMessage(websocket.TextMessage, b)
		conn.Close()
	}

	tokenStr := conn.Query("token")
	if tokenStr == "" {
		reject("missing token")
		return
	}
	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		reject("invalid token")
		return
	}

	client := &wsClient{conn: conn, filter: wsFilter{addr: claims.Addr()}}
	if raw := conn.Query("commitment"); raw != "" {
		bet, err := commit.ParseHash(raw)
		if err != nil {
			reject("invalid commitment")
			return
		}
		client.filter.bet = &bet
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
