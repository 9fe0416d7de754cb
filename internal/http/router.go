package http

import (
	"time"

	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/http/handlers"
	"github.com/coinflip-escrow/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	betHandler *handlers.BetHandler,
	accountHandler *handlers.AccountHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "storage": cfg.Storage, "ws_clients": wsHub.Connected()})
	})

	api := app.Group("/api/v1")

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Auth (public)
	api.Post("/auth/challenge", authHandler.Challenge)
	api.Post("/auth/login", authHandler.Login)

	// Public reads
	api.Get("/bets/:commitment", betHandler.GetBet)
	api.Get("/bets/:commitment/events", betHandler.GetBetEvents)
	api.Post("/tools/commitment", handlers.Commitment)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Account
	protected.Get("/me/balance", accountHandler.GetBalance)
	if cfg.FaucetEnabled {
		protected.Post("/me/faucet", accountHandler.Faucet)
	}

	// Bets
	protected.Post("/bets", betHandler.ProposeBet)
	protected.Post("/bets/reveal", betHandler.Reveal)
	protected.Post("/bets/:commitment/accept", betHandler.AcceptBet)
	protected.Post("/bets/:commitment/settle", betHandler.SettleBet)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
