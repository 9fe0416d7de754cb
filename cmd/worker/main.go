package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/db"
	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/ledger"
	"github.com/coinflip-escrow/backend/internal/repositories"
	"github.com/coinflip-escrow/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	if cfg.Storage == config.StorageMemory {
		log.Fatal("worker needs shared storage; with STORAGE=memory the API runs the keeper itself")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	l := ledger.New(ledger.NewPostgresBackend(pool),
		ledger.WithRevealWindow(cfg.RevealWindow),
		ledger.WithMinStake(cfg.MinStakeNano),
		ledger.WithLogger(log),
	)
	betService := services.NewBetService(l, repositories.NewAuditRepo(pool), events.NewRedisPublisher(rdb, log), log)
	keeper := services.NewKeeper(betService, cfg.KeeperInterval, cfg.KeeperBatchSize, log)

	// Health endpoint
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		lastRun := keeper.LastRun()
		stale := !lastRun.IsZero() && time.Since(lastRun) > 3*cfg.KeeperInterval
		status := fiber.StatusOK
		if stale {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   map[bool]string{false: "ok", true: "stale"}[stale],
			"last_run": lastRun,
		})
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		if err := app.Listen(addr); err != nil {
			log.Error("health server error", zap.Error(err))
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down worker")
		cancel()
		_ = app.Shutdown()
	}()

	log.Info("worker started")
	keeper.Run(ctx)
}
