package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coinflip-escrow/backend/internal/auth"
	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/db"
	"github.com/coinflip-escrow/backend/internal/events"
	apphttp "github.com/coinflip-escrow/backend/internal/http"
	"github.com/coinflip-escrow/backend/internal/http/handlers"
	"github.com/coinflip-escrow/backend/internal/ledger"
	"github.com/coinflip-escrow/backend/internal/repositories"
	"github.com/coinflip-escrow/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deps is the storage-dependent half of the wiring.
type deps struct {
	backend    ledger.Backend
	audit      services.AuditStore
	publisher  events.Publisher
	subscriber events.Subscriber
	challenges auth.ChallengeStore
	rdb        *redis.Client
	cleanup    func()
}

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var d *deps
	if cfg.Storage == config.StorageMemory {
		d = memoryDeps()
	} else {
		d = postgresDeps(ctx, cfg, log)
	}
	defer d.cleanup()

	l := ledger.New(d.backend,
		ledger.WithRevealWindow(cfg.RevealWindow),
		ledger.WithMinStake(cfg.MinStakeNano),
		ledger.WithLogger(log),
	)

	// Services
	betService := services.NewBetService(l, d.audit, d.publisher, log)
	authService := services.NewAuthService(d.challenges, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	betHandler := handlers.NewBetHandler(betService, l.RevealWindow(), log)
	accountHandler := handlers.NewAccountHandler(betService, cfg.FaucetAmountNano, log)
	wsHub := handlers.NewWSHub(cfg, d.subscriber, log)

	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	// Без отдельного воркера keeper крутится здесь
	if cfg.Storage == config.StorageMemory {
		go services.NewKeeper(betService, cfg.KeeperInterval, cfg.KeeperBatchSize, log).Run(ctx)
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, d.rdb, authHandler, betHandler, accountHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("storage", cfg.Storage))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func memoryDeps() *deps {
	bus := events.NewLocalBus()
	return &deps{
		backend:    ledger.NewMemoryBackend(),
		audit:      services.NewMemoryAudit(),
		publisher:  bus,
		subscriber: bus,
		challenges: auth.NewMemoryChallengeStore(),
		cleanup:    func() {},
	}
}

func postgresDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) *deps {
	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// Run migrations
	if err := db.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}

	return &deps{
		backend:    ledger.NewPostgresBackend(pool),
		audit:      repositories.NewAuditRepo(pool),
		publisher:  events.NewRedisPublisher(rdb, log),
		subscriber: events.NewRedisSubscriber(rdb, log),
		challenges: auth.NewRedisChallengeStore(rdb),
		rdb:        rdb,
		cleanup: func() {
			_ = rdb.Close()
			pool.Close()
		},
	}
}
