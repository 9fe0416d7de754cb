package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/db"
	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/coinflip-escrow/backend/internal/repositories"
	"github.com/coinflip-escrow/backend/internal/ton"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

const pollInterval = 5 * time.Second

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TONHotWalletAddress == "" {
		log.Fatal("TON_HOT_WALLET_ADDRESS is required")
	}

	hotWallet, err := address.ParseAddr(cfg.TONHotWalletAddress)
	if err != nil {
		log.Fatal("invalid TON_HOT_WALLET_ADDRESS", zap.String("addr", cfg.TONHotWalletAddress), zap.Error(err))
	}

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

	tonAPI, err := ton.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	indexer := ton.NewIndexer(tonAPI, hotWallet, ton.NewRedisCursor(rdb), applyDeposit(pool), events.NewRedisPublisher(rdb, log), log)

	log.Info("TON indexer started",
		zap.String("hot_wallet", hotWallet.String()),
		zap.String("network", cfg.TONNetwork),
	)

	if err := indexer.Init(ctx); err != nil {
		log.Fatal("failed to init cursor", zap.Error(err))
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := indexer.Poll(ctx); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down TON indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// applyDeposit records the transfer and credits the account in one transaction.
func applyDeposit(pool *pgxpool.Pool) ton.DepositFunc {
	return func(ctx context.Context, d *models.Deposit) (bool, error) {
		var applied bool
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			var err error
			applied, err = repositories.NewAccountRepo(tx).ApplyDeposit(ctx, d)
			return err
		})
		return applied, err
	}
}
