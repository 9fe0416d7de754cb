package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coinflip-escrow/backend/internal/config"
	"github.com/coinflip-escrow/backend/internal/db"
	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/services"
	"go.uber.org/zap"
)

// Notify Bridge — optional small service that subscribes to bet events in
// Redis and forwards them to NOTIFY_WEBHOOK_URL.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	notifier := services.NewWebhookNotifier(cfg.NotifyWebhookURL, log)

	if err := subscriber.Subscribe(ctx, events.StreamBets, notifier.Forward(ctx)); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}
	log.Info("notify-bridge started", zap.String("stream", events.StreamBets))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
