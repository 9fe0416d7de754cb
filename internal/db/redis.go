package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisOptions parses url (redis://[:pass@]host:port/db) and names the
// connection so CLIENT LIST tells the api, worker and indexer apart.
func redisOptions(url, clientName string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}
	return opts, nil
}

// NewRedisClient connects and pings. Redis carries the event stream, login
// challenges, the indexer cursor and rate limits.
func NewRedisClient(ctx context.Context, url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redisOptions(url, "coinflip-escrow")
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	log.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}
