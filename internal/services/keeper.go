package services

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Keeper periodically force-settles bets whose reveal window has elapsed.
type Keeper struct {
	bets     *BetService
	interval time.Duration
	batch    int
	log      *zap.Logger

	lastRun atomic.Int64 // unix seconds
}

func NewKeeper(bets *BetService, interval time.Duration, batch int, log *zap.Logger) *Keeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Keeper{bets: bets, interval: interval, batch: batch, log: log}
}

// Run blocks until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	k.log.Info("keeper started", zap.Duration("interval", k.interval), zap.Int("batch", k.batch))
	for {
		select {
		case <-ticker.C:
			k.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce drains expired bets, one batch at a time.
func (k *Keeper) RunOnce(ctx context.Context) int {
	total := 0
	for {
		n, err := k.bets.SettleExpired(ctx, k.batch)
		total += n
		if err != nil {
			k.log.Error("keeper run failed", zap.Error(err))
			break
		}
		if n < k.batch {
			break
		}
	}
	k.lastRun.Store(time.Now().Unix())
	if total > 0 {
		k.log.Info("expired bets settled", zap.Int("count", total))
	}
	return total
}

// LastRun is the completion time of the latest RunOnce, zero before the first.
func (k *Keeper) LastRun() time.Time {
	ts := k.lastRun.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}
