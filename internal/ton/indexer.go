package ton

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/coinflip-escrow/backend/internal/money"
	"github.com/redis/go-redis/v9"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	liteapi "github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const (
	redisCursorLT   = "ton-indexer:cursor:lt"
	redisCursorHash = "ton-indexer:cursor:hash"
	txBatchSize     = 100
)

// Cursor remembers the last processed transaction of the hot wallet.
type Cursor interface {
	Load(ctx context.Context) (lt uint64, hash []byte, ok bool, err error)
	Save(ctx context.Context, lt uint64, hash []byte) error
}

// DepositFunc records and credits a deposit. It reports false for a tx_ref
// that was already applied.
type DepositFunc func(ctx context.Context, d *models.Deposit) (bool, error)

type RedisCursor struct {
	rdb *redis.Client
}

func NewRedisCursor(rdb *redis.Client) *RedisCursor {
	return &RedisCursor{rdb: rdb}
}

func (c *RedisCursor) Load(ctx context.Context) (uint64, []byte, bool, error) {
	val, err := c.rdb.Get(ctx, redisCursorLT).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	lt, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, nil, false, fmt.Errorf("corrupt cursor %q: %w", val, err)
	}

	hashHex, err := c.rdb.Get(ctx, redisCursorHash).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, nil, false, err
	}
	hash, _ := hex.DecodeString(hashHex)
	return lt, hash, true, nil
}

func (c *RedisCursor) Save(ctx context.Context, lt uint64, hash []byte) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisCursorLT, strconv.FormatUint(lt, 10), 0)
		p.Set(ctx, redisCursorHash, hex.EncodeToString(hash), 0)
		return nil
	})
	return err
}

// Indexer polls the hot wallet and credits incoming transfers whose comment
// names an account.
type Indexer struct {
	api       liteapi.APIClientWrapped
	wallet    *address.Address
	cursor    Cursor
	apply     DepositFunc
	publisher events.Publisher
	log       *zap.Logger
}

func NewIndexer(api liteapi.APIClientWrapped, wallet *address.Address, cursor Cursor, apply DepositFunc, publisher events.Publisher, log *zap.Logger) *Indexer {
	return &Indexer{
		api:       api,
		wallet:    wallet,
		cursor:    cursor,
		apply:     apply,
		publisher: publisher,
		log:       log,
	}
}

// Init sets the initial cursor position on first run, so that only
// transactions arriving after startup are processed.
func (ix *Indexer) Init(ctx context.Context) error {
	lt, _, ok, err := ix.cursor.Load(ctx)
	if err != nil {
		return err
	}
	if ok {
		ix.log.Info("resuming from saved cursor", zap.Uint64("lt", lt))
		return nil
	}

	account, err := ix.account(ctx)
	if err != nil {
		ix.log.Warn("failed to get account for cursor init", zap.Error(err))
		return ix.cursor.Save(ctx, 0, nil)
	}
	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		ix.log.Info("hot wallet not active yet, starting from LT=0")
		return ix.cursor.Save(ctx, 0, nil)
	}

	ix.log.Info("cursor initialized at current account state",
		zap.Uint64("lt", account.LastTxLT),
		zap.String("hash", hex.EncodeToString(account.LastTxHash)),
	)
	return ix.cursor.Save(ctx, account.LastTxLT, account.LastTxHash)
}

// Poll runs a single cycle: fetch transactions newer than the cursor,
// credit deposits, then move the cursor. A failed credit leaves the cursor
// in place so the cycle is retried.
func (ix *Indexer) Poll(ctx context.Context) error {
	cursorLT, _, _, err := ix.cursor.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	account, err := ix.account(ctx)
	if err != nil {
		return err
	}
	if account == nil || !account.IsActive || account.LastTxLT <= cursorLT {
		return nil
	}

	txs, err := ix.fetchNewTransactions(ctx, account, cursorLT)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}
	if len(txs) > 0 {
		ix.log.Info("found new transactions", zap.Int("count", len(txs)))
	}
	for _, tx := range txs {
		if err := ix.HandleTx(ctx, tx); err != nil {
			return err
		}
	}

	return ix.cursor.Save(ctx, account.LastTxLT, account.LastTxHash)
}

func (ix *Indexer) account(ctx context.Context) (*tlb.Account, error) {
	block, err := ix.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get master block: %w", err)
	}
	account, err := ix.api.GetAccount(ctx, block, ix.wallet)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// fetchNewTransactions retrieves all transactions with LT > cursorLT.
// ListTransactions returns pages oldest-first; we walk backwards until the
// cursor, then return in chronological order.
func (ix *Indexer) fetchNewTransactions(ctx context.Context, account *tlb.Account, cursorLT uint64) ([]*tlb.Transaction, error) {
	var all []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := ix.api.ListTransactions(ctx, ix.wallet, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			all = append(all, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].LT < all[j].LT
	})
	return all, nil
}

// HandleTx credits a single incoming transfer. Transfers that are not
// deposits are logged and skipped; only a storage failure is returned.
func (ix *Indexer) HandleTx(ctx context.Context, tx *tlb.Transaction) error {
	if tx.IO.In == nil {
		return nil
	}
	inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || inMsg == nil {
		return nil
	}

	dep, err := ParseDeposit(tx.LT, tx.Hash, inMsg)
	if err != nil {
		if !errors.Is(err, ErrNotDeposit) {
			ix.log.Debug("transfer is not a deposit, skipping",
				zap.Uint64("lt", tx.LT),
				zap.String("from", srcAddr(inMsg)),
				zap.String("amount", inMsg.Amount.String()),
				zap.Error(err),
			)
		}
		return nil
	}

	applied, err := ix.apply(ctx, dep)
	if err != nil {
		return fmt.Errorf("apply deposit %s: %w", dep.TxRef, err)
	}
	if !applied {
		return nil
	}

	events.PublishAll(ctx, ix.publisher, events.StreamBets, []events.Event{{
		Type: events.EventDepositCredited,
		Payload: map[string]any{
			"address":    dep.Address.Hex(),
			"amount":     dep.Amount.String(),
			"amount_ton": money.FormatTON(dep.Amount),
			"source":     dep.Source,
			"tx_ref":     dep.TxRef,
			"from":       srcAddr(inMsg),
		},
	}}, ix.log)

	ix.log.Info("deposit credited",
		zap.String("address", dep.Address.Hex()),
		zap.String("amount", inMsg.Amount.String()),
		zap.String("tx_ref", dep.TxRef),
	)
	return nil
}

func srcAddr(m *tlb.InternalMessage) string {
	if m.SrcAddr == nil {
		return ""
	}
	return m.SrcAddr.String()
}
