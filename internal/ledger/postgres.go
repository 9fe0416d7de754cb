package ledger

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/coinflip-escrow/backend/internal/repositories"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores bets and balances in Postgres. Each WithTx is one
// pgx transaction; bets are read with SELECT ... FOR UPDATE so concurrent
// transitions on the same bet serialise on the row lock.
type PostgresBackend struct {
	pool     *pgxpool.Pool
	bets     *repositories.BetRepo
	accounts *repositories.AccountRepo
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{
		pool:     pool,
		bets:     repositories.NewBetRepo(pool),
		accounts: repositories.NewAccountRepo(pool),
	}
}

func (p *PostgresBackend) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{
			bets:     repositories.NewBetRepo(tx),
			accounts: repositories.NewAccountRepo(tx),
		})
	})
}

func (p *PostgresBackend) Bet(ctx context.Context, commitmentA common.Hash) (*models.Bet, error) {
	b, err := p.bets.Get(ctx, commitmentA)
	if errors.Is(err, pgx.ErrNoRows) {
		b, err = p.bets.GetArchived(ctx, commitmentA)
	}
	return b, mapErr(err)
}

func (p *PostgresBackend) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return p.accounts.Balance(ctx, addr)
}

func (p *PostgresBackend) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Bet, error) {
	return p.bets.ListExpired(ctx, cutoff, limit)
}

type pgTx struct {
	bets     *repositories.BetRepo
	accounts *repositories.AccountRepo
}

func (t *pgTx) GetBet(ctx context.Context, commitmentA common.Hash) (*models.Bet, error) {
	b, err := t.bets.GetForUpdate(ctx, commitmentA)
	return b, mapErr(err)
}

func (t *pgTx) FindByCommitmentB(ctx context.Context, commitmentB common.Hash, acceptor common.Address) (*models.Bet, error) {
	b, err := t.bets.FindByCommitmentB(ctx, commitmentB, acceptor)
	return b, mapErr(err)
}

func (t *pgTx) InsertBet(ctx context.Context, bet *models.Bet) error {
	return mapErr(t.bets.Create(ctx, bet))
}

func (t *pgTx) UpdateBet(ctx context.Context, bet *models.Bet) error {
	return mapErr(t.bets.Update(ctx, bet))
}

func (t *pgTx) ArchiveBet(ctx context.Context, commitmentA common.Hash) error {
	return mapErr(t.bets.Archive(ctx, commitmentA))
}

func (t *pgTx) Debit(ctx context.Context, addr common.Address, amount *big.Int) error {
	return mapErr(t.accounts.Debit(ctx, addr, amount))
}

func (t *pgTx) Credit(ctx context.Context, addr common.Address, amount *big.Int) error {
	return t.accounts.Credit(ctx, addr, amount)
}

const (
	uniqueViolation = "23505"
	betsPrimaryKey  = "bets_pkey"
)

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, repositories.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == betsPrimaryKey:
		// two proposals raced past the row lock on a key that did not exist yet
		return ErrCommitmentInUse
	}
	return err
}
