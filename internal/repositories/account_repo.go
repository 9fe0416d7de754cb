package repositories

import (
	"context"
	"errors"
	"math/big"

	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/coinflip-escrow/backend/internal/money"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// ErrInsufficientBalance is returned by Debit when the account would go negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

type AccountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal string
	err := r.db.QueryRow(ctx, `
		SELECT balance::text FROM accounts WHERE address = $1
	`, addrText(addr)).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return money.ParseNano(bal)
}

// Debit subtracts amount only if the balance covers it.
func (r *AccountRepo) Debit(ctx context.Context, addr common.Address, amount *big.Int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET balance = balance - $2::numeric, updated_at = now()
		WHERE address = $1 AND balance >= $2::numeric
	`, addrText(addr), amount.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *AccountRepo) Credit(ctx context.Context, addr common.Address, amount *big.Int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (address, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()
	`, addrText(addr), amount.String())
	return err
}

// ApplyDeposit records d and credits its amount. A tx_ref seen before is
// skipped and reported as false. Run it inside a transaction so the record
// and the credit land together.
func (r *AccountRepo) ApplyDeposit(ctx context.Context, d *models.Deposit) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO deposits (tx_ref, address, amount, source)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (tx_ref) DO NOTHING
	`, d.TxRef, addrText(d.Address), d.Amount.String(), d.Source)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := r.Credit(ctx, d.Address, d.Amount); err != nil {
		return false, err
	}
	return true, nil
}
