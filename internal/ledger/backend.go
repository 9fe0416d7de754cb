package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// Tx is the view of the store inside one atomic transition. Lookups return
// ErrNotFound when no record exists. Debit returns ErrInsufficientFunds when
// the account cannot cover the amount.
type Tx interface {
	// GetBet loads the live bet keyed by commitmentA for update. A settled
	// bet stays live until a new proposal reuses its commitment.
	GetBet(ctx context.Context, commitmentA common.Hash) (*models.Bet, error)
	// FindByCommitmentB loads an accepted bet joined with commitmentB,
	// preferring the oldest one acceptor joined, then the oldest of anyone's.
	FindByCommitmentB(ctx context.Context, commitmentB common.Hash, acceptor common.Address) (*models.Bet, error)
	InsertBet(ctx context.Context, bet *models.Bet) error
	UpdateBet(ctx context.Context, bet *models.Bet) error
	// ArchiveBet moves a settled bet out of the live set so its commitment
	// can key a new bet.
	ArchiveBet(ctx context.Context, commitmentA common.Hash) error

	Debit(ctx context.Context, addr common.Address, amount *big.Int) error
	Credit(ctx context.Context, addr common.Address, amount *big.Int) error
}

// Backend is the injectable store behind a Ledger. WithTx runs fn with
// exclusive access to the records it touches and commits only if fn returns
// nil; any error leaves the store exactly as it was.
type Backend interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Bet returns the live bet for commitmentA, falling back to the most
	// recently archived one.
	Bet(ctx context.Context, commitmentA common.Hash) (*models.Bet, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	// ListExpired returns accepted bets with acceptedAt at or before cutoff,
	// oldest first.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Bet, error)
}

// Clock supplies the current time for reveal deadlines.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
