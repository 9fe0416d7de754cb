package repositories

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/coinflip-escrow/backend/internal/money"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

type BetRepo struct {
	db DBTX
}

func NewBetRepo(db DBTX) *BetRepo {
	return &BetRepo{db: db}
}

const betColumns = `commitment_a, commitment_b, proposer, acceptor, stake::text,
	secret_a, secret_b, status, accepted_at, winner, payout::text, outcome,
	settled_at, created_at, updated_at`

func scanBet(row pgx.Row) (*models.Bet, error) {
	var (
		b                        models.Bet
		commitmentA, proposer    string
		commitmentB, acceptor    *string
		secretA, secretB, winner *string
		stake                    string
		payout                   *string
	)
	err := row.Scan(&commitmentA, &commitmentB, &proposer, &acceptor, &stake,
		&secretA, &secretB, &b.Status, &b.AcceptedAt, &winner, &payout, &b.Outcome,
		&b.SettledAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.CommitmentA = common.HexToHash(commitmentA)
	b.CommitmentB = parseHashPtr(commitmentB)
	b.Proposer = common.HexToAddress(proposer)
	b.Acceptor = parseAddrPtr(acceptor)
	b.SecretA = parseHashPtr(secretA)
	b.SecretB = parseHashPtr(secretB)
	b.Winner = parseAddrPtr(winner)
	if b.Stake, err = money.ParseNano(stake); err != nil {
		return nil, err
	}
	if payout != nil {
		if b.Payout, err = money.ParseNano(*payout); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func nanoTextPtr(n *big.Int) *string {
	if n == nil {
		return nil
	}
	s := n.String()
	return &s
}

// GetForUpdate row-locks the live bet until the surrounding transaction ends.
func (r *BetRepo) GetForUpdate(ctx context.Context, commitmentA common.Hash) (*models.Bet, error) {
	return scanBet(r.db.QueryRow(ctx, `
		SELECT `+betColumns+`
		FROM bets WHERE commitment_a = $1
		FOR UPDATE
	`, commitmentA.Hex()))
}

func (r *BetRepo) Get(ctx context.Context, commitmentA common.Hash) (*models.Bet, error) {
	return scanBet(r.db.QueryRow(ctx, `
		SELECT `+betColumns+`
		FROM bets WHERE commitment_a = $1
	`, commitmentA.Hex()))
}

// GetArchived returns the most recently archived bet for commitmentA.
func (r *BetRepo) GetArchived(ctx context.Context, commitmentA common.Hash) (*models.Bet, error) {
	return scanBet(r.db.QueryRow(ctx, `
		SELECT `+betColumns+`
		FROM bets_archive WHERE commitment_a = $1
		ORDER BY archived_at DESC LIMIT 1
	`, commitmentA.Hex()))
}

// FindByCommitmentB locks an accepted bet joined with commitmentB, the
// acceptor's own first.
func (r *BetRepo) FindByCommitmentB(ctx context.Context, commitmentB common.Hash, acceptor common.Address) (*models.Bet, error) {
	return scanBet(r.db.QueryRow(ctx, `
		SELECT `+betColumns+`
		FROM bets
		WHERE commitment_b = $1 AND status = $3
		ORDER BY (acceptor = $2) DESC, accepted_at, commitment_a
		LIMIT 1
		FOR UPDATE
	`, commitmentB.Hex(), addrText(acceptor), models.BetStatusAccepted))
}

func (r *BetRepo) Create(ctx context.Context, b *models.Bet) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bets (commitment_a, proposer, stake, status, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
	`, b.CommitmentA.Hex(), addrText(b.Proposer), b.Stake.String(), b.Status, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *BetRepo) Update(ctx context.Context, b *models.Bet) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bets SET
			commitment_b = $2, acceptor = $3, secret_a = $4, secret_b = $5,
			status = $6, accepted_at = $7, winner = $8, payout = $9::numeric,
			outcome = $10, settled_at = $11, updated_at = $12
		WHERE commitment_a = $1
	`, b.CommitmentA.Hex(), hashTextPtr(b.CommitmentB), addrTextPtr(b.Acceptor),
		hashTextPtr(b.SecretA), hashTextPtr(b.SecretB), b.Status, b.AcceptedAt,
		addrTextPtr(b.Winner), nanoTextPtr(b.Payout), b.Outcome, b.SettledAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Archive moves a bet from bets to bets_archive.
func (r *BetRepo) Archive(ctx context.Context, commitmentA common.Hash) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO bets_archive (`+betArchiveColumns+`)
		SELECT `+betArchiveColumns+` FROM bets WHERE commitment_a = $1
	`, commitmentA.Hex())
	if err != nil {
		return fmt.Errorf("copy to archive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	_, err = r.db.Exec(ctx, `DELETE FROM bets WHERE commitment_a = $1`, commitmentA.Hex())
	return err
}

const betArchiveColumns = `commitment_a, commitment_b, proposer, acceptor, stake,
	secret_a, secret_b, status, accepted_at, winner, payout, outcome,
	settled_at, created_at, updated_at`

// ListExpired returns accepted bets with accepted_at <= cutoff, oldest first.
func (r *BetRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Bet, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+betColumns+`
		FROM bets
		WHERE status = $1 AND accepted_at <= $2
		ORDER BY accepted_at, commitment_a
		LIMIT $3
	`, models.BetStatusAccepted, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}
