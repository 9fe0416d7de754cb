// Package ledger is the escrow state machine for two-party coin flips.
//
// A bet moves proposed -> accepted -> settled. Every operation runs inside a
// single Backend transaction: the stake debit or payout credit and the status
// change commit together or not at all. Operations return the notifications
// they produced; publishing them is the caller's job.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/coinflip-escrow/backend/internal/commit"
	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultRevealWindow is how long both sides have to reveal after acceptance.
const DefaultRevealWindow = 24 * time.Hour

type Ledger struct {
	backend      Backend
	clock        Clock
	revealWindow time.Duration
	minStake     *big.Int
	log          *zap.Logger
}

type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithRevealWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.revealWindow = d
		}
	}
}

// WithMinStake rejects proposals below n with ErrInvalidStake.
func WithMinStake(n *big.Int) Option {
	return func(l *Ledger) {
		if n != nil && n.Sign() > 0 {
			l.minStake = new(big.Int).Set(n)
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func New(backend Backend, opts ...Option) *Ledger {
	l := &Ledger{
		backend:      backend,
		clock:        systemClock{},
		revealWindow: DefaultRevealWindow,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Receipt is the result of a successful transition.
type Receipt struct {
	Bet    *models.Bet
	Events []events.Event
}

func (l *Ledger) RevealWindow() time.Duration { return l.revealWindow }

// Propose opens a bet keyed by commitment and escrows stake from caller.
func (l *Ledger) Propose(ctx context.Context, caller common.Address, commitment common.Hash, stake *big.Int) (*Receipt, error) {
	if stake == nil || stake.Sign() <= 0 {
		return nil, ErrInvalidStake
	}
	if l.minStake != nil && stake.Cmp(l.minStake) < 0 {
		return nil, ErrInvalidStake
	}

	var bet *models.Bet
	err := l.backend.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.GetBet(ctx, commitment)
		switch {
		case err == nil:
			if existing.IsActive() {
				return ErrCommitmentInUse
			}
			if err := tx.ArchiveBet(ctx, commitment); err != nil {
				return err
			}
		case !errors.Is(err, ErrNotFound):
			return err
		}

		if err := tx.Debit(ctx, caller, stake); err != nil {
			return err
		}

		now := l.clock.Now()
		bet = &models.Bet{
			CommitmentA: commitment,
			Proposer:    caller,
			Stake:       new(big.Int).Set(stake),
			Status:      models.BetStatusProposed,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.InsertBet(ctx, bet)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("bet proposed",
		zap.String("commitment", commitment.Hex()),
		zap.String("proposer", caller.Hex()),
		zap.String("stake", stake.String()),
	)
	return &Receipt{Bet: bet, Events: []events.Event{{
		Type: events.EventBetProposed,
		Payload: map[string]any{
			"commitment": commitment.Hex(),
			"proposer":   caller.Hex(),
			"stake":      stake.String(),
		},
	}}}, nil
}

// Accept joins the proposed bet keyed by commitmentA as side B, matching its
// stake exactly.
func (l *Ledger) Accept(ctx context.Context, caller common.Address, commitmentA, commitmentB common.Hash, stake *big.Int) (*Receipt, error) {
	var bet *models.Bet
	err := l.backend.WithTx(ctx, func(tx Tx) error {
		var err error
		bet, err = tx.GetBet(ctx, commitmentA)
		if err != nil {
			return err
		}
		if bet.Status != models.BetStatusProposed {
			return ErrAlreadyAccepted
		}
		if stake == nil || stake.Cmp(bet.Stake) != 0 {
			return ErrStakeMismatch
		}

		if err := tx.Debit(ctx, caller, stake); err != nil {
			return err
		}

		now := l.clock.Now()
		if err := transition(bet, models.BetStatusAccepted, now); err != nil {
			return err
		}
		acceptor := caller
		cb := commitmentB
		bet.Acceptor = &acceptor
		bet.CommitmentB = &cb
		bet.AcceptedAt = &now
		return tx.UpdateBet(ctx, bet)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("bet accepted",
		zap.String("commitment", commitmentA.Hex()),
		zap.String("acceptor", caller.Hex()),
	)
	return &Receipt{Bet: bet, Events: []events.Event{{
		Type: events.EventBetAccepted,
		Payload: map[string]any{
			"commitment_a": commitmentA.Hex(),
			"commitment_b": commitmentB.Hex(),
			"acceptor":     caller.Hex(),
			"stake":        bet.Stake.String(),
		},
	}}}, nil
}

// Reveal stores secret on the caller's side of an accepted bet. commitment
// may be either side's commitment. Revealing the same secret twice is a no-op
// that produces no events.
func (l *Ledger) Reveal(ctx context.Context, caller common.Address, commitment, secret common.Hash) (*Receipt, error) {
	var (
		bet  *models.Bet
		side string
	)
	err := l.backend.WithTx(ctx, func(tx Tx) error {
		candidates, err := revealCandidates(ctx, tx, caller, commitment)
		if err != nil {
			return err
		}

		// A key squatted by another bet must not hide the caller's own bet, so
		// every accepted bet addressed by commitment is tried, and one where
		// the reveal stores something wins over a repeat.
		var repeat *models.Bet
		for _, b := range candidates {
			s, ok := revealSide(b, caller, commitment, secret)
			if !ok {
				continue
			}
			if s == "" {
				if repeat == nil {
					repeat = b
				}
				continue
			}
			bet, side = b, s
			break
		}

		switch {
		case bet != nil:
		case repeat != nil:
			// already revealed; a commitment opens to exactly one secret
			bet = repeat
			return nil
		default:
			return ErrInvalidReveal
		}

		s := secret
		if side == models.SideA {
			bet.SecretA = &s
		} else {
			bet.SecretB = &s
		}
		bet.UpdatedAt = l.clock.Now()
		return tx.UpdateBet(ctx, bet)
	})
	if err != nil {
		return nil, err
	}
	if side == "" {
		return &Receipt{Bet: bet}, nil
	}

	l.log.Info("secret revealed",
		zap.String("commitment", bet.CommitmentA.Hex()),
		zap.String("side", side),
	)
	return &Receipt{Bet: bet, Events: []events.Event{{
		Type: events.EventBetRevealed,
		Payload: map[string]any{
			"commitment_a": bet.CommitmentA.Hex(),
			"commitment":   commitment.Hex(),
			"side":         side,
			"revealer":     caller.Hex(),
		},
	}}}, nil
}

// revealCandidates returns the accepted bets commitment addresses: the bet
// keyed by it as commitmentA and the bet that took it as commitmentB,
// preferring one the caller accepted. ErrNotAccepted if there are none.
func revealCandidates(ctx context.Context, tx Tx, caller common.Address, commitment common.Hash) ([]*models.Bet, error) {
	var out []*models.Bet

	byA, err := tx.GetBet(ctx, commitment)
	switch {
	case err == nil:
		if byA.Status == models.BetStatusAccepted {
			out = append(out, byA)
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	byB, err := tx.FindByCommitmentB(ctx, commitment, caller)
	switch {
	case err == nil:
		if byA == nil || byB.CommitmentA != byA.CommitmentA {
			out = append(out, byB)
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if len(out) == 0 {
		return nil, ErrNotAccepted
	}
	return out, nil
}

// revealSide reports which side of bet secret opens for caller. ok is false
// when caller owns no side that secret opens; side is "" when that side is
// already revealed.
func revealSide(bet *models.Bet, caller common.Address, commitment, secret common.Hash) (side string, ok bool) {
	if commitment != bet.CommitmentA && commitment != *bet.CommitmentB {
		return "", false
	}
	opened := commit.Commit(secret)
	ownsA := opened == bet.CommitmentA && caller == bet.Proposer
	ownsB := opened == *bet.CommitmentB && caller == *bet.Acceptor
	switch {
	case ownsA && bet.SecretA == nil:
		return models.SideA, true
	case ownsB && bet.SecretB == nil:
		return models.SideB, true
	case ownsA || ownsB:
		return "", true
	}
	return "", false
}

// Settle pays out an accepted bet. It succeeds once both secrets are revealed
// or the reveal window has elapsed, and may be called by anyone.
func (l *Ledger) Settle(ctx context.Context, caller common.Address, commitmentA, commitmentB common.Hash) (*Receipt, error) {
	var bet *models.Bet
	err := l.backend.WithTx(ctx, func(tx Tx) error {
		var err error
		bet, err = tx.GetBet(ctx, commitmentA)
		if err != nil {
			return err
		}
		if bet.Status != models.BetStatusAccepted || *bet.CommitmentB != commitmentB {
			return ErrNotAccepted
		}

		now := l.clock.Now()
		expired := !now.Before(bet.RevealDeadline(l.revealWindow))
		if !bet.BothRevealed() && !expired {
			return ErrRevealPending
		}

		winner, payout, outcome := decide(bet)
		if outcome == models.OutcomeRefund {
			if err := tx.Credit(ctx, bet.Proposer, bet.Stake); err != nil {
				return err
			}
			if err := tx.Credit(ctx, *bet.Acceptor, bet.Stake); err != nil {
				return err
			}
		} else if err := tx.Credit(ctx, winner, payout); err != nil {
			return err
		}

		if err := transition(bet, models.BetStatusSettled, now); err != nil {
			return err
		}
		bet.Winner = &winner
		bet.Payout = payout
		bet.Outcome = &outcome
		bet.SettledAt = &now
		return tx.UpdateBet(ctx, bet)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("bet settled",
		zap.String("commitment", commitmentA.Hex()),
		zap.String("outcome", *bet.Outcome),
		zap.String("winner", bet.Winner.Hex()),
		zap.String("payout", bet.Payout.String()),
	)
	return &Receipt{Bet: bet, Events: []events.Event{{
		Type: events.EventBetSettled,
		Payload: map[string]any{
			"commitment_a": commitmentA.Hex(),
			"commitment_b": commitmentB.Hex(),
			"winner":       bet.Winner.Hex(),
			"payout":       bet.Payout.String(),
			"outcome":      *bet.Outcome,
			"settled_by":   caller.Hex(),
		},
	}}}, nil
}

// decide picks the winner of a bet that is ready to settle. A refund returns
// the zero address and the per-side stake.
func decide(bet *models.Bet) (common.Address, *big.Int, string) {
	pot := bet.Pot()
	switch {
	case bet.BothRevealed():
		if commit.SideAWins(*bet.SecretA, *bet.SecretB) {
			return bet.Proposer, pot, models.OutcomeCoinFlip
		}
		return *bet.Acceptor, pot, models.OutcomeCoinFlip
	case bet.SecretA != nil:
		return bet.Proposer, pot, models.OutcomeForfeit
	case bet.SecretB != nil:
		return *bet.Acceptor, pot, models.OutcomeForfeit
	default:
		return common.Address{}, new(big.Int).Set(bet.Stake), models.OutcomeRefund
	}
}

func transition(bet *models.Bet, to string, now time.Time) error {
	if !models.IsValidTransition(bet.Status, to) {
		return fmt.Errorf("invalid transition from %s to %s", bet.Status, to)
	}
	bet.Status = to
	bet.UpdatedAt = now
	return nil
}

// Deposit credits addr outside of any bet.
func (l *Ledger) Deposit(ctx context.Context, addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("deposit amount must be positive")
	}
	return l.backend.WithTx(ctx, func(tx Tx) error {
		return tx.Credit(ctx, addr, amount)
	})
}

func (l *Ledger) Bet(ctx context.Context, commitmentA common.Hash) (*models.Bet, error) {
	return l.backend.Bet(ctx, commitmentA)
}

func (l *Ledger) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return l.backend.Balance(ctx, addr)
}

// ListExpired returns accepted bets whose reveal window has elapsed.
func (l *Ledger) ListExpired(ctx context.Context, limit int) ([]*models.Bet, error) {
	return l.backend.ListExpired(ctx, l.clock.Now().Add(-l.revealWindow), limit)
}
