package services

import (
	"context"
	"errors"
	"math/big"

	"github.com/coinflip-escrow/backend/internal/events"
	"github.com/coinflip-escrow/backend/internal/ledger"
	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var auditActions = map[string]string{
	events.EventBetProposed: "bet_proposed",
	events.EventBetAccepted: "bet_accepted",
	events.EventBetRevealed: "bet_revealed",
	events.EventBetSettled:  "bet_settled",
}

// BetService runs ledger transitions and, once they commit, writes the audit
// trail and publishes the resulting events.
type BetService struct {
	ledger    *ledger.Ledger
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewBetService(l *ledger.Ledger, audit AuditStore, publisher events.Publisher, log *zap.Logger) *BetService {
	return &BetService{
		ledger:    l,
		audit:     audit,
		publisher: publisher,
		log:       log,
	}
}

func (s *BetService) Propose(ctx context.Context, caller common.Address, commitment common.Hash, stake *big.Int) (*models.Bet, error) {
	r, err := s.ledger.Propose(ctx, caller, commitment, stake)
	if err != nil {
		return nil, err
	}
	s.commit(ctx, r, &caller, models.ActorUser)
	return r.Bet, nil
}

func (s *BetService) Accept(ctx context.Context, caller common.Address, commitmentA, commitmentB common.Hash, stake *big.Int) (*models.Bet, error) {
	r, err := s.ledger.Accept(ctx, caller, commitmentA, commitmentB, stake)
	if err != nil {
		return nil, err
	}
	s.commit(ctx, r, &caller, models.ActorUser)
	return r.Bet, nil
}

func (s *BetService) Reveal(ctx context.Context, caller common.Address, commitment, secret common.Hash) (*models.Bet, error) {
	r, err := s.ledger.Reveal(ctx, caller, commitment, secret)
	if err != nil {
		return nil, err
	}
	s.commit(ctx, r, &caller, models.ActorUser)
	return r.Bet, nil
}

func (s *BetService) Settle(ctx context.Context, caller common.Address, commitmentA, commitmentB common.Hash) (*models.Bet, error) {
	r, err := s.ledger.Settle(ctx, caller, commitmentA, commitmentB)
	if err != nil {
		return nil, err
	}
	s.commit(ctx, r, &caller, models.ActorUser)
	return r.Bet, nil
}

// SettleExpired force-settles up to batch bets whose reveal window has
// elapsed and returns how many were settled. A bet settled concurrently by
// someone else is skipped.
func (s *BetService) SettleExpired(ctx context.Context, batch int) (int, error) {
	bets, err := s.ledger.ListExpired(ctx, batch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, b := range bets {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		r, err := s.ledger.Settle(ctx, common.Address{}, b.CommitmentA, *b.CommitmentB)
		if errors.Is(err, ledger.ErrNotAccepted) || errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Error("keeper settle failed", zap.String("commitment", b.CommitmentA.Hex()), zap.Error(err))
			continue
		}
		s.commit(ctx, r, nil, models.ActorKeeper)
		settled++
	}
	return settled, nil
}

func (s *BetService) Get(ctx context.Context, commitmentA common.Hash) (*models.Bet, error) {
	return s.ledger.Bet(ctx, commitmentA)
}

func (s *BetService) History(ctx context.Context, commitmentA common.Hash, limit, offset int) ([]models.AuditLog, error) {
	return s.audit.GetByEntity(ctx, models.EntityBet, commitmentA.Hex(), limit, offset)
}

func (s *BetService) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return s.ledger.Balance(ctx, addr)
}

// Faucet credits amount to addr. Only wired when FAUCET_ENABLED is set.
func (s *BetService) Faucet(ctx context.Context, addr common.Address, amount *big.Int) error {
	if err := s.ledger.Deposit(ctx, addr, amount); err != nil {
		return err
	}
	payload := map[string]any{"address": addr.Hex(), "amount": amount.String(), "source": "faucet"}
	if err := s.audit.Log(ctx, models.AccountAudit(addr, models.ActorSystem, "faucet_credit", payload)); err != nil {
		s.log.Warn("audit log failed", zap.Error(err))
	}
	events.PublishAll(ctx, s.publisher, events.StreamBets, []events.Event{{
		Type:    events.EventDepositCredited,
		Payload: payload,
	}}, s.log)
	return nil
}

func (s *BetService) commit(ctx context.Context, r *ledger.Receipt, actor *common.Address, actorType string) {
	for _, ev := range r.Events {
		// Audit log
		entry := models.BetAudit(actor, actorType, auditActions[ev.Type], r.Bet.CommitmentA, ev.Payload)
		if err := s.audit.Log(ctx, entry); err != nil {
			s.log.Warn("audit log failed", zap.String("action", auditActions[ev.Type]), zap.Error(err))
		}
	}

	// Publish events
	events.PublishAll(ctx, s.publisher, events.StreamBets, r.Events, s.log)
}
