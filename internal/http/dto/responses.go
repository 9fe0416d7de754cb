package dto

import (
	"math/big"
	"time"

	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/coinflip-escrow/backend/internal/money"
	"github.com/ethereum/go-ethereum/common"
)

type AuthResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type ChallengeResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type BetResponse struct {
	CommitmentA    string     `json:"commitment_a"`
	CommitmentB    *string    `json:"commitment_b,omitempty"`
	Proposer       string     `json:"proposer"`
	Acceptor       *string    `json:"acceptor,omitempty"`
	StakeNano      string     `json:"stake_nano"`
	StakeTON       string     `json:"stake_ton"`
	Status         string     `json:"status"`
	RevealedA      bool       `json:"revealed_a"`
	RevealedB      bool       `json:"revealed_b"`
	SecretA        *string    `json:"secret_a,omitempty"`
	SecretB        *string    `json:"secret_b,omitempty"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	RevealDeadline *time.Time `json:"reveal_deadline,omitempty"`
	Winner         *string    `json:"winner,omitempty"`
	PayoutNano     *string    `json:"payout_nano,omitempty"`
	Outcome        *string    `json:"outcome,omitempty"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewBetResponse(b *models.Bet, revealWindow time.Duration) BetResponse {
	resp := BetResponse{
		CommitmentA: b.CommitmentA.Hex(),
		CommitmentB: hashHex(b.CommitmentB),
		Proposer:    b.Proposer.Hex(),
		Acceptor:    addrHex(b.Acceptor),
		StakeNano:   b.Stake.String(),
		StakeTON:    money.FormatTON(b.Stake),
		Status:      b.Status,
		RevealedA:   b.SecretA != nil,
		RevealedB:   b.SecretB != nil,
		SecretA:     hashHex(b.SecretA),
		SecretB:     hashHex(b.SecretB),
		AcceptedAt:  b.AcceptedAt,
		Winner:      addrHex(b.Winner),
		Outcome:     b.Outcome,
		SettledAt:   b.SettledAt,
		CreatedAt:   b.CreatedAt,
	}
	if b.AcceptedAt != nil {
		d := b.RevealDeadline(revealWindow)
		resp.RevealDeadline = &d
	}
	if b.Payout != nil {
		p := b.Payout.String()
		resp.PayoutNano = &p
	}
	return resp
}

type BalanceResponse struct {
	Address     string `json:"address"`
	BalanceNano string `json:"balance_nano"`
	BalanceTON  string `json:"balance_ton"`
}

func NewBalanceResponse(addr common.Address, bal *big.Int) BalanceResponse {
	return BalanceResponse{
		Address:     addr.Hex(),
		BalanceNano: bal.String(),
		BalanceTON:  money.FormatTON(bal),
	}
}

type CommitmentResponse struct {
	Secret     string `json:"secret"`
	Commitment string `json:"commitment"`
}

func hashHex(h *common.Hash) *string {
	if h == nil {
		return nil
	}
	s := h.Hex()
	return &s
}

func addrHex(a *common.Address) *string {
	if a == nil {
		return nil
	}
	s := a.Hex()
	return &s
}
