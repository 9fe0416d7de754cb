package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bet statuses
const (
	BetStatusProposed = "proposed"
	BetStatusAccepted = "accepted"
	BetStatusSettled  = "settled"
)

// Valid state transitions: from -> []to
var ValidBetTransitions = map[string][]string{
	BetStatusProposed: {BetStatusAccepted},
	BetStatusAccepted: {BetStatusSettled},
	BetStatusSettled:  {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidBetTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Sides of a bet.
const (
	SideA = "A"
	SideB = "B"
)

// Settlement outcomes
const (
	OutcomeCoinFlip = "coin_flip" // both secrets revealed
	OutcomeForfeit  = "forfeit"   // one side revealed, window elapsed
	OutcomeRefund   = "refund"    // nobody revealed, window elapsed
)

// Bet is a two-sided commit-reveal wager keyed by the proposer's commitment.
type Bet struct {
	CommitmentA common.Hash     `json:"commitment_a"`
	CommitmentB *common.Hash    `json:"commitment_b,omitempty"`
	Proposer    common.Address  `json:"proposer"`
	Acceptor    *common.Address `json:"acceptor,omitempty"`
	Stake       *big.Int        `json:"stake"` // nanoTON per side
	SecretA     *common.Hash    `json:"secret_a,omitempty"`
	SecretB     *common.Hash    `json:"secret_b,omitempty"`
	Status      string          `json:"status"`
	AcceptedAt  *time.Time      `json:"accepted_at,omitempty"`

	// Filled by Settle.
	Winner    *common.Address `json:"winner,omitempty"`
	Payout    *big.Int        `json:"payout,omitempty"`
	Outcome   *string         `json:"outcome,omitempty"`
	SettledAt *time.Time      `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pot is the combined stake of both sides.
func (b *Bet) Pot() *big.Int {
	return new(big.Int).Mul(b.Stake, big.NewInt(2))
}

// RevealDeadline returns acceptedAt + window, or the zero time if the bet was
// never accepted.
func (b *Bet) RevealDeadline(window time.Duration) time.Time {
	if b.AcceptedAt == nil {
		return time.Time{}
	}
	return b.AcceptedAt.Add(window)
}

// BothRevealed reports whether both secrets are stored.
func (b *Bet) BothRevealed() bool {
	return b.SecretA != nil && b.SecretB != nil
}

// IsActive reports whether the bet still holds escrowed value.
func (b *Bet) IsActive() bool {
	return b.Status != BetStatusSettled
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (b *Bet) Clone() *Bet {
	c := *b
	if b.Stake != nil {
		c.Stake = new(big.Int).Set(b.Stake)
	}
	if b.Payout != nil {
		c.Payout = new(big.Int).Set(b.Payout)
	}
	c.CommitmentB = cloneHash(b.CommitmentB)
	c.SecretA = cloneHash(b.SecretA)
	c.SecretB = cloneHash(b.SecretB)
	c.Acceptor = cloneAddress(b.Acceptor)
	c.Winner = cloneAddress(b.Winner)
	if b.Outcome != nil {
		o := *b.Outcome
		c.Outcome = &o
	}
	if b.AcceptedAt != nil {
		t := *b.AcceptedAt
		c.AcceptedAt = &t
	}
	if b.SettledAt != nil {
		t := *b.SettledAt
		c.SettledAt = &t
	}
	return &c
}

func cloneHash(h *common.Hash) *common.Hash {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}

func cloneAddress(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
