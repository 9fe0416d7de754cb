package ledger

import "errors"

// Kind classifies a rejected transition.
type Kind string

const (
	KindInvalidStake      Kind = "InvalidStake"
	KindNotFound          Kind = "NotFound"
	KindAlreadyAccepted   Kind = "AlreadyAccepted"
	KindStakeMismatch     Kind = "StakeMismatch"
	KindNotAccepted       Kind = "NotAccepted"
	KindInvalidReveal     Kind = "InvalidReveal"
	KindRevealPending     Kind = "RevealPending"
	KindCommitmentInUse   Kind = "CommitmentInUse"
	KindInsufficientFunds Kind = "InsufficientFunds"
)

// Error is a rejected transition. No state was changed.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInvalidStake      = &Error{KindInvalidStake, "you need to actually bet something"}
	ErrNotFound          = &Error{KindNotFound, "Nobody made that bet"}
	ErrAlreadyAccepted   = &Error{KindAlreadyAccepted, "Bet has already been accepted"}
	ErrStakeMismatch     = &Error{KindStakeMismatch, "Need to bet the same amount as sideA"}
	ErrNotAccepted       = &Error{KindNotAccepted, "Bet has not been accepted yet"}
	ErrInvalidReveal     = &Error{KindInvalidReveal, "Not a bet you placed or wrong value"}
	ErrRevealPending     = &Error{KindRevealPending, "Not all numbers are revealed, while the timer is not up!"}
	ErrCommitmentInUse   = &Error{KindCommitmentInUse, "A bet with that commitment is still open"}
	ErrInsufficientFunds = &Error{KindInsufficientFunds, "Not enough balance to cover the stake"}
)

// KindOf returns the kind of a ledger rejection, or "" for any other error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}
