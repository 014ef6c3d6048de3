package staking

import (
	"errors"
	"fmt"
)

// ErrorKind classifies precondition failures so outer layers (http, cli) can map them.
type ErrorKind int

const (
	KindPrecondition ErrorKind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindTransfer
)

// Error is a rejected call. Nothing was mutated when one is returned.
type Error struct {
	Kind    ErrorKind
	message string
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, message: message}
}

func (e *Error) Error() string {
	return e.message
}

var (
	ErrAccountNotFound            = newError(KindNotFound, "account not found")
	ErrAccountExists              = newError(KindConflict, "account already registered")
	ErrInvalidAccountID           = newError(KindPrecondition, "invalid account id")
	ErrPoolPaused                 = newError(KindConflict, "staking pool is paused")
	ErrNotTokenContract           = newError(KindForbidden, "deposits are only accepted from the staking token contract")
	ErrNotOwner                   = newError(KindForbidden, "only the owner can call this method")
	ErrPrivateCallback            = newError(KindForbidden, "transfer callbacks can only be invoked by the contract itself")
	ErrRequireOneFeeUnit          = newError(KindPrecondition, "requires attached deposit of exactly 1 fee unit")
	ErrRequireAtLeastOneFeeUnit   = newError(KindPrecondition, "requires attached deposit of at least 1 fee unit")
	ErrInsufficientStorageDeposit = newError(KindPrecondition, "attached deposit does not cover storage")
	ErrZeroAmount                 = newError(KindPrecondition, "amount must be greater than zero")
	ErrInsufficientStake          = newError(KindPrecondition, "unstake amount exceeds staked balance")
	ErrZeroReward                 = newError(KindPrecondition, "your reward is zero")
	ErrUnstakeLocked              = newError(KindPrecondition, "unstaked balance is not yet available for withdrawal")
	ErrNothingToWithdraw          = newError(KindPrecondition, "no unstaked balance to withdraw")
	ErrHarvestTransferFailed      = newError(KindTransfer, "harvest transfer failed")
)

// KindOf returns the kind of a precondition error, and false for anything else.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// InvariantError is raised (as a panic) when the ledger reaches a state that correct precondition checks
// should make impossible: a negative block span, an overflowing product, a missing account that must exist.
type InvariantError struct {
	msg string
}

func (e InvariantError) Error() string {
	return "ledger invariant violated: " + e.msg
}

func invariantf(format string, args ...any) {
	panic(InvariantError{msg: fmt.Sprintf(format, args...)})
}
