// Package token is a fungible token ledger: the staking token whose transfers the staking ledger requests.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"github.com/TxnLab/ftstake/internal/lib/misc"
)

// Store persists token balances.
type Store interface {
	TokenBalance(id string) (uint256.Int, error)
	CommitTokenBalances(balances map[string]uint256.Int) error
}

// Error is a transfer the ledger rejected. Retrying it cannot succeed.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrZeroAmount          = &Error{"transfer amount must be greater than zero"}
	ErrSelfTransfer        = &Error{"sender and receiver must differ"}
	ErrInsufficientBalance = &Error{"insufficient token balance"}
	ErrBalanceOverflow     = &Error{"token balance overflow"}
)

// IsPermanent reports whether err is a rejection rather than a failure to reach or write the ledger.
func IsPermanent(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Receiver handles the tokens of a TransferCall and returns the part it did not use.
type Receiver func(ctx context.Context, sender string, amount *uint256.Int, msg string) (uint256.Int, error)

type Ledger struct {
	sync.Mutex
	logger *slog.Logger
	id     string
	store  Store
}

func New(logger *slog.Logger, id string, store Store) *Ledger {
	return &Ledger{logger: logger, id: id, store: store}
}

// ID is the token contract's account id.
func (l *Ledger) ID() string {
	return l.id
}

func (l *Ledger) BalanceOf(id string) (uint256.Int, error) {
	l.Lock()
	defer l.Unlock()
	return l.store.TokenBalance(id)
}

// Mint credits amount to id and returns the new balance.
func (l *Ledger) Mint(id string, amount *uint256.Int) (uint256.Int, error) {
	if amount.IsZero() {
		return uint256.Int{}, ErrZeroAmount
	}
	l.Lock()
	defer l.Unlock()
	balance, err := l.store.TokenBalance(id)
	if err != nil {
		return uint256.Int{}, err
	}
	if _, overflow := balance.AddOverflow(&balance, amount); overflow {
		return uint256.Int{}, ErrBalanceOverflow
	}
	if err = l.store.CommitTokenBalances(map[string]uint256.Int{id: balance}); err != nil {
		return uint256.Int{}, err
	}
	misc.Infof(l.logger, "minted %s to %s", amount.Dec(), id)
	return balance, nil
}

// Transfer moves amount from sender to receiver.
func (l *Ledger) Transfer(ctx context.Context, sender, receiver string, amount *uint256.Int, memo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.Lock()
	defer l.Unlock()
	if err := l.transfer(sender, receiver, amount); err != nil {
		return err
	}
	l.logger.Debug("ft_transfer", "sender", sender, "receiver", receiver, "amount", amount.Dec(), "memo", memo)
	return nil
}

// TransferCall moves amount to receiver, then lets onTransfer use it. Whatever onTransfer reports unused,
// the whole amount if it fails, is refunded to sender. It returns the amount that stayed with receiver.
func (l *Ledger) TransferCall(ctx context.Context, sender, receiver string, amount *uint256.Int, msg string, onTransfer Receiver) (uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return uint256.Int{}, err
	}
	l.Lock()
	if err := l.transfer(sender, receiver, amount); err != nil {
		l.Unlock()
		return uint256.Int{}, err
	}
	l.Unlock()

	unused, callErr := onTransfer(ctx, sender, amount, msg)
	if callErr != nil {
		unused = *amount
	}
	if unused.Gt(amount) {
		unused = *amount
	}
	used := new(uint256.Int).Sub(amount, &unused)
	if !unused.IsZero() {
		l.Lock()
		err := l.transfer(receiver, sender, &unused)
		l.Unlock()
		if err != nil {
			return *used, fmt.Errorf("refund %s to %s: %w", unused.Dec(), sender, err)
		}
		misc.Infof(l.logger, "refunded %s of %s to %s", unused.Dec(), amount.Dec(), sender)
	}
	return *used, callErr
}

func (l *Ledger) transfer(sender, receiver string, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if sender == receiver {
		return ErrSelfTransfer
	}
	from, err := l.store.TokenBalance(sender)
	if err != nil {
		return err
	}
	to, err := l.store.TokenBalance(receiver)
	if err != nil {
		return err
	}
	if from.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, sender, from.Dec(), amount.Dec())
	}
	from.Sub(&from, amount)
	if _, overflow := to.AddOverflow(&to, amount); overflow {
		return ErrBalanceOverflow
	}
	return l.store.CommitTokenBalances(map[string]uint256.Int{sender: from, receiver: to})
}
