package staking

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/TxnLab/ftstake/internal/lib/misc"
)

const (
	harvestMemo  = "Harvest reward from staking"
	withdrawMemo = "Unstaked token from staking contract"
)

// TransferRequest is the outbound instruction for the token contract.
type TransferRequest struct {
	Receiver string
	Amount   uint256.Int
	Memo     string
}

// TransferResult is the single outcome the host reports for a TransferRequest.
type TransferResult struct {
	ok    bool
	Value []byte
}

func Succeeded(value []byte) TransferResult {
	return TransferResult{ok: true, Value: value}
}

func Failed() TransferResult {
	return TransferResult{}
}

func (r TransferResult) OK() bool {
	return r.ok
}

type TransferKind int

const (
	TransferHarvest TransferKind = iota
	TransferWithdraw
)

func (k TransferKind) String() string {
	if k == TransferHarvest {
		return "harvest"
	}
	return "withdraw"
}

// PendingTransfer is phase one of a harvest or withdraw: the request to deliver and what to do with its
// outcome. The host delivers Request and passes the outcome to Ledger.Resolve.
type PendingTransfer struct {
	ID        uint64
	Kind      TransferKind
	AccountID string
	Request   TransferRequest

	// account as it was before a withdraw cleared its unstaked balance
	snapshot Account
	resolve  func(env Env, result TransferResult) (uint256.Int, error)
}

// Harvest requests the transfer of the caller's claimable reward. Nothing is mutated until the transfer succeeds,
// so a second request issued before the first resolves claims the same reward again.
func (l *Ledger) Harvest(env Env) (*PendingTransfer, error) {
	if !env.attachedExactlyOne() {
		return nil, ErrRequireOneFeeUnit
	}
	accountID := env.Predecessor
	account, err := l.loadAccount(accountID)
	if err != nil {
		return nil, err
	}
	reward := l.contract.Config.accrue(&account.StakeBalance, account.LastCheckpointBlock, l.effectiveBlock(env))
	add(reward, &account.PreReward)
	if reward.IsZero() {
		return nil, ErrZeroReward
	}

	pt := l.newPendingTransfer(TransferHarvest, accountID, reward, harvestMemo)
	pt.resolve = func(env Env, result TransferResult) (uint256.Int, error) {
		return l.resolveHarvest(env, pt, result)
	}
	misc.Infof(l.logger, "harvest #%d of %s requested for %s", pt.ID, reward.Dec(), accountID)
	return pt, nil
}

func (l *Ledger) resolveHarvest(env Env, pt *PendingTransfer, result TransferResult) (uint256.Int, error) {
	if !result.OK() {
		misc.Errorf(l.logger, "harvest #%d for %s failed", pt.ID, pt.AccountID)
		return uint256.Int{}, fmt.Errorf("%w: %s", ErrHarvestTransferFailed, pt.AccountID)
	}
	account, err := l.loadExistingAccount(pt.AccountID)
	if err != nil {
		return uint256.Int{}, err
	}
	contract := l.contract

	account.PreReward.Clear()
	account.LastCheckpointBlock = l.effectiveBlock(env)
	add(&contract.Pool.TotalPaidReward, &pt.Request.Amount)

	if err = l.commit(ChangeSet{Accounts: map[string]Account{pt.AccountID: account}, Contract: &contract}); err != nil {
		return uint256.Int{}, err
	}
	l.logger.Info("harvested", "account", pt.AccountID, "amount", pt.Request.Amount.Dec(), "transfer", pt.ID)
	return pt.Request.Amount, nil
}

// Withdraw requests the transfer of the caller's unlocked unstaked balance. The balance is cleared before the
// request is issued so a second withdraw in the same window finds nothing; a failed transfer restores the account.
func (l *Ledger) Withdraw(env Env) (*PendingTransfer, error) {
	if !env.attachedExactlyOne() {
		return nil, ErrRequireOneFeeUnit
	}
	accountID := env.Predecessor
	account, err := l.loadAccount(accountID)
	if err != nil {
		return nil, err
	}
	if account.UnstakeAvailableEpoch > env.Epoch {
		return nil, fmt.Errorf("%w: available at epoch %d, current epoch %d", ErrUnstakeLocked, account.UnstakeAvailableEpoch, env.Epoch)
	}
	if account.UnstakeBalance.IsZero() {
		return nil, ErrNothingToWithdraw
	}

	snapshot := account
	account.UnstakeBalance.Clear()
	if err = l.commit(ChangeSet{Accounts: map[string]Account{accountID: account}}); err != nil {
		return nil, err
	}

	pt := l.newPendingTransfer(TransferWithdraw, accountID, &snapshot.UnstakeBalance, withdrawMemo)
	pt.snapshot = snapshot
	pt.resolve = func(env Env, result TransferResult) (uint256.Int, error) {
		return l.resolveWithdraw(pt, result)
	}
	misc.Infof(l.logger, "withdraw #%d of %s requested for %s", pt.ID, snapshot.UnstakeBalance.Dec(), accountID)
	return pt, nil
}

func (l *Ledger) resolveWithdraw(pt *PendingTransfer, result TransferResult) (uint256.Int, error) {
	if result.OK() {
		l.logger.Info("withdrawn", "account", pt.AccountID, "amount", pt.Request.Amount.Dec(), "transfer", pt.ID)
		return pt.Request.Amount, nil
	}
	if err := l.commit(ChangeSet{Accounts: map[string]Account{pt.AccountID: pt.snapshot}}); err != nil {
		return uint256.Int{}, err
	}
	misc.Warnf(l.logger, "withdraw #%d for %s failed, restored unstaked balance:%s", pt.ID, pt.AccountID, pt.snapshot.UnstakeBalance.Dec())
	return uint256.Int{}, nil
}

// Resolve is phase two of a harvest or withdraw. It must be invoked by the contract itself with exactly one result.
func (l *Ledger) Resolve(env Env, pt *PendingTransfer, results ...TransferResult) (uint256.Int, error) {
	if len(results) != 1 {
		invariantf("transfer #%d resolved with %d results", pt.ID, len(results))
	}
	if env.Predecessor != l.contractID {
		return uint256.Int{}, ErrPrivateCallback
	}
	return pt.resolve(env, results[0])
}

func (l *Ledger) newPendingTransfer(kind TransferKind, accountID string, amount *uint256.Int, memo string) *PendingTransfer {
	l.nextTransferID++
	return &PendingTransfer{
		ID:        l.nextTransferID,
		Kind:      kind,
		AccountID: accountID,
		Request:   TransferRequest{Receiver: accountID, Amount: *amount, Memo: memo},
	}
}
