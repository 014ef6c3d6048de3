package staking

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/TxnLab/ftstake/internal/lib/misc"
)

// Store persists accounts and the contract record.
type Store interface {
	// Account returns the stored shape of an account, or ErrAccountNotFound.
	Account(id string) (VersionedAccount, error)
	HasAccount(id string) (bool, error)
	// StorageSize is the number of bytes the account would occupy once written.
	StorageSize(id string, account Account) (uint64, error)
	// Commit applies every write in the change set, or none of them.
	Commit(cs ChangeSet) error
}

// ChangeSet is everything one call writes.
type ChangeSet struct {
	Accounts map[string]Account
	Contract *Contract
}

// Ledger is the staking state machine. It is not safe for concurrent use; the host serializes calls into it.
type Ledger struct {
	logger *slog.Logger
	store  Store
	// ContractID is the ledger's own account id - the sender of every outbound transfer
	contractID string
	contract   Contract

	nextTransferID uint64
}

func New(logger *slog.Logger, contractID string, store Store, contract Contract) (*Ledger, error) {
	if err := ValidateAccountID(contractID); err != nil {
		return nil, fmt.Errorf("contract id: %w", err)
	}
	if err := contract.Config.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		logger:     logger,
		store:      store,
		contractID: contractID,
		contract:   contract,
	}, nil
}

func (l *Ledger) ContractID() string {
	return l.contractID
}

//
// Getters - no state change
//

func (l *Ledger) Contract() Contract {
	return l.contract
}

func (l *Ledger) Config() Config {
	return l.contract.Config
}

func (l *Ledger) IsPaused() bool {
	return l.contract.Pool.Pause.IsPaused()
}

func (l *Ledger) Version() uint64 {
	return l.contract.Version
}

func (l *Ledger) AccountExists(id string) (bool, error) {
	return l.store.HasAccount(id)
}

// AccountInfo returns the account snapshot, including reward accrued up to the current effective block.
func (l *Ledger) AccountInfo(env Env, id string) (AccountView, error) {
	account, err := l.loadAccount(id)
	if err != nil {
		return AccountView{}, err
	}
	reward := l.contract.Config.accrue(&account.StakeBalance, account.LastCheckpointBlock, l.effectiveBlock(env))
	add(reward, &account.PreReward)
	return newAccountView(id, account, reward, env.Epoch), nil
}

func (l *Ledger) PoolInfo(env Env) PoolView {
	pool := l.contract.Pool
	reward := l.contract.Config.accrue(&pool.TotalStake, pool.LastCheckpointBlock, l.effectiveBlock(env))
	add(reward, &pool.PreReward)
	return newPoolView(pool, reward)
}

//
// Mutations
//

// StorageDeposit registers accountID (the caller when empty), charging the caller for the storage used and
// returning the part of the attached deposit that should be refunded. An existing account refunds everything.
func (l *Ledger) StorageDeposit(env Env, accountID string) (uint256.Int, error) {
	if env.AttachedDeposit.IsZero() {
		return uint256.Int{}, ErrRequireAtLeastOneFeeUnit
	}
	if accountID == "" {
		accountID = env.Predecessor
	}
	if err := ValidateAccountID(accountID); err != nil {
		return uint256.Int{}, err
	}
	exists, err := l.store.HasAccount(accountID)
	if err != nil {
		return uint256.Int{}, err
	}
	if exists {
		return env.AttachedDeposit, nil
	}

	account := NewAccount(l.effectiveBlock(env))
	size, err := l.store.StorageSize(accountID, account)
	if err != nil {
		return uint256.Int{}, err
	}
	cost, overflow := new(uint256.Int).MulOverflow(&env.StorageByteCost, uint256.NewInt(size))
	if overflow {
		invariantf("storage cost overflow for %d bytes", size)
	}
	if env.AttachedDeposit.Lt(cost) {
		return uint256.Int{}, fmt.Errorf("%w: must attach at least %s to cover storage", ErrInsufficientStorageDeposit, cost.Dec())
	}
	if err = l.commit(ChangeSet{Accounts: map[string]Account{accountID: account}}); err != nil {
		return uint256.Int{}, err
	}
	refund := env.AttachedDeposit
	sub(&refund, cost)
	misc.Infof(l.logger, "registered account:%s using %d bytes, refund:%s", accountID, size, refund.Dec())
	return refund, nil
}

// Register creates a zero-balance account checkpointed at the current block.
func (l *Ledger) Register(env Env, accountID string) error {
	if err := ValidateAccountID(accountID); err != nil {
		return err
	}
	exists, err := l.store.HasAccount(accountID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAccountExists
	}
	if err = l.commit(ChangeSet{Accounts: map[string]Account{accountID: NewAccount(l.effectiveBlock(env))}}); err != nil {
		return err
	}
	l.logger.Info("account registered", "account", accountID, "block", env.BlockHeight)
	return nil
}

// FtOnTransfer is invoked by the token contract when tokens are transferred to the ledger with a message.
// The whole amount is staked for sender; the returned amount is what the token contract must refund.
func (l *Ledger) FtOnTransfer(env Env, senderID string, amount *uint256.Int, msg string) (uint256.Int, error) {
	misc.Infof(l.logger, "User %s staking %s with message %q", senderID, amount.Dec(), msg)
	if err := l.DepositAndStake(env, senderID, amount); err != nil {
		return *amount, err
	}
	return uint256.Int{}, nil
}

func (l *Ledger) DepositAndStake(env Env, accountID string, amount *uint256.Int) error {
	if env.Predecessor != l.contract.TokenContractID {
		return ErrNotTokenContract
	}
	if l.contract.Pool.Pause.IsPaused() {
		return ErrPoolPaused
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	account, err := l.loadAccount(accountID)
	if err != nil {
		return err
	}
	var (
		contract = l.contract
		block    = l.effectiveBlock(env)
		wasEmpty = account.StakeBalance.IsZero()
	)

	account.checkpoint(contract.Config, block)
	add(&account.StakeBalance, amount)

	contract.Pool.checkpoint(contract.Config, block)
	add(&contract.Pool.TotalStake, amount)
	if wasEmpty {
		contract.Pool.NumStaker++
	}

	if err = l.commit(ChangeSet{Accounts: map[string]Account{accountID: account}, Contract: &contract}); err != nil {
		return err
	}
	l.logger.Info("staked", "account", accountID, "amount", amount.Dec(), "stake", account.StakeBalance.Dec())
	return nil
}

// Unstake moves amount of the caller's stake into the unstaked balance, locked for NumEpochUnlock epochs.
func (l *Ledger) Unstake(env Env, amount *uint256.Int) error {
	if !env.attachedExactlyOne() {
		return ErrRequireOneFeeUnit
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	accountID := env.Predecessor
	account, err := l.loadAccount(accountID)
	if err != nil {
		return err
	}
	if amount.Gt(&account.StakeBalance) {
		return fmt.Errorf("%w: staked %s, requested %s", ErrInsufficientStake, account.StakeBalance.Dec(), amount.Dec())
	}
	var (
		contract = l.contract
		block    = l.effectiveBlock(env)
	)

	account.checkpoint(contract.Config, block)
	sub(&account.StakeBalance, amount)
	add(&account.UnstakeBalance, amount)
	account.UnstakeStartTime = env.Timestamp
	account.UnstakeAvailableEpoch = env.Epoch + contract.Config.NumEpochUnlock

	if account.StakeBalance.IsZero() {
		if contract.Pool.NumStaker == 0 {
			invariantf("staker count underflow unstaking %s", accountID)
		}
		contract.Pool.NumStaker--
	}
	contract.Pool.checkpoint(contract.Config, block)
	sub(&contract.Pool.TotalStake, amount)

	if err = l.commit(ChangeSet{Accounts: map[string]Account{accountID: account}, Contract: &contract}); err != nil {
		return err
	}
	l.logger.Info("unstaked", "account", accountID, "amount", amount.Dec(), "available_epoch", account.UnstakeAvailableEpoch)
	return nil
}

// Pause freezes accrual for every account and the aggregate at the current block.
func (l *Ledger) Pause(env Env) error {
	if env.Predecessor != l.contract.OwnerID {
		return ErrNotOwner
	}
	if l.contract.Pool.Pause.IsPaused() {
		return ErrPoolPaused
	}
	contract := l.contract
	contract.Pool.Pause = PausedAt(env.BlockHeight)
	if err := l.commit(ChangeSet{Contract: &contract}); err != nil {
		return err
	}
	misc.Warnf(l.logger, "staking pool paused at block:%d", env.BlockHeight)
	return nil
}

func (l *Ledger) effectiveBlock(env Env) uint64 {
	return l.contract.Pool.Pause.EffectiveBlock(env.BlockHeight)
}

// loadAccount reads an account through the version adapter.
func (l *Ledger) loadAccount(id string) (Account, error) {
	va, err := l.store.Account(id)
	if err != nil {
		return Account{}, err
	}
	return UpgradeAccount(va), nil
}

// loadExistingAccount is loadAccount for accounts that must exist, such as the target of a transfer callback.
func (l *Ledger) loadExistingAccount(id string) (Account, error) {
	account, err := l.loadAccount(id)
	if errors.Is(err, ErrAccountNotFound) {
		invariantf("account %s disappeared", id)
	}
	return account, err
}

// commit persists the change set, and only then adopts the new contract record.
func (l *Ledger) commit(cs ChangeSet) error {
	if err := l.store.Commit(cs); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if cs.Contract != nil {
		l.contract = *cs.Contract
	}
	return nil
}
