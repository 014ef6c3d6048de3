package staking

import (
	"github.com/holiman/uint256"
)

// PauseState is either Active or Paused at a frozen block.
type PauseState struct {
	paused      bool
	frozenBlock uint64
}

func Active() PauseState {
	return PauseState{}
}

func PausedAt(block uint64) PauseState {
	return PauseState{paused: true, frozenBlock: block}
}

func (p PauseState) IsPaused() bool {
	return p.paused
}

// FrozenBlock returns the block accrual is frozen at, if paused.
func (p PauseState) FrozenBlock() (uint64, bool) {
	return p.frozenBlock, p.paused
}

// EffectiveBlock is the block every accrual computation runs to.
func (p PauseState) EffectiveBlock(live uint64) uint64 {
	if p.paused {
		return p.frozenBlock
	}
	return live
}

// Pool is the pool-wide mirror of the per-account balances.
type Pool struct {
	TotalStake          uint256.Int
	TotalPaidReward     uint256.Int
	NumStaker           uint64
	PreReward           uint256.Int
	LastCheckpointBlock uint64
	Pause               PauseState
}

func (p *Pool) checkpoint(cfg Config, block uint64) {
	add(&p.PreReward, cfg.accrue(&p.TotalStake, p.LastCheckpointBlock, block))
	p.LastCheckpointBlock = block
}

// Contract is the top level ledger record.
type Contract struct {
	OwnerID         string
	TokenContractID string
	Config          Config
	Pool            Pool
	Version         uint64
}

// ContractV1 is the contract record before it carried a version.
type ContractV1 struct {
	OwnerID         string
	TokenContractID string
	Config          Config
	Pool            Pool
}

const CurrentContractVersion = 2

// NewContract creates the record of a freshly initialized ledger.
func NewContract(ownerID, tokenContractID string, cfg Config, block uint64) (Contract, error) {
	if err := ValidateAccountID(ownerID); err != nil {
		return Contract{}, err
	}
	if err := ValidateAccountID(tokenContractID); err != nil {
		return Contract{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Contract{}, err
	}
	return Contract{
		OwnerID:         ownerID,
		TokenContractID: tokenContractID,
		Config:          cfg,
		Pool:            Pool{LastCheckpointBlock: block},
		Version:         CurrentContractVersion,
	}, nil
}

// MigrateContract is the one-time structural copy of a ContractV1 into the current shape.
func MigrateContract(old ContractV1) Contract {
	return Contract{
		OwnerID:         old.OwnerID,
		TokenContractID: old.TokenContractID,
		Config:          old.Config,
		Pool:            old.Pool,
		Version:         CurrentContractVersion,
	}
}
