package staking

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// AccountView is the read-only account snapshot. Amounts are decimal strings.
type AccountView struct {
	AccountID             string     `json:"account_id"`
	StakeBalance          string     `json:"stake_balance"`
	UnstakeBalance        string     `json:"unstake_balance"`
	Reward                string     `json:"reward"`
	CanWithdraw           bool       `json:"can_withdraw"`
	UnstakeStartTimestamp uint64     `json:"unstake_start_timestamp"`
	UnstakeAvailableEpoch uint64     `json:"unstake_available_epoch"`
	CurrentEpoch          uint64     `json:"current_epoch"`
	Membership            Membership `json:"membership"`
}

func newAccountView(id string, account Account, reward *uint256.Int, epoch uint64) AccountView {
	return AccountView{
		AccountID:             id,
		StakeBalance:          account.StakeBalance.Dec(),
		UnstakeBalance:        account.UnstakeBalance.Dec(),
		Reward:                reward.Dec(),
		CanWithdraw:           account.UnstakeAvailableEpoch <= epoch,
		UnstakeStartTimestamp: account.UnstakeStartTime,
		UnstakeAvailableEpoch: account.UnstakeAvailableEpoch,
		CurrentEpoch:          epoch,
		Membership:            account.Membership,
	}
}

func (v AccountView) String() string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("Account: %s\n", v.AccountID))
	out.WriteString(fmt.Sprintf("Membership: %s\n", v.Membership))
	out.WriteString(fmt.Sprintf("Staked: %s\n", v.StakeBalance))
	out.WriteString(fmt.Sprintf("Reward: %s\n", v.Reward))
	out.WriteString(fmt.Sprintf("Unstaked: %s\n", v.UnstakeBalance))
	if v.UnstakeBalance != "0" {
		out.WriteString(fmt.Sprintf("Withdrawable at epoch %d (current %d): %t\n", v.UnstakeAvailableEpoch, v.CurrentEpoch, v.CanWithdraw))
	}
	return out.String()
}

// PoolView is the read-only pool snapshot.
type PoolView struct {
	TotalStakeBalance string `json:"total_stake_balance"`
	TotalReward       string `json:"total_reward"`
	TotalPaidReward   string `json:"total_paid_reward"`
	TotalStaker       uint64 `json:"total_staker"`
	IsPaused          bool   `json:"is_paused"`
}

func newPoolView(pool Pool, reward *uint256.Int) PoolView {
	return PoolView{
		TotalStakeBalance: pool.TotalStake.Dec(),
		TotalReward:       reward.Dec(),
		TotalPaidReward:   pool.TotalPaidReward.Dec(),
		TotalStaker:       pool.NumStaker,
		IsPaused:          pool.Pause.IsPaused(),
	}
}
