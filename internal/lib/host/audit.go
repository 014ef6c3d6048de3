package host

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mailgun/holster/v4/syncutil"

	"github.com/TxnLab/ftstake/internal/lib/misc"
	"github.com/TxnLab/ftstake/internal/lib/staking"
)

// AuditReport compares the per-account balances with the pool aggregate.
type AuditReport struct {
	Accounts   int
	Stakers    uint64
	SumStake   uint256.Int
	SumReward  uint256.Int
	TotalStake uint256.Int
	NumStaker  uint64
	PoolReward uint256.Int
}

// StakeConsistent reports whether the staked balances add up to the pool total and staker count.
// Rewards are not compared exactly; per-account truncation makes their sum drift below the pool's.
func (r AuditReport) StakeConsistent() bool {
	return r.SumStake.Eq(&r.TotalStake) && r.Stakers == r.NumStaker
}

// RewardDrift is the pool reward minus the sum of account rewards.
func (r AuditReport) RewardDrift() string {
	if r.PoolReward.Lt(&r.SumReward) {
		return "-" + new(uint256.Int).Sub(&r.SumReward, &r.PoolReward).Dec()
	}
	return new(uint256.Int).Sub(&r.PoolReward, &r.SumReward).Dec()
}

func (r AuditReport) String() string {
	return fmt.Sprintf("accounts:%d stakers:%d/%d stake:%s/%s reward:%s/%s drift:%s",
		r.Accounts, r.Stakers, r.NumStaker, r.SumStake.Dec(), r.TotalStake.Dec(),
		r.SumReward.Dec(), r.PoolReward.Dec(), r.RewardDrift())
}

type accountTotals struct {
	stake  uint256.Int
	reward uint256.Int
}

// Audit reads every account in parallel and totals them against the pool, holding off all other calls
// while it runs.
func (h *Host) Audit(parallelism int) (AuditReport, error) {
	var report AuditReport
	err := h.call("audit", func() error {
		ids, err := h.accounts.AccountIDs()
		if err != nil {
			return err
		}
		// accounts and the pool are all accrued to this one block
		var (
			contract = h.ledger.Contract()
			block    = contract.Pool.Pause.EffectiveBlock(h.env(Call{}).BlockHeight)
			pool     = contract.Pool
			fanOut   = syncutil.NewFanOut(max(parallelism, 1))
			totalsCh = make(chan accountTotals, len(ids))
		)
		for _, id := range ids {
			fanOut.Run(func(val any) error {
				id := val.(string)
				va, err := h.accounts.Account(id)
				if err != nil {
					return err
				}
				account := staking.UpgradeAccount(va)
				if account.LastCheckpointBlock > block {
					return fmt.Errorf("account %s checkpoint %d is past block %d", id, account.LastCheckpointBlock, block)
				}
				reward := staking.Accrue(&account.StakeBalance, account.LastCheckpointBlock, block,
					contract.Config.RewardNum, contract.Config.RewardDenom)
				reward.Add(reward, &account.PreReward)
				totalsCh <- accountTotals{stake: account.StakeBalance, reward: *reward}
				return nil
			}, id)
		}
		errs := fanOut.Wait()
		close(totalsCh)
		if len(errs) > 0 {
			return errs[0]
		}

		for totals := range totalsCh {
			report.Accounts++
			report.SumStake.Add(&report.SumStake, &totals.stake)
			report.SumReward.Add(&report.SumReward, &totals.reward)
			if !totals.stake.IsZero() {
				report.Stakers++
			}
		}
		if pool.LastCheckpointBlock > block {
			return fmt.Errorf("pool checkpoint %d is past block %d", pool.LastCheckpointBlock, block)
		}
		poolReward := staking.Accrue(&pool.TotalStake, pool.LastCheckpointBlock, block,
			contract.Config.RewardNum, contract.Config.RewardDenom)
		report.PoolReward = *poolReward.Add(poolReward, &pool.PreReward)
		report.TotalStake = pool.TotalStake
		report.NumStaker = pool.NumStaker
		return nil
	})
	if err == nil && !report.StakeConsistent() {
		misc.Errorf(h.logger, "stake totals diverged from the pool: %s", report)
	}
	return report, err
}
