package staking

import "fmt"

// Config holds the reward rate and unstake lock parameters for a pool.
// With the defaults a block-based accrual of 715/1e9 per block works out to roughly 15-18% APR.
type Config struct {
	// Incentive numerator
	RewardNum uint32 `yaml:"reward_num" json:"reward_num"`
	// Incentive denominator
	RewardDenom uint64 `yaml:"reward_denom" json:"reward_denom"`
	// Number of epochs to wait before unstaked tokens can be withdrawn
	NumEpochUnlock uint64 `yaml:"num_epoch_unlock" json:"num_epoch_unlock"`
}

func DefaultConfig() Config {
	return Config{RewardNum: 715, RewardDenom: 1_000_000_000, NumEpochUnlock: 1}
}

func (c Config) Validate() error {
	if c.RewardDenom == 0 {
		return fmt.Errorf("reward denominator must be non-zero")
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("RewardNum: %d, RewardDenom: %d, NumEpochUnlock: %d", c.RewardNum, c.RewardDenom, c.NumEpochUnlock)
}
