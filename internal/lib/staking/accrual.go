package staking

import (
	"github.com/holiman/uint256"
)

// Accrue computes the reward earned by stake between lastCheckpoint and effectiveBlock:
//
//	stake * (effectiveBlock - lastCheckpoint) * rateNum / rateDenom
//
// The product is formed before the division and truncated, in 256 bit arithmetic. The same function is used
// for a single account and for the pool aggregate.
func Accrue(stake *uint256.Int, lastCheckpoint, effectiveBlock uint64, rateNum uint32, rateDenom uint64) *uint256.Int {
	if effectiveBlock < lastCheckpoint {
		invariantf("accrual over negative block span: checkpoint %d is after block %d", lastCheckpoint, effectiveBlock)
	}
	if rateDenom == 0 {
		invariantf("accrual with zero reward denominator")
	}
	reward, overflow := new(uint256.Int).MulOverflow(stake, uint256.NewInt(effectiveBlock-lastCheckpoint))
	if overflow {
		invariantf("accrual overflow: stake %s over %d blocks", stake.Dec(), effectiveBlock-lastCheckpoint)
	}
	if _, overflow = reward.MulOverflow(reward, uint256.NewInt(uint64(rateNum))); overflow {
		invariantf("accrual overflow: stake %s at rate %d", stake.Dec(), rateNum)
	}
	return reward.Div(reward, uint256.NewInt(rateDenom))
}

// accrue is Accrue with the rate taken from the config.
func (c Config) accrue(stake *uint256.Int, lastCheckpoint, effectiveBlock uint64) *uint256.Int {
	return Accrue(stake, lastCheckpoint, effectiveBlock, c.RewardNum, c.RewardDenom)
}

func add(z, x *uint256.Int) {
	if _, overflow := z.AddOverflow(z, x); overflow {
		invariantf("balance overflow adding %s", x.Dec())
	}
}

func sub(z, x *uint256.Int) {
	if _, underflow := z.SubOverflow(z, x); underflow {
		invariantf("balance underflow subtracting %s", x.Dec())
	}
}
