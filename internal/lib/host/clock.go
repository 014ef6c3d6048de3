package host

import (
	"time"
)

// Clock converts wall-clock time to block heights and epochs.
type Clock struct {
	Genesis        time.Time
	BlockInterval  time.Duration
	BlocksPerEpoch uint64
	timeFunc       func() time.Time
}

func NewClock(genesis time.Time, blockInterval time.Duration, blocksPerEpoch uint64) *Clock {
	return NewClockWithTimeFunc(genesis, blockInterval, blocksPerEpoch, time.Now)
}

// NewClockWithTimeFunc creates a Clock with a custom time source (for testing).
func NewClockWithTimeFunc(genesis time.Time, blockInterval time.Duration, blocksPerEpoch uint64, timeFunc func() time.Time) *Clock {
	if blockInterval <= 0 {
		blockInterval = time.Second
	}
	if blocksPerEpoch == 0 {
		blocksPerEpoch = 1
	}
	return &Clock{
		Genesis:        genesis,
		BlockInterval:  blockInterval,
		BlocksPerEpoch: blocksPerEpoch,
		timeFunc:       timeFunc,
	}
}

// Now returns the current time with its block height and epoch. Both are 0 before genesis.
func (c *Clock) Now() (now time.Time, height uint64, epoch uint64) {
	now = c.timeFunc()
	if now.Before(c.Genesis) {
		return now, 0, 0
	}
	height = uint64(now.Sub(c.Genesis) / c.BlockInterval)
	return now, height, height / c.BlocksPerEpoch
}

// EpochStart returns when epoch begins.
func (c *Clock) EpochStart(epoch uint64) time.Time {
	return c.Genesis.Add(time.Duration(epoch*c.BlocksPerEpoch) * c.BlockInterval)
}
