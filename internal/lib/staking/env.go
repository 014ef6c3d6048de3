package staking

import (
	"github.com/holiman/uint256"
)

// Env is the execution context of one call into the ledger, supplied by the host.
// Nothing in this package reads the wall clock or any process-wide state.
type Env struct {
	// BlockHeight is the live block height; accrual uses it unless the pool is paused.
	BlockHeight uint64
	Epoch       uint64
	// Timestamp in unix nanoseconds
	Timestamp uint64
	// Predecessor is the account id making the call.
	Predecessor     string
	AttachedDeposit uint256.Int
	// StorageByteCost is what one byte of account storage costs the registering caller.
	StorageByteCost uint256.Int
}

func (e Env) attachedExactlyOne() bool {
	return e.AttachedDeposit.IsUint64() && e.AttachedDeposit.Uint64() == 1
}
