package host

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/TxnLab/ftstake/internal/lib/staking"
)

// Receipt tracks a requested harvest or withdraw until its transfer is resolved.
type Receipt struct {
	ID        uint64
	Kind      staking.TransferKind
	AccountID string
	Requested uint256.Int

	done      chan struct{}
	delivered bool
	paid      uint256.Int
	err       error
}

// Outcome is a resolved Receipt.
type Outcome struct {
	// Delivered reports whether the token transfer went through.
	Delivered bool
	// Paid is what the ledger accounted as paid out; zero for a rolled back withdraw.
	Paid uint256.Int
	Err  error
}

func newReceipt(pt *staking.PendingTransfer) *Receipt {
	return &Receipt{
		ID:        pt.ID,
		Kind:      pt.Kind,
		AccountID: pt.AccountID,
		Requested: pt.Request.Amount,
		done:      make(chan struct{}),
	}
}

func (r *Receipt) finish(delivered bool, paid uint256.Int, err error) {
	r.delivered, r.paid, r.err = delivered, paid, err
	close(r.done)
}

// Done is closed once the transfer has been resolved.
func (r *Receipt) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the transfer is resolved or ctx is done.
func (r *Receipt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-r.done:
		return Outcome{Delivered: r.delivered, Paid: r.paid, Err: r.err}, nil
	}
}
