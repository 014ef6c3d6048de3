// Package host runs a staking ledger: it serializes calls into it, supplies each call's execution context,
// and delivers the token transfers the ledger requests.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/ssgreg/repeat"

	"github.com/TxnLab/ftstake/internal/lib/misc"
	"github.com/TxnLab/ftstake/internal/lib/staking"
	"github.com/TxnLab/ftstake/internal/lib/token"
)

// ErrAborted is returned for a call that hit a ledger invariant. Nothing it did was committed.
var ErrAborted = errors.New("call aborted")

// AccountSource lists and reads the stored accounts.
type AccountSource interface {
	AccountIDs() ([]string, error)
	Account(id string) (staking.VersionedAccount, error)
}

type Config struct {
	// ContractID is the staking ledger's own account id; rewards and withdrawals are paid from it.
	ContractID      string
	StorageByteCost uint256.Int
	// Async delivers transfers in the background instead of within the call.
	Async bool
	// Attempts per transfer before it is reported failed.
	DeliveryTries int
	RetryDelay    time.Duration
}

// Call is who makes a call and what they attach to it.
type Call struct {
	Caller  string
	Deposit uint256.Int
}

// OneFeeUnit is a call by caller with the single fee unit harvest, unstake and withdraw require.
func OneFeeUnit(caller string) Call {
	return Call{Caller: caller, Deposit: *uint256.NewInt(1)}
}

type Host struct {
	logger   *slog.Logger
	ledger   *staking.Ledger
	tokens   *token.Ledger
	accounts AccountSource
	clock    *Clock
	cfg      Config

	// serializes every call into the ledger
	sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	inFlight sync.WaitGroup
}

func New(logger *slog.Logger, ledger *staking.Ledger, tokens *token.Ledger, accounts AccountSource, clock *Clock, cfg Config) *Host {
	if cfg.DeliveryTries <= 0 {
		cfg.DeliveryTries = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		logger:   logger,
		ledger:   ledger,
		tokens:   tokens,
		accounts: accounts,
		clock:    clock,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.updateMetrics()
	return h
}

// Close waits for in-flight transfers to be resolved.
func (h *Host) Close() {
	h.inFlight.Wait()
	h.cancel()
}

func (h *Host) Clock() *Clock {
	return h.clock
}

func (h *Host) env(call Call) staking.Env {
	now, height, epoch := h.clock.Now()
	return staking.Env{
		BlockHeight:     height,
		Epoch:           epoch,
		Timestamp:       uint64(now.UnixNano()),
		Predecessor:     call.Caller,
		AttachedDeposit: call.Deposit,
		StorageByteCost: h.cfg.StorageByteCost,
	}
}

// call runs fn as one indivisible unit.
func (h *Host) call(op string, fn func() error) error {
	h.Lock()
	defer h.Unlock()
	err := h.guard(op, fn)
	result := "ok"
	if err != nil {
		result = "error"
	}
	promCalls.WithLabelValues(op, result).Inc()
	h.updateMetrics()
	return err
}

// guard reports an invariant panic inside fn as ErrAborted. The ledger only adopts state after a successful
// commit, so nothing of the aborted call survives.
func (h *Host) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			invariant, ok := r.(staking.InvariantError)
			if !ok {
				panic(r)
			}
			misc.Errorf(h.logger, "%s aborted: %v", op, invariant)
			err = fmt.Errorf("%w: %s: %v", ErrAborted, op, invariant)
		}
	}()
	return fn()
}

func (h *Host) StorageDeposit(call Call, accountID string) (uint256.Int, error) {
	var refund uint256.Int
	err := h.call("storage_deposit", func() error {
		var err error
		refund, err = h.ledger.StorageDeposit(h.env(call), accountID)
		return err
	})
	return refund, err
}

func (h *Host) Register(accountID string) error {
	return h.call("register", func() error {
		return h.ledger.Register(h.env(Call{Caller: accountID}), accountID)
	})
}

// Stake sends amount of accountID's tokens to the ledger, which stakes them. It returns the amount staked;
// anything the ledger rejects is refunded by the token ledger.
func (h *Host) Stake(ctx context.Context, accountID string, amount *uint256.Int, msg string) (uint256.Int, error) {
	return h.tokens.TransferCall(ctx, accountID, h.cfg.ContractID, amount, msg,
		func(_ context.Context, sender string, amount *uint256.Int, msg string) (uint256.Int, error) {
			var unused uint256.Int
			err := h.call("stake", func() error {
				var err error
				unused, err = h.ledger.FtOnTransfer(h.env(Call{Caller: h.tokens.ID()}), sender, amount, msg)
				return err
			})
			return unused, err
		})
}

func (h *Host) Unstake(call Call, amount *uint256.Int) error {
	return h.call("unstake", func() error {
		return h.ledger.Unstake(h.env(call), amount)
	})
}

func (h *Host) Pause(call Call) error {
	return h.call("pause", func() error {
		return h.ledger.Pause(h.env(call))
	})
}

func (h *Host) Harvest(ctx context.Context, call Call) (*Receipt, error) {
	return h.requestTransfer(ctx, "harvest", func() (*staking.PendingTransfer, error) {
		return h.ledger.Harvest(h.env(call))
	})
}

func (h *Host) Withdraw(ctx context.Context, call Call) (*Receipt, error) {
	return h.requestTransfer(ctx, "withdraw", func() (*staking.PendingTransfer, error) {
		return h.ledger.Withdraw(h.env(call))
	})
}

func (h *Host) AccountInfo(accountID string) (staking.AccountView, error) {
	var view staking.AccountView
	err := h.call("account_info", func() error {
		var err error
		view, err = h.ledger.AccountInfo(h.env(Call{Caller: accountID}), accountID)
		return err
	})
	return view, err
}

func (h *Host) PoolInfo() (staking.PoolView, error) {
	var view staking.PoolView
	err := h.call("pool_info", func() error {
		view = h.ledger.PoolInfo(h.env(Call{Caller: h.cfg.ContractID}))
		return nil
	})
	return view, err
}

// requestTransfer runs phase one of a harvest or withdraw, then delivers the transfer and resolves it,
// within the call or in the background.
func (h *Host) requestTransfer(ctx context.Context, op string, phaseOne func() (*staking.PendingTransfer, error)) (*Receipt, error) {
	var pt *staking.PendingTransfer
	err := h.call(op, func() error {
		var err error
		pt, err = phaseOne()
		return err
	})
	if err != nil {
		return nil, err
	}
	receipt := newReceipt(pt)
	promPendingTransfers.Inc()
	if !h.cfg.Async {
		h.deliver(ctx, pt, receipt)
		return receipt, nil
	}
	h.inFlight.Add(1)
	go func() {
		defer h.inFlight.Done()
		h.deliver(h.ctx, pt, receipt)
	}()
	return receipt, nil
}

func (h *Host) deliver(ctx context.Context, pt *staking.PendingTransfer, receipt *Receipt) {
	defer promPendingTransfers.Dec()

	result := staking.Succeeded(nil)
	if err := h.transfer(ctx, pt); err != nil {
		misc.Errorf(h.logger, "%s #%d of %s to %s failed: %v", pt.Kind, pt.ID, pt.Request.Amount.Dec(), pt.Request.Receiver, err)
		result = staking.Failed()
	}
	var paid uint256.Int
	err := h.call("resolve_"+pt.Kind.String(), func() error {
		var err error
		paid, err = h.ledger.Resolve(h.env(Call{Caller: h.cfg.ContractID}), pt, result)
		return err
	})
	receipt.finish(result.OK(), paid, err)
}

// transfer pays out the request, retrying failures to reach the token ledger. Rejections are not retried.
func (h *Host) transfer(ctx context.Context, pt *staking.PendingTransfer) error {
	return repeat.Repeat(
		repeat.Fn(func() error {
			err := h.tokens.Transfer(ctx, h.cfg.ContractID, pt.Request.Receiver, &pt.Request.Amount, pt.Request.Memo)
			if err != nil && !token.IsPermanent(err) && ctx.Err() == nil {
				return repeat.HintTemporary(err)
			}
			return err
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(h.cfg.DeliveryTries),
		repeat.FnOnError(func(err error) error {
			misc.Warnf(h.logger, "transfer #%d to %s, error:%v", pt.ID, pt.Request.Receiver, err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContext(ctx),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: h.cfg.RetryDelay,
				MaxDelay:  10 * h.cfg.RetryDelay,
			}).Set(),
		),
	)
}

func (h *Host) updateMetrics() {
	pool := h.ledger.Contract().Pool
	promTotalStaked.Set(toFloat(&pool.TotalStake))
	promNumStakers.Set(float64(pool.NumStaker))
	promPaidReward.Set(toFloat(&pool.TotalPaidReward))
	if pool.Pause.IsPaused() {
		promPaused.Set(1)
	} else {
		promPaused.Set(0)
	}
	h.guard("metrics", func() error {
		view := h.ledger.PoolInfo(h.env(Call{Caller: h.cfg.ContractID}))
		reward, err := uint256.FromDecimal(view.TotalReward)
		if err == nil {
			promPoolReward.Set(toFloat(reward))
		}
		return err
	})
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
