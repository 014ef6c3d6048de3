package host

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/ftstake/internal/lib/staking"
	"github.com/TxnLab/ftstake/internal/lib/store"
	"github.com/TxnLab/ftstake/internal/lib/token"
)

const (
	alice      = "alice.near"
	bob        = "bob.near"
	stakeID    = "stake.near"
	tokenID    = "token.near"
	ownerID    = "owner.near"
	genesisSec = 1_700_000_000
)

type fixture struct {
	host   *Host
	store  *store.Store
	tokens *token.Ledger
	now    time.Time
	// added to now on every clock read
	tick time.Duration
}

func newFixture(t *testing.T, async bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	contract, err := staking.NewContract(ownerID, tokenID, staking.DefaultConfig(), 100)
	require.NoError(t, err)
	require.NoError(t, s.InitContract(contract))
	ledger, err := staking.New(logger, stakeID, s, contract)
	require.NoError(t, err)
	tokens := token.New(logger, tokenID, s)

	genesis := time.Unix(genesisSec, 0)
	f := &fixture{store: s, tokens: tokens, now: genesis.Add(100 * time.Second)}
	clock := NewClockWithTimeFunc(genesis, time.Second, 100, func() time.Time {
		if f.tick != 0 {
			f.now = f.now.Add(f.tick)
		}
		return f.now
	})

	f.host = New(logger, ledger, tokens, s, clock, Config{
		ContractID:    stakeID,
		Async:         async,
		DeliveryTries: 2,
		RetryDelay:    time.Millisecond,
	})
	t.Cleanup(f.host.Close)
	return f
}

func (f *fixture) advance(blocks int) {
	f.now = f.now.Add(time.Duration(blocks) * time.Second)
}

func (f *fixture) balance(t *testing.T, id string) uint64 {
	t.Helper()
	b, err := f.tokens.BalanceOf(id)
	require.NoError(t, err)
	return b.Uint64()
}

func (f *fixture) fundAndStake(t *testing.T, id string, amount uint64) {
	t.Helper()
	_, err := f.tokens.Mint(id, uint256.NewInt(amount))
	require.NoError(t, err)
	require.NoError(t, f.host.Register(id))
	used, err := f.host.Stake(context.Background(), id, uint256.NewInt(amount), "")
	require.NoError(t, err)
	require.Equal(t, amount, used.Uint64())
}

func wait(t *testing.T, r *Receipt) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := r.Wait(ctx)
	require.NoError(t, err)
	return outcome
}

func TestStakeHarvestWithdraw(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.fundAndStake(t, alice, 1_000_000)
	assert.Equal(t, uint64(0), f.balance(t, alice))
	assert.Equal(t, uint64(1_000_000), f.balance(t, stakeID))

	f.advance(1_000)
	view, err := f.host.AccountInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, "715", view.Reward)

	receipt, err := f.host.Harvest(ctx, OneFeeUnit(alice))
	require.NoError(t, err)
	assert.Equal(t, staking.TransferHarvest, receipt.Kind)
	outcome := wait(t, receipt)
	require.NoError(t, outcome.Err)
	assert.True(t, outcome.Delivered)
	assert.Equal(t, uint64(715), outcome.Paid.Uint64())
	assert.Equal(t, uint64(715), f.balance(t, alice))

	require.NoError(t, f.host.Unstake(OneFeeUnit(alice), uint256.NewInt(400_000)))
	_, err = f.host.Withdraw(ctx, OneFeeUnit(alice))
	assert.ErrorIs(t, err, staking.ErrUnstakeLocked)

	f.advance(100)
	receipt, err = f.host.Withdraw(ctx, OneFeeUnit(alice))
	require.NoError(t, err)
	outcome = wait(t, receipt)
	require.NoError(t, outcome.Err)
	assert.Equal(t, uint64(400_000), outcome.Paid.Uint64())
	assert.Equal(t, uint64(400_715), f.balance(t, alice))

	pool, err := f.host.PoolInfo()
	require.NoError(t, err)
	assert.Equal(t, "600000", pool.TotalStakeBalance)
	assert.Equal(t, "715", pool.TotalPaidReward)
	assert.Equal(t, uint64(1), pool.TotalStaker)
}

func TestStakeRejectedIsRefunded(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.tokens.Mint(bob, uint256.NewInt(100))
	require.NoError(t, err)

	used, err := f.host.Stake(context.Background(), bob, uint256.NewInt(100), "")
	assert.ErrorIs(t, err, staking.ErrAccountNotFound)
	assert.True(t, used.IsZero())
	assert.Equal(t, uint64(100), f.balance(t, bob))
	assert.Equal(t, uint64(0), f.balance(t, stakeID))
}

func TestFailedTransfers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.fundAndStake(t, alice, 1_000_000)
	require.NoError(t, f.host.Unstake(OneFeeUnit(alice), uint256.NewInt(1_000)))
	f.advance(1_000)

	// drain the contract so every payout is rejected
	require.NoError(t, f.tokens.Transfer(ctx, stakeID, "sink.near", uint256.NewInt(1_000_000), ""))
	before, err := f.store.Account(alice)
	require.NoError(t, err)

	receipt, err := f.host.Harvest(ctx, OneFeeUnit(alice))
	require.NoError(t, err)
	outcome := wait(t, receipt)
	assert.False(t, outcome.Delivered)
	assert.ErrorIs(t, outcome.Err, staking.ErrHarvestTransferFailed)

	receipt, err = f.host.Withdraw(ctx, OneFeeUnit(alice))
	require.NoError(t, err)
	outcome = wait(t, receipt)
	assert.False(t, outcome.Delivered)
	require.NoError(t, outcome.Err)
	assert.True(t, outcome.Paid.IsZero())

	after, err := f.store.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAsyncDelivery(t *testing.T) {
	f := newFixture(t, true)
	f.fundAndStake(t, alice, 1_000_000)
	f.advance(1_000)

	receipt, err := f.host.Harvest(context.Background(), OneFeeUnit(alice))
	require.NoError(t, err)
	outcome := wait(t, receipt)
	require.NoError(t, outcome.Err)
	assert.Equal(t, uint64(715), outcome.Paid.Uint64())
	assert.Equal(t, uint64(715), f.balance(t, alice))
}

func TestInvariantAbortsCall(t *testing.T) {
	f := newFixture(t, false)
	f.fundAndStake(t, alice, 1_000)
	before, err := f.store.Account(alice)
	require.NoError(t, err)

	f.advance(-50)
	err = f.host.Unstake(OneFeeUnit(alice), uint256.NewInt(10))
	assert.ErrorIs(t, err, ErrAborted)
	_, err = f.host.AccountInfo(alice)
	assert.ErrorIs(t, err, ErrAborted)

	f.advance(50)
	after, err := f.store.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	require.NoError(t, f.host.Unstake(OneFeeUnit(alice), uint256.NewInt(10)))
}

func TestPause(t *testing.T) {
	f := newFixture(t, false)
	assert.ErrorIs(t, f.host.Pause(Call{Caller: alice}), staking.ErrNotOwner)
	require.NoError(t, f.host.Pause(Call{Caller: ownerID}))

	pool, err := f.host.PoolInfo()
	require.NoError(t, err)
	assert.True(t, pool.IsPaused)
}

func TestStorageDeposit(t *testing.T) {
	f := newFixture(t, false)
	f.host.cfg.StorageByteCost.SetUint64(1)

	refund, err := f.host.StorageDeposit(Call{Caller: alice, Deposit: *uint256.NewInt(10_000)}, "")
	require.NoError(t, err)
	assert.Less(t, refund.Uint64(), uint64(10_000))
	has, err := f.store.HasAccount(alice)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAudit(t *testing.T) {
	f := newFixture(t, false)
	f.fundAndStake(t, alice, 1_000_000)
	f.fundAndStake(t, bob, 300_000)
	require.NoError(t, f.host.Register("carol.near"))
	f.advance(1_000)

	report, err := f.host.Audit(4)
	require.NoError(t, err)
	assert.True(t, report.StakeConsistent())
	assert.Equal(t, 3, report.Accounts)
	assert.Equal(t, uint64(2), report.Stakers)
	assert.Equal(t, uint64(1_300_000), report.SumStake.Uint64())
	assert.Equal(t, uint64(929), report.SumReward.Uint64())
	assert.Equal(t, uint64(929), report.PoolReward.Uint64())
	assert.Equal(t, "0", report.RewardDrift())
}

func TestAuditComparesOneBlock(t *testing.T) {
	f := newFixture(t, false)
	// 715 per block, no truncation
	f.fundAndStake(t, alice, 1_000_000_000)
	f.advance(1_000)

	f.tick = time.Second
	report, err := f.host.Audit(2)
	require.NoError(t, err)
	assert.Equal(t, report.PoolReward, report.SumReward)
	assert.Equal(t, "0", report.RewardDrift())
	assert.False(t, report.PoolReward.IsZero())
}

func TestClock(t *testing.T) {
	genesis := time.Unix(genesisSec, 0)
	tests := []struct {
		name       string
		offset     time.Duration
		wantHeight uint64
		wantEpoch  uint64
	}{
		{"before genesis", -time.Hour, 0, 0},
		{"at genesis", 0, 0, 0},
		{"mid block", 1500 * time.Millisecond, 1, 0},
		{"epoch boundary", 100 * time.Second, 100, 1},
		{"later", 12_345 * time.Second, 12_345, 123},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClockWithTimeFunc(genesis, time.Second, 100, func() time.Time { return genesis.Add(tt.offset) })
			_, height, epoch := clock.Now()
			assert.Equal(t, tt.wantHeight, height)
			assert.Equal(t, tt.wantEpoch, epoch)
		})
	}
	assert.Equal(t, genesis.Add(300*time.Second), NewClock(genesis, time.Second, 100).EpochStart(3))
}
