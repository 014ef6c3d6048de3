package token

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/ftstake/internal/lib/store"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := store.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), "token.near", s)
}

func balance(t *testing.T, l *Ledger, id string) uint64 {
	t.Helper()
	b, err := l.BalanceOf(id)
	require.NoError(t, err)
	return b.Uint64()
}

func TestTransfer(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Mint("alice.near", uint256.NewInt(1_000))
	require.NoError(t, err)

	require.NoError(t, l.Transfer(ctx, "alice.near", "bob.near", uint256.NewInt(400), "gift"))
	assert.Equal(t, uint64(600), balance(t, l, "alice.near"))
	assert.Equal(t, uint64(400), balance(t, l, "bob.near"))

	tests := []struct {
		name     string
		from, to string
		amount   uint64
		wantErr  error
	}{
		{"insufficient", "alice.near", "bob.near", 601, ErrInsufficientBalance},
		{"zero", "alice.near", "bob.near", 0, ErrZeroAmount},
		{"self", "alice.near", "alice.near", 1, ErrSelfTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Transfer(ctx, tt.from, tt.to, uint256.NewInt(tt.amount), "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsPermanent(err))
			assert.Equal(t, uint64(600), balance(t, l, "alice.near"))
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = l.Transfer(cancelled, "alice.near", "bob.near", uint256.NewInt(1), "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsPermanent(err))
}

func TestTransferCall(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		unused      uint64
		callErr     error
		wantUsed    uint64
		wantAlice   uint64
		wantStaking uint64
	}{
		{"all used", 0, nil, 300, 700, 300},
		{"partial refund", 100, nil, 200, 800, 200},
		{"unused capped at amount", 10_000, nil, 0, 1_000, 0},
		{"receiver failed", 0, errors.New("paused"), 0, 1_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			_, err := l.Mint("alice.near", uint256.NewInt(1_000))
			require.NoError(t, err)

			var gotMsg string
			used, err := l.TransferCall(ctx, "alice.near", "stake.near", uint256.NewInt(300), "stake",
				func(_ context.Context, sender string, amount *uint256.Int, msg string) (uint256.Int, error) {
					assert.Equal(t, "alice.near", sender)
					assert.Equal(t, uint64(300), amount.Uint64())
					gotMsg = msg
					return *uint256.NewInt(tt.unused), tt.callErr
				})
			if tt.callErr != nil {
				assert.ErrorIs(t, err, tt.callErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, "stake", gotMsg)
			assert.Equal(t, tt.wantUsed, used.Uint64())
			assert.Equal(t, tt.wantAlice, balance(t, l, "alice.near"))
			assert.Equal(t, tt.wantStaking, balance(t, l, "stake.near"))
		})
	}
}

func TestTransferCallRejected(t *testing.T) {
	l := newTestLedger(t)
	called := false
	_, err := l.TransferCall(context.Background(), "alice.near", "stake.near", uint256.NewInt(1), "",
		func(context.Context, string, *uint256.Int, string) (uint256.Int, error) {
			called = true
			return uint256.Int{}, nil
		})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.False(t, called)
}
