package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/staking"
	"github.com/TxnLab/ftstake/internal/lib/store"
	"github.com/TxnLab/ftstake/internal/lib/token"
)

const adminToken = "s3cret"

type testServer struct {
	handler http.Handler
	tokens  *token.Ledger
	now     *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	contract, err := staking.NewContract("owner.near", "token.near", staking.DefaultConfig(), 100)
	require.NoError(t, err)
	require.NoError(t, s.InitContract(contract))
	ledger, err := staking.New(logger, "stake.near", s, contract)
	require.NoError(t, err)
	tokens := token.New(logger, "token.near", s)

	genesis := time.Unix(1_700_000_000, 0)
	now := genesis.Add(100 * time.Second)
	clock := host.NewClockWithTimeFunc(genesis, time.Second, 100, func() time.Time { return now })
	h := host.New(logger, ledger, tokens, s, clock, host.Config{
		ContractID:      "stake.near",
		StorageByteCost: *uint256.NewInt(1),
		RetryDelay:      time.Millisecond,
	})
	t.Cleanup(h.Close)

	handler := New(logger, h, tokens, Options{AllowedOrigins: "*", AdminToken: adminToken, OwnerID: "owner.near"})
	return &testServer{handler: handler, tokens: tokens, now: &now}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestAccountLifecycle(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.tokens.Mint("alice.near", uint256.NewInt(1_000_000))
	require.NoError(t, err)

	code, out := ts.do(t, http.MethodPost, "/accounts/alice.near", `{"deposit":"100000"}`)
	require.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, "100000", out["refund"])

	code, out = ts.do(t, http.MethodPost, "/accounts/alice.near/stake", `{"amount":"1000000","msg":"stake"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000", out["staked"])

	*ts.now = ts.now.Add(1_000 * time.Second)

	code, out = ts.do(t, http.MethodGet, "/accounts/alice.near", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000", out["stake_balance"])
	assert.Equal(t, "715", out["reward"])
	assert.Equal(t, "Basic", out["membership"])

	code, out = ts.do(t, http.MethodPost, "/accounts/alice.near/harvest?wait=true", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "harvest", out["kind"])
	assert.Equal(t, true, out["delivered"])
	assert.Equal(t, "715", out["paid"])

	code, out = ts.do(t, http.MethodGet, "/tokens/alice.near", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "715", out["balance"])

	code, _ = ts.do(t, http.MethodPost, "/accounts/alice.near/unstake", `{"amount":"1000001"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = ts.do(t, http.MethodPost, "/accounts/alice.near/unstake", `{"amount":"400000"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "400000", out["unstake_balance"])
	assert.Equal(t, false, out["can_withdraw"])

	code, _ = ts.do(t, http.MethodPost, "/accounts/alice.near/withdraw", "")
	assert.Equal(t, http.StatusBadRequest, code)

	*ts.now = ts.now.Add(100 * time.Second)
	code, out = ts.do(t, http.MethodPost, "/accounts/alice.near/withdraw?wait=true", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "400000", out["paid"])
}

func TestResolvedTransferReportedWithoutWait(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.tokens.Mint("alice.near", uint256.NewInt(1_000_000))
	require.NoError(t, err)
	code, _ := ts.do(t, http.MethodPost, "/accounts/alice.near", `{"deposit":"100000"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodPost, "/accounts/alice.near/stake", `{"amount":"1000000"}`)
	require.Equal(t, http.StatusOK, code)

	*ts.now = ts.now.Add(1_000 * time.Second)

	code, out := ts.do(t, http.MethodPost, "/accounts/alice.near/harvest", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["pending"])
	assert.Equal(t, true, out["delivered"])
	assert.Equal(t, "715", out["paid"])
}

func TestErrorStatus(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown account", http.MethodGet, "/accounts/nobody.near", "", http.StatusNotFound},
		{"invalid amount", http.MethodPost, "/accounts/alice.near/unstake", `{"amount":"-5"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/accounts/alice.near/stake", `{"amnt":"5"}`, http.StatusBadRequest},
		{"no fee unit", http.MethodPost, "/accounts/alice.near/harvest", `{"deposit":"2"}`, http.StatusBadRequest},
		{"stake without tokens", http.MethodPost, "/accounts/alice.near/stake", `{"amount":"5"}`, http.StatusBadRequest},
		{"no storage deposit", http.MethodPost, "/accounts/alice.near", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, code)
		})
	}
}

func TestPause(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, http.MethodPost, "/admin/pause", "")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(t, http.MethodPost, "/admin/pause", "", "X-Admin-Token", "wrong")
	assert.Equal(t, http.StatusForbidden, code)

	code, out := ts.do(t, http.MethodPost, "/admin/pause", "", "X-Admin-Token", adminToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["is_paused"])

	code, _ = ts.do(t, http.MethodPost, "/admin/pause", "", "X-Admin-Token", adminToken)
	assert.Equal(t, http.StatusConflict, code)

	code, out = ts.do(t, http.MethodGet, "/pool", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["is_paused"])
	assert.Equal(t, "0", out["total_stake_balance"])
}
