// Package api serves the staking ledger over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/staking"
)

// Ledger is the hosted staking ledger the api calls into.
type Ledger interface {
	AccountInfo(accountID string) (staking.AccountView, error)
	PoolInfo() (staking.PoolView, error)
	StorageDeposit(call host.Call, accountID string) (uint256.Int, error)
	Stake(ctx context.Context, accountID string, amount *uint256.Int, msg string) (uint256.Int, error)
	Unstake(call host.Call, amount *uint256.Int) error
	Harvest(ctx context.Context, call host.Call) (*host.Receipt, error)
	Withdraw(ctx context.Context, call host.Call) (*host.Receipt, error)
	Pause(call host.Call) error
}

type Balances interface {
	BalanceOf(accountID string) (uint256.Int, error)
}

type Options struct {
	AllowedOrigins string
	// AdminToken must be presented in the X-Admin-Token header for admin routes. Admin routes are disabled
	// when it is empty.
	AdminToken string
	// OwnerID is the caller admin routes act as.
	OwnerID string
}

// New returns the api router.
func New(logger *slog.Logger, ledger Ledger, balances Balances, opts Options) http.Handler {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()
	newAccounts(ledger).Mount(router, "/accounts")
	newPool(ledger, opts).Mount(router)
	router.Path("/tokens/{id}").Methods(http.MethodGet).HandlerFunc(WrapHandlerFunc(func(w http.ResponseWriter, req *http.Request) error {
		id := mux.Vars(req)["id"]
		balance, err := balances.BalanceOf(id)
		if err != nil {
			return err
		}
		return WriteJSON(w, map[string]string{"account_id": id, "balance": balance.Dec()})
	}))

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type", "x-admin-token"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)(handler)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(handler)
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(args ...any) {
	l.logger.Error("api handler panic", "panic", args)
}
