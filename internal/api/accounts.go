package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TxnLab/ftstake/internal/lib/host"
	"github.com/TxnLab/ftstake/internal/lib/staking"
)

type Accounts struct {
	ledger Ledger
}

func newAccounts(ledger Ledger) *Accounts {
	return &Accounts{ledger: ledger}
}

type depositRequest struct {
	Deposit string `json:"deposit"`
}

type stakeRequest struct {
	Amount string `json:"amount"`
	Msg    string `json:"msg"`
}

type unstakeRequest struct {
	Amount  string `json:"amount"`
	Deposit string `json:"deposit"`
}

// Receipt is the state of a harvest or withdraw transfer.
type Receipt struct {
	ID        uint64 `json:"id"`
	Kind      string `json:"kind"`
	AccountID string `json:"account_id"`
	Requested string `json:"requested"`
	Pending   bool   `json:"pending"`
	Delivered bool   `json:"delivered"`
	Paid      string `json:"paid,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (a *Accounts) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	view, err := a.ledger.AccountInfo(mux.Vars(req)["id"])
	if err != nil {
		return err
	}
	return WriteJSON(w, view)
}

func (a *Accounts) handleStorageDeposit(w http.ResponseWriter, req *http.Request) error {
	var body depositRequest
	if err := ParseJSON(req.Body, &body); err != nil {
		return BadRequest(err)
	}
	deposit, err := parseAmount(body.Deposit, 0)
	if err != nil {
		return err
	}
	id := mux.Vars(req)["id"]
	refund, err := a.ledger.StorageDeposit(host.Call{Caller: id, Deposit: *deposit}, id)
	if err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"account_id": id, "refund": refund.Dec()})
}

func (a *Accounts) handleStake(w http.ResponseWriter, req *http.Request) error {
	var body stakeRequest
	if err := ParseJSON(req.Body, &body); err != nil {
		return BadRequest(err)
	}
	amount, err := parseAmount(body.Amount, 0)
	if err != nil {
		return err
	}
	id := mux.Vars(req)["id"]
	staked, err := a.ledger.Stake(req.Context(), id, amount, body.Msg)
	if err != nil {
		return err
	}
	return WriteJSON(w, map[string]string{"account_id": id, "staked": staked.Dec()})
}

func (a *Accounts) handleUnstake(w http.ResponseWriter, req *http.Request) error {
	var body unstakeRequest
	if err := ParseJSON(req.Body, &body); err != nil {
		return BadRequest(err)
	}
	amount, err := parseAmount(body.Amount, 0)
	if err != nil {
		return err
	}
	deposit, err := parseAmount(body.Deposit, 1)
	if err != nil {
		return err
	}
	id := mux.Vars(req)["id"]
	if err = a.ledger.Unstake(host.Call{Caller: id, Deposit: *deposit}, amount); err != nil {
		return err
	}
	view, err := a.ledger.AccountInfo(id)
	if err != nil {
		return err
	}
	return WriteJSON(w, view)
}

func (a *Accounts) handleHarvest(w http.ResponseWriter, req *http.Request) error {
	return a.transfer(w, req, a.ledger.Harvest)
}

func (a *Accounts) handleWithdraw(w http.ResponseWriter, req *http.Request) error {
	return a.transfer(w, req, a.ledger.Withdraw)
}

// transfer requests a harvest or withdraw. With ?wait=true the response is held until the transfer resolves.
func (a *Accounts) transfer(w http.ResponseWriter, req *http.Request, request func(ctx context.Context, call host.Call) (*host.Receipt, error)) error {
	var body depositRequest
	if err := ParseJSON(req.Body, &body); err != nil {
		return BadRequest(err)
	}
	deposit, err := parseAmount(body.Deposit, 1)
	if err != nil {
		return err
	}
	receipt, err := request(req.Context(), host.Call{Caller: mux.Vars(req)["id"], Deposit: *deposit})
	if err != nil {
		return err
	}
	out := Receipt{
		ID:        receipt.ID,
		Kind:      receipt.Kind.String(),
		AccountID: receipt.AccountID,
		Requested: receipt.Requested.Dec(),
		Pending:   true,
	}
	wait := req.URL.Query().Get("wait") == "true"
	select {
	case <-receipt.Done():
		// delivered within the call, report the outcome
		wait = true
	default:
	}
	if wait {
		outcome, err := receipt.Wait(req.Context())
		if err != nil {
			return err
		}
		out.Pending = false
		out.Delivered = outcome.Delivered
		out.Paid = outcome.Paid.Dec()
		if outcome.Err != nil {
			out.Error = outcome.Err.Error()
			if errors.Is(outcome.Err, staking.ErrHarvestTransferFailed) {
				w.Header().Set("Content-Type", JSONContentType)
				w.WriteHeader(http.StatusBadGateway)
				return WriteJSON(w, out)
			}
		}
	}
	return WriteJSON(w, out)
}

func (a *Accounts) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{id}").Methods(http.MethodGet).HandlerFunc(WrapHandlerFunc(a.handleGetAccount))
	sub.Path("/{id}").Methods(http.MethodPost).HandlerFunc(WrapHandlerFunc(a.handleStorageDeposit))
	sub.Path("/{id}/stake").Methods(http.MethodPost).HandlerFunc(WrapHandlerFunc(a.handleStake))
	sub.Path("/{id}/unstake").Methods(http.MethodPost).HandlerFunc(WrapHandlerFunc(a.handleUnstake))
	sub.Path("/{id}/harvest").Methods(http.MethodPost).HandlerFunc(WrapHandlerFunc(a.handleHarvest))
	sub.Path("/{id}/withdraw").Methods(http.MethodPost).HandlerFunc(WrapHandlerFunc(a.handleWithdraw))
}
