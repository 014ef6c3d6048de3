package api

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TxnLab/ftstake/internal/lib/host"
)

var errAdminToken = errors.New("missing or invalid admin token")

type Pool struct {
	ledger     Ledger
	adminToken string
	ownerID    string
}

func newPool(ledger Ledger, opts Options) *Pool {
	return &Pool{ledger: ledger, adminToken: opts.AdminToken, ownerID: opts.OwnerID}
}

func (p *Pool) handleGetPool(w http.ResponseWriter, req *http.Request) error {
	view, err := p.ledger.PoolInfo()
	if err != nil {
		return err
	}
	return WriteJSON(w, view)
}

func (p *Pool) handlePause(w http.ResponseWriter, req *http.Request) error {
	token := req.Header.Get("X-Admin-Token")
	if p.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(p.adminToken)) != 1 {
		return Forbidden(errAdminToken)
	}
	if err := p.ledger.Pause(host.Call{Caller: p.ownerID}); err != nil {
		return err
	}
	return p.handleGetPool(w, req)
}

func (p *Pool) Mount(root *mux.Router) {
	root.Path("/pool").Methods(http.MethodGet).HandlerFunc(WrapHandlerFunc(p.handleGetPool))
	root.Path("/admin/pause").Methods(http.MethodPost).HandlerFunc(WrapHandlerFunc(p.handlePause))
}
