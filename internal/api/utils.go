package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/holiman/uint256"

	"github.com/TxnLab/ftstake/internal/lib/staking"
	"github.com/TxnLab/ftstake/internal/lib/token"
)

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

func (e *httpError) Unwrap() error {
	return e.cause
}

// HTTPError create an error with http status code.
func HTTPError(cause error, status int) error {
	return &httpError{cause: cause, status: status}
}

func BadRequest(cause error) error {
	return HTTPError(cause, http.StatusBadRequest)
}

func Forbidden(cause error) error {
	return HTTPError(cause, http.StatusForbidden)
}

// statusOf maps ledger errors to a response status. Anything unrecognized is a 500.
func statusOf(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.status
	}
	if kind, ok := staking.KindOf(err); ok {
		switch kind {
		case staking.KindNotFound:
			return http.StatusNotFound
		case staking.KindConflict:
			return http.StatusConflict
		case staking.KindForbidden:
			return http.StatusForbidden
		case staking.KindTransfer:
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	}
	if token.IsPermanent(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HandlerFunc like http.HandlerFunc, but it returns an error, which is responded with the mapped status.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			http.Error(w, err.Error(), statusOf(err))
		}
	}
}

const JSONContentType = "application/json; charset=utf-8"

// ParseJSON parse a JSON object using strict mode. An empty body leaves v untouched.
func ParseJSON(r io.Reader, v any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, obj any) error {
	w.Header().Set("Content-Type", JSONContentType)
	return json.NewEncoder(w).Encode(obj)
}

// parseAmount parses a decimal amount, returning def when s is empty.
func parseAmount(s string, def uint64) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(def), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, BadRequest(errors.New("amount must be a base 10 unsigned integer"))
	}
	return v, nil
}
