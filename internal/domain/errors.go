package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNoPendingTransaction  = errors.New("no pending transaction")
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrTransactionExpired    = errors.New("transaction expired")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrNoOperations          = errors.New("no operations generated")
	ErrAlreadyRelayed        = errors.New("transaction already relayed")
)

// CollaboratorError is a ledger or network failure passed through as is.
type CollaboratorError struct {
	Call string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return e.Call + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// RelayError carries what is needed to diagnose a rejected hand-off.
type RelayError struct {
	Err         error
	Predecessor string
	Operations  string
	Expiration  string
}

func (e *RelayError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Predecessor != "" {
		fmt.Fprintf(&b, " (predecessor %s", e.Predecessor)
		if e.Expiration != "" {
			fmt.Fprintf(&b, ", expiration %s", e.Expiration)
		}
		b.WriteString(")")
	}

	return b.String()
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// ErrorKind names the class of err for logs, metrics and the journal.
func ErrorKind(err error) string {
	var collaborator *CollaboratorError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoPendingTransaction):
		return "no_pending"
	case errors.Is(err, ErrInvalidTransaction):
		return "invalid"
	case errors.Is(err, ErrTransactionExpired):
		return "expired"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ErrNoOperations):
		return "no_operations"
	case errors.Is(err, ErrAlreadyRelayed):
		return "already_relayed"
	case errors.As(err, &collaborator):
		return "collaborator"
	}

	return "error"
}
