// Package apperr defines the ASP's error kinds and their HTTP status
// mapping: one shared kind every HTTP handler can switch on, in place of
// typed sentinel errors scattered per package.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP-status mapping and logging.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindInvalidInput
	KindCommitmentNotFound
	KindNullifierAlreadySpent
	KindTreeFull
	KindProverError
	KindWorkerUnavailable
	KindTransactionFailed
	KindTransactionReverted
	KindRPCError
	KindDatabase
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "Config"
	case KindInvalidInput:
		return "InvalidInput"
	case KindCommitmentNotFound:
		return "CommitmentNotFound"
	case KindNullifierAlreadySpent:
		return "NullifierAlreadySpent"
	case KindTreeFull:
		return "TreeFull"
	case KindProverError:
		return "ProverError"
	case KindWorkerUnavailable:
		return "WorkerUnavailable"
	case KindTransactionFailed:
		return "TransactionFailed"
	case KindTransactionReverted:
		return "TransactionReverted"
	case KindRPCError:
		return "RpcError"
	case KindDatabase:
		return "Database"
	case KindJSON:
		return "Json"
	default:
		return "Internal"
	}
}

// Error is the ASP's canonical error type: a Kind plus the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind.String(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error's Kind to the HTTP status code the API
// surfaces it as.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindJSON:
		return http.StatusBadRequest
	case KindCommitmentNotFound:
		return http.StatusNotFound
	case KindNullifierAlreadySpent:
		return http.StatusConflict
	case KindTreeFull, KindProverError, KindWorkerUnavailable:
		return http.StatusServiceUnavailable
	case KindTransactionFailed, KindTransactionReverted, KindRPCError:
		return http.StatusBadGateway
	case KindConfig, KindDatabase, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New builds an *Error of the given kind wrapping msg as a plain error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf("%s", msg)}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping an existing error.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func Invalid(format string, args ...any) *Error {
	return Newf(KindInvalidInput, format, args...)
}

func CommitmentNotFound(leafIndex uint32) *Error {
	return Newf(KindCommitmentNotFound, "no commitment at leaf index %d", leafIndex)
}

func NullifierAlreadySpent(hash string) *Error {
	return Newf(KindNullifierAlreadySpent, "nullifier %s already spent", hash)
}

func Database(err error) *Error {
	return Wrap(KindDatabase, err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, err)
}

// As extracts an *Error from err, falling back to wrapping it as Internal
// if it is not already one.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	return Internal(err)
}
