package apperror

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies an error so callers can distinguish user-actionable causes
// (bad input, insufficient funds) from transient network causes.
type Kind string

const (
	KindInvalidParameters   Kind = "INVALID_PARAMETERS"
	KindAccountNotFound     Kind = "ACCOUNT_NOT_FOUND"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindSimulationFailed    Kind = "SIMULATION_FAILED"
	KindTransactionExpired  Kind = "TRANSACTION_EXPIRED"
	KindConfirmationTimeout Kind = "CONFIRMATION_TIMEOUT"
	KindPriceFetchFailed    Kind = "PRICE_FETCH_FAILED"
	KindInternal            Kind = "INTERNAL"
)

// AppError is a structured error carrying a kind tag, an optional wrapped
// cause, and optional on-chain program log lines for diagnostics.
type AppError struct {
	Kind    Kind
	Message string
	Logs    []string // Program logs from simulation, if any
	Err     error    // Wrapped internal error
}

func (e *AppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Logs) > 0 {
		fmt.Fprintf(&b, " (logs: %s)", strings.Join(e.Logs, "; "))
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, unwrapping as needed.
// Returns KindInternal for errors that are not AppErrors.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Kind == kind
}

// ProgramLogs extracts on-chain log lines from err, if any.
func ProgramLogs(err error) []string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Logs
	}
	return nil
}

// ---- Local validation ----

func ErrInvalidParameters(message string) *AppError {
	return New(KindInvalidParameters, message)
}

// ---- Chain state ----

func ErrAccountNotFound(account string) *AppError {
	return New(KindAccountNotFound, fmt.Sprintf("account %s not found", account))
}

func ErrInsufficientBalance(symbol string) *AppError {
	return New(KindInsufficientBalance, fmt.Sprintf("insufficient %s balance", symbol))
}

// ---- Transaction lifecycle ----

func ErrSimulationFailed(simErr error, logs []string) *AppError {
	return &AppError{
		Kind:    KindSimulationFailed,
		Message: "transaction simulation failed",
		Logs:    logs,
		Err:     simErr,
	}
}

func ErrTransactionExpired(err error) *AppError {
	return Wrap(KindTransactionExpired, "transaction blockhash expired before the network accepted it", err)
}

func ErrConfirmationTimeout(after time.Duration) *AppError {
	return New(KindConfirmationTimeout, fmt.Sprintf("transaction not confirmed within %s", after))
}

// ---- Price feed ----

func ErrPriceFetchFailed(err error) *AppError {
	return Wrap(KindPriceFetchFailed, "price feed fetch failed", err)
}

// ---- System ----

// Internal wraps an unclassified internal error.
func Internal(err error) *AppError {
	return Wrap(KindInternal, "internal error", err)
}
