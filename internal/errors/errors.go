// Package errors defines the coded error taxonomy shared by the swap pipeline.
//
// Callers match on codes with the standard library:
//
//	if errors.Is(err, swaperr.ErrQuoteUnavailable) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
)

type Code string

const (
	CodeTokenNotFound        Code = "token_not_found"
	CodeQuoteUnavailable     Code = "quote_unavailable"
	CodeInsufficientBalance  Code = "insufficient_balance"
	CodeApprovalFailed       Code = "approval_failed"
	CodeSignatureDeclined    Code = "signature_declined"
	CodeSubmissionFailed     Code = "submission_failed"
	CodeConfirmationReverted Code = "confirmation_reverted"
	CodeConfirmationTimeout  Code = "confirmation_timeout"
	CodeBalanceReadFailed    Code = "balance_read_failed"
	CodeCancelled            Code = "cancelled"
	CodeInvalid              Code = "invalid"
	CodeInternal             Code = "internal"
)

// Sentinels for errors.Is. They compare equal to any *Error with the same code.
var (
	ErrTokenNotFound        = &Error{Code: CodeTokenNotFound}
	ErrQuoteUnavailable     = &Error{Code: CodeQuoteUnavailable}
	ErrInsufficientBalance  = &Error{Code: CodeInsufficientBalance}
	ErrApprovalFailed       = &Error{Code: CodeApprovalFailed}
	ErrSignatureDeclined    = &Error{Code: CodeSignatureDeclined}
	ErrSubmissionFailed     = &Error{Code: CodeSubmissionFailed}
	ErrConfirmationReverted = &Error{Code: CodeConfirmationReverted}
	ErrConfirmationTimeout  = &Error{Code: CodeConfirmationTimeout}
	ErrBalanceReadFailed    = &Error{Code: CodeBalanceReadFailed}
	ErrCancelled            = &Error{Code: CodeCancelled}
	ErrInvalid              = &Error{Code: CodeInvalid}
)

type Error struct {
	Code    Code
	Message string
	// TxHash is set when a transaction was broadcast before the failure.
	TxHash string
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.TxHash != "" {
		msg = fmt.Sprintf("%s (tx %s)", msg, e.TxHash)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithTx returns a copy of e carrying the transaction hash.
func (e *Error) WithTx(hash string) *Error {
	cp := *e
	cp.TxHash = hash
	return &cp
}

func As(err error) (*Error, bool) {
	var out *Error
	if stderrors.As(err, &out) {
		return out, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}
