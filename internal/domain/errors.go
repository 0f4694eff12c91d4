package domain

import (
	"fmt"

	apperrors "github.com/utafrali/posledger/pkg/errors"
)

// Terminal error sentinels. Each wraps a pkg/errors category so the HTTP layer
// maps it to a status with errors.Is.
var (
	ErrOutOfStock              = apperrors.New("OUT_OF_STOCK", "product is out of stock", apperrors.ErrConflict)
	ErrInsufficientStock       = apperrors.New("INSUFFICIENT_STOCK", "not enough stock", apperrors.ErrConflict)
	ErrLineNotFound            = apperrors.New("LINE_NOT_FOUND", "product is not in the cart", apperrors.ErrNotFound)
	ErrEmptyCart               = apperrors.New("EMPTY_CART", "cart has no lines", apperrors.ErrUnprocessable)
	ErrInvalidPaymentMethod    = apperrors.New("INVALID_PAYMENT_METHOD", "payment method must be cash, card or transfer", apperrors.ErrInvalidInput)
	ErrAlreadySubmitting       = apperrors.New("ALREADY_SUBMITTING", "a sale is already being submitted", apperrors.ErrConflict)
	ErrSubmission              = apperrors.New("SUBMISSION_ERROR", "your payment was not recorded, please retry", apperrors.ErrServiceUnavail)
	ErrSaleRejected            = apperrors.New("SALE_REJECTED", "this sale could not be completed", apperrors.ErrUnprocessable)
	ErrPrintUnavailable        = apperrors.New("PRINT_UNAVAILABLE", "receipt printer unavailable", apperrors.ErrServiceUnavail)
	ErrLedgerLoadAborted       = apperrors.New("LEDGER_LOAD_ABORTED", "sales history could not be loaded", apperrors.ErrServiceUnavail)
	ErrDateFallbackUnavailable = apperrors.New("DATE_FALLBACK_UNAVAILABLE", "sales history has not been loaded yet", apperrors.ErrServiceUnavail)
)

// StockError is returned by cart mutations that would oversell a product. It
// names the product and what is left so the cashier can act on it.
type StockError struct {
	Kind      *apperrors.AppError
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	if e.Kind == ErrOutOfStock {
		return fmt.Sprintf("%s is out of stock", e.Name)
	}
	return fmt.Sprintf("not enough stock for %s: %d left, %d requested", e.Name, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error     { return e.Kind }
func (e *StockError) ErrorCode() string { return e.Kind.Code }

// SaleRejectedError is a business refusal from the sales backend, such as a
// concurrent oversell. Reason is the backend's own wording.
type SaleRejectedError struct {
	Code   string
	Reason string
}

func (e *SaleRejectedError) Error() string {
	return "this sale could not be completed: " + e.Reason
}

func (e *SaleRejectedError) Unwrap() error     { return ErrSaleRejected }
func (e *SaleRejectedError) ErrorCode() string { return ErrSaleRejected.Code }

// SubmissionError means the sale request did not reach a verdict: network
// failure, timeout, 5xx or an open circuit. The sale may be retried as is.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return ErrSubmission.Message
}

func (e *SubmissionError) Unwrap() []error   { return []error{ErrSubmission, e.Err} }
func (e *SubmissionError) ErrorCode() string { return ErrSubmission.Code }

// LedgerLoadError reports the page at which a full-history walk failed.
type LedgerLoadError struct {
	Page int
	Err  error
}

func (e *LedgerLoadError) Error() string {
	return fmt.Sprintf("sales history load aborted at page %d: %v", e.Page, e.Err)
}

func (e *LedgerLoadError) Unwrap() []error   { return []error{ErrLedgerLoadAborted, e.Err} }
func (e *LedgerLoadError) ErrorCode() string { return ErrLedgerLoadAborted.Code }

// PrintError wraps a print surface failure.
type PrintError struct {
	Err error
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("receipt printer unavailable: %v", e.Err)
}

func (e *PrintError) Unwrap() []error   { return []error{ErrPrintUnavailable, e.Err} }
func (e *PrintError) ErrorCode() string { return ErrPrintUnavailable.Code }
