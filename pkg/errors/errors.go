package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a business error so callers can decide how to react
// without parsing messages.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindStateConflict      Kind = "state_conflict"
	KindAllocationOverflow Kind = "allocation_overflow"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal"
)

// Domain errors
var (
	ErrLoanNotFound          = errors.New("loan not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrLoanNotActive         = errors.New("loan not active")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInvalidLoanAmount     = errors.New("invalid loan amount")
	ErrAmountBelowMinimum    = errors.New("requested amount below minimum")
	ErrAmountAboveMaximum    = errors.New("requested amount above maximum")
	ErrTenorOutOfBounds      = errors.New("tenor out of bounds")
	ErrRateOutOfBounds       = errors.New("interest rate out of bounds")
	ErrTooManyActiveLoans    = errors.New("too many active loans for station")
	ErrInvalidPaymentAmount  = errors.New("invalid payment amount")
	ErrPaymentExceedsDue     = errors.New("payment exceeds total amount due")
	ErrPaymentNotReversible  = errors.New("payment cannot be reversed")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrNoOutstandingBalance  = errors.New("no outstanding balance")
	ErrRestructureReason     = errors.New("restructuring reason is required")
	ErrUnsupportedFrequency  = errors.New("unsupported repayment frequency")
	ErrUnsupportedMethod     = errors.New("unsupported amortization method")
	ErrDatabase              = errors.New("database operation failed")
	ErrLockUnavailable       = errors.New("loan lock unavailable")
	ErrLedgerMismatch        = errors.New("loan total paid disagrees with its payments")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(kind Kind, code, message string, err error) *BusinessError {
	return &BusinessError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// KindOf reports the kind of err. Errors that are not business errors are internal.
func KindOf(err error) Kind {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// CodeOf returns the error code of err, or an empty string.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Error codes
const (
	ErrCodeLoanNotFound          = "LOAN_NOT_FOUND"
	ErrCodePaymentNotFound       = "PAYMENT_NOT_FOUND"
	ErrCodeLoanNotActive         = "LOAN_NOT_ACTIVE"
	ErrCodeInvalidTransition     = "INVALID_STATUS_TRANSITION"
	ErrCodeInvalidLoanAmount     = "INVALID_LOAN_AMOUNT"
	ErrCodeAmountBelowMinimum    = "AMOUNT_BELOW_MINIMUM"
	ErrCodeAmountAboveMaximum    = "AMOUNT_ABOVE_MAXIMUM"
	ErrCodeTenorOutOfBounds      = "TENOR_OUT_OF_BOUNDS"
	ErrCodeRateOutOfBounds       = "RATE_OUT_OF_BOUNDS"
	ErrCodeTooManyActiveLoans    = "TOO_MANY_ACTIVE_LOANS"
	ErrCodeInvalidPaymentAmount  = "INVALID_PAYMENT_AMOUNT"
	ErrCodePaymentExceedsDue     = "PAYMENT_EXCEEDS_DUE"
	ErrCodePaymentNotReversible  = "PAYMENT_NOT_REVERSIBLE"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeNoOutstandingBalance  = "NO_OUTSTANDING_BALANCE"
	ErrCodeRestructureReason     = "RESTRUCTURE_REASON_REQUIRED"
	ErrCodeUnsupportedFrequency  = "UNSUPPORTED_FREQUENCY"
	ErrCodeUnsupportedMethod     = "UNSUPPORTED_METHOD"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
	ErrCodeLockUnavailable       = "LOCK_UNAVAILABLE"
	ErrCodeLedgerMismatch        = "LEDGER_MISMATCH"
)

// Wrap common errors with business context
func WrapLoanNotFound(loanRef string) *BusinessError {
	return NewBusinessError(
		KindNotFound,
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with reference %s not found", loanRef),
		ErrLoanNotFound,
	)
}

func WrapPaymentNotFound(paymentRef string) *BusinessError {
	return NewBusinessError(
		KindNotFound,
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with reference %s not found", paymentRef),
		ErrPaymentNotFound,
	)
}

func WrapLoanNotActive(loanRef, status string) *BusinessError {
	return NewBusinessError(
		KindStateConflict,
		ErrCodeLoanNotActive,
		fmt.Sprintf("Loan %s is %s, operation requires an active loan", loanRef, status),
		ErrLoanNotActive,
	)
}

func WrapInvalidTransition(loanRef, from, to string) *BusinessError {
	return NewBusinessError(
		KindStateConflict,
		ErrCodeInvalidTransition,
		fmt.Sprintf("Loan %s cannot move from %s to %s", loanRef, from, to),
		ErrInvalidTransition,
	)
}

func WrapInvalidLoanAmount(amount string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeInvalidLoanAmount,
		fmt.Sprintf("Loan amount %s must be positive", amount),
		ErrInvalidLoanAmount,
	)
}

func WrapAmountBelowMinimum(amount, minimum string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeAmountBelowMinimum,
		fmt.Sprintf("Requested amount %s below minimum %s", amount, minimum),
		ErrAmountBelowMinimum,
	)
}

func WrapAmountAboveMaximum(amount, maximum string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeAmountAboveMaximum,
		fmt.Sprintf("Requested amount %s above maximum %s", amount, maximum),
		ErrAmountAboveMaximum,
	)
}

func WrapTenorOutOfBounds(tenor, minimum, maximum int) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeTenorOutOfBounds,
		fmt.Sprintf("Tenor of %d months outside allowed range %d-%d", tenor, minimum, maximum),
		ErrTenorOutOfBounds,
	)
}

func WrapRateOutOfBounds(rate, minimum, maximum string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeRateOutOfBounds,
		fmt.Sprintf("Interest rate %s outside allowed range %s-%s", rate, minimum, maximum),
		ErrRateOutOfBounds,
	)
}

func WrapTooManyActiveLoans(stationID string, active, maximum int) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeTooManyActiveLoans,
		fmt.Sprintf("Station %s already has %d active loans, maximum is %d", stationID, active, maximum),
		ErrTooManyActiveLoans,
	)
}

func WrapInvalidPaymentAmount(amount string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidPaymentAmount,
	)
}

func WrapPaymentExceedsDue(amount, due string) *BusinessError {
	return NewBusinessError(
		KindAllocationOverflow,
		ErrCodePaymentExceedsDue,
		fmt.Sprintf("Payment amount %s exceeds total amount due %s", amount, due),
		ErrPaymentExceedsDue,
	)
}

func WrapPaymentNotReversible(paymentRef, status string) *BusinessError {
	return NewBusinessError(
		KindStateConflict,
		ErrCodePaymentNotReversible,
		fmt.Sprintf("Payment %s is %s and cannot be reversed", paymentRef, status),
		ErrPaymentNotReversible,
	)
}

func WrapInvalidRequest(message string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeInvalidRequest,
		message,
		ErrInvalidRequest,
	)
}

func WrapNoOutstandingBalance(loanRef string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeNoOutstandingBalance,
		fmt.Sprintf("Loan with reference %s has no outstanding balance", loanRef),
		ErrNoOutstandingBalance,
	)
}

func WrapRestructureReasonRequired() *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeRestructureReason,
		"Restructuring requires a reason",
		ErrRestructureReason,
	)
}

func WrapUnsupportedFrequency(frequency string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeUnsupportedFrequency,
		fmt.Sprintf("Repayment frequency %q is not supported", frequency),
		ErrUnsupportedFrequency,
	)
}

func WrapUnsupportedMethod(method string) *BusinessError {
	return NewBusinessError(
		KindValidation,
		ErrCodeUnsupportedMethod,
		fmt.Sprintf("Amortization method %q is not supported", method),
		ErrUnsupportedMethod,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		KindInternal,
		ErrCodeDatabaseError,
		"database operation failed",
		fmt.Errorf("%w: %w", ErrDatabase, err),
	)
}

func WrapLockUnavailable(loanRef string, err error) *BusinessError {
	return NewBusinessError(
		KindInternal,
		ErrCodeLockUnavailable,
		fmt.Sprintf("Could not acquire lock for loan %s", loanRef),
		fmt.Errorf("%w: %w", ErrLockUnavailable, err),
	)
}

func WrapLedgerMismatch(loanRef, recorded, ledger string) *BusinessError {
	return NewBusinessError(
		KindInternal,
		ErrCodeLedgerMismatch,
		fmt.Sprintf("Loan %s records %s paid but its completed payments sum to %s", loanRef, recorded, ledger),
		ErrLedgerMismatch,
	)
}
