package repository

import (
	"context"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// LoanRepository defines the interface for loan and schedule data operations
type LoanRepository interface {
	// Create inserts a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// Update persists the loan's mutable state
	Update(ctx context.Context, loan *domain.Loan) error

	// GetByRef retrieves a loan by its reference
	GetByRef(ctx context.Context, loanRef string) (*domain.Loan, error)

	// GetByRefForUpdate retrieves a loan and locks its row until the transaction ends
	GetByRefForUpdate(ctx context.Context, loanRef string) (*domain.Loan, error)

	// CountActiveByStation counts the station's active loans
	CountActiveByStation(ctx context.Context, stationID string) (int, error)

	// ListByStation lists a station's loans, optionally filtered by status ("" for all)
	ListByStation(ctx context.Context, stationID string, status domain.LoanStatus) ([]*domain.Loan, error)

	// ListOverdue pages through active loans whose next payment date is before asOf,
	// ordered by reference and starting after afterRef
	ListOverdue(ctx context.Context, asOf time.Time, afterRef string, limit int) ([]*domain.Loan, error)

	// CreateSchedule inserts a loan's installments
	CreateSchedule(ctx context.Context, installments []*domain.Installment) error

	// GetSchedule retrieves a loan's installments ordered by number
	GetSchedule(ctx context.Context, loanRef string) ([]*domain.Installment, error)

	// UpdateInstallments persists the paid state of the given installments
	UpdateInstallments(ctx context.Context, installments []*domain.Installment) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create inserts a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// Update persists status and reversal details
	Update(ctx context.Context, payment *domain.Payment) error

	// GetByRef retrieves a payment by its reference
	GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error)

	// GetByLoanRef retrieves all payments for a loan ordered by payment date
	GetByLoanRef(ctx context.Context, loanRef string) ([]*domain.Payment, error)

	// GetBySourceReference finds the payment a settlement reference produced.
	// It returns nil, nil when there is none.
	GetBySourceReference(ctx context.Context, loanRef, sourceRef string) (*domain.Payment, error)

	// GetTotalPaid sums the completed payments of a loan
	GetTotalPaid(ctx context.Context, loanRef string) (decimal.Decimal, error)
}

// TxFunc is a unit of work run inside one database transaction
type TxFunc func(loans LoanRepository, payments PaymentRepository) error

// Store gives access to the repositories and to transactions spanning both
type Store interface {
	Loans() LoanRepository
	Payments() PaymentRepository

	// WithinTx commits when fn returns nil and rolls back otherwise
	WithinTx(ctx context.Context, fn TxFunc) error

	Ping(ctx context.Context) error
}
