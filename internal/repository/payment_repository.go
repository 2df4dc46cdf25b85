package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, payment_ref, loan_ref, tenant_id, amount, payment_date, method, source,
	source_reference, penalty_portion, interest_portion, principal_portion, overpayment_portion,
	balance_after, status, reversed_at, reversal_reason, created_at`

type paymentRepository struct {
	db sqlx.ExtContext
}

func newPaymentRepository(db sqlx.ExtContext) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :payment_ref, :loan_ref, :tenant_id, :amount, :payment_date, :method, :source,
			:source_reference, :penalty_portion, :interest_portion, :principal_portion, :overpayment_portion,
			:balance_after, :status, :reversed_at, :reversal_reason, :created_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, payment); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = :status, reversed_at = :reversed_at, reversal_reason = :reversal_reason
		WHERE payment_ref = :payment_ref
	`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, payment)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return customError.WrapPaymentNotFound(payment.PaymentRef)
	}
	return nil
}

func (r *paymentRepository) GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_ref = ?`

	var payment domain.Payment
	err := sqlx.GetContext(ctx, r.db, &payment, r.db.Rebind(query), paymentRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapPaymentNotFound(paymentRef)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByLoanRef(ctx context.Context, loanRef string) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_ref = ?
		ORDER BY payment_date, created_at
	`

	payments := []*domain.Payment{}
	if err := sqlx.SelectContext(ctx, r.db, &payments, r.db.Rebind(query), loanRef); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

func (r *paymentRepository) GetBySourceReference(ctx context.Context, loanRef, sourceRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_ref = ? AND source_reference = ?`

	var payment domain.Payment
	err := sqlx.GetContext(ctx, r.db, &payment, r.db.Rebind(query), loanRef, sourceRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &payment, nil
}

// GetTotalPaid sums in Go so SQLite's TEXT amounts never pass through floating point
func (r *paymentRepository) GetTotalPaid(ctx context.Context, loanRef string) (decimal.Decimal, error) {
	query := `SELECT amount FROM payments WHERE loan_ref = ? AND status = ?`

	var amounts []decimal.Decimal
	if err := sqlx.SelectContext(ctx, r.db, &amounts, r.db.Rebind(query), loanRef, domain.PaymentStatusCompleted); err != nil {
		return decimal.Zero, customError.WrapDatabaseError(err)
	}

	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total, nil
}
