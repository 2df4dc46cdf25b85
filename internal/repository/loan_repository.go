package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, loan_ref, station_id, dealer_id, tenant_id,
	principal_amount, annual_interest_rate, tenor_months, repayment_frequency, amortization_method,
	start_date, maturity_date, next_payment_date, last_payment_date, approval_date, completion_date,
	status, status_reason, outstanding_balance, total_paid, total_interest_paid, installment_amount,
	days_past_due, accrued_penalty, penalty_rate, grace_period_days, current_period_interest_paid,
	penalty_steps_charged, last_penalty_accrual_date, restructured_from, restructured_to,
	collateral, guarantors, created_at, updated_at`

const installmentColumns = `id, loan_ref, installment_number, due_date, principal_component,
	interest_component, total_amount, balance_after, paid, paid_amount, paid_date, created_at`

type loanRepository struct {
	db     sqlx.ExtContext
	driver string
}

func newLoanRepository(db sqlx.ExtContext, driver string) LoanRepository {
	return &loanRepository{db: db, driver: driver}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :loan_ref, :station_id, :dealer_id, :tenant_id,
			:principal_amount, :annual_interest_rate, :tenor_months, :repayment_frequency, :amortization_method,
			:start_date, :maturity_date, :next_payment_date, :last_payment_date, :approval_date, :completion_date,
			:status, :status_reason, :outstanding_balance, :total_paid, :total_interest_paid, :installment_amount,
			:days_past_due, :accrued_penalty, :penalty_rate, :grace_period_days, :current_period_interest_paid,
			:penalty_steps_charged, :last_penalty_accrual_date, :restructured_from, :restructured_to,
			:collateral, :guarantors, :created_at, :updated_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, loan); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET maturity_date = :maturity_date,
			next_payment_date = :next_payment_date,
			last_payment_date = :last_payment_date,
			approval_date = :approval_date,
			completion_date = :completion_date,
			status = :status,
			status_reason = :status_reason,
			outstanding_balance = :outstanding_balance,
			total_paid = :total_paid,
			total_interest_paid = :total_interest_paid,
			installment_amount = :installment_amount,
			days_past_due = :days_past_due,
			accrued_penalty = :accrued_penalty,
			current_period_interest_paid = :current_period_interest_paid,
			penalty_steps_charged = :penalty_steps_charged,
			last_penalty_accrual_date = :last_penalty_accrual_date,
			restructured_to = :restructured_to,
			updated_at = :updated_at
		WHERE loan_ref = :loan_ref
	`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, loan)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return customError.WrapLoanNotFound(loan.LoanRef)
	}
	return nil
}

func (r *loanRepository) GetByRef(ctx context.Context, loanRef string) (*domain.Loan, error) {
	return r.get(ctx, loanRef, false)
}

// GetByRefForUpdate takes a row lock on PostgreSQL. SQLite has no row locks;
// its single writer already serializes the transaction.
func (r *loanRepository) GetByRefForUpdate(ctx context.Context, loanRef string) (*domain.Loan, error) {
	return r.get(ctx, loanRef, r.driver == DriverPostgres)
}

func (r *loanRepository) get(ctx context.Context, loanRef string, forUpdate bool) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_ref = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var loan domain.Loan
	err := sqlx.GetContext(ctx, r.db, &loan, r.db.Rebind(query), loanRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanRef)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &loan, nil
}

func (r *loanRepository) CountActiveByStation(ctx context.Context, stationID string) (int, error) {
	query := `SELECT COUNT(*) FROM loans WHERE station_id = ? AND status = ?`

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), stationID, domain.LoanStatusActive); err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	return count, nil
}

func (r *loanRepository) ListByStation(ctx context.Context, stationID string, status domain.LoanStatus) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE station_id = ?`
	args := []interface{}{stationID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, loan_ref`

	loans := []*domain.Loan{}
	if err := sqlx.SelectContext(ctx, r.db, &loans, r.db.Rebind(query), args...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

func (r *loanRepository) ListOverdue(ctx context.Context, asOf time.Time, afterRef string, limit int) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = ? AND next_payment_date IS NOT NULL AND next_payment_date < ? AND loan_ref > ?
		ORDER BY loan_ref
		LIMIT ?
	`

	loans := []*domain.Loan{}
	err := sqlx.SelectContext(ctx, r.db, &loans, r.db.Rebind(query), domain.LoanStatusActive, asOf.UTC(), afterRef, limit)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

func (r *loanRepository) CreateSchedule(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO loan_installments (` + installmentColumns + `)
		VALUES (:id, :loan_ref, :installment_number, :due_date, :principal_component,
			:interest_component, :total_amount, :balance_after, :paid, :paid_amount, :paid_date, :created_at)
	`

	for _, inst := range installments {
		if inst.ID == uuid.Nil {
			inst.ID = uuid.New()
		}
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, inst); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	return nil
}

func (r *loanRepository) GetSchedule(ctx context.Context, loanRef string) ([]*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM loan_installments
		WHERE loan_ref = ?
		ORDER BY installment_number
	`

	schedule := []*domain.Installment{}
	if err := sqlx.SelectContext(ctx, r.db, &schedule, r.db.Rebind(query), loanRef); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return schedule, nil
}

func (r *loanRepository) UpdateInstallments(ctx context.Context, installments []*domain.Installment) error {
	query := `
		UPDATE loan_installments
		SET paid = :paid, paid_amount = :paid_amount, paid_date = :paid_date
		WHERE loan_ref = :loan_ref AND installment_number = :installment_number
	`

	for _, inst := range installments {
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, inst); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	return nil
}
