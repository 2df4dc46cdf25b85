package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is a state of the loan lifecycle
type LoanStatus string

const (
	LoanStatusDraft           LoanStatus = "draft"
	LoanStatusPendingApproval LoanStatus = "pending_approval"
	LoanStatusActive          LoanStatus = "active"
	LoanStatusCompleted       LoanStatus = "completed"
	LoanStatusDefaulted       LoanStatus = "defaulted"
	LoanStatusRestructured    LoanStatus = "restructured"
	LoanStatusSuspended       LoanStatus = "suspended"
	LoanStatusCancelled       LoanStatus = "cancelled"
)

// transitions lists every permitted status change. Anything absent is rejected.
var transitions = map[LoanStatus][]LoanStatus{
	LoanStatusDraft:           {LoanStatusPendingApproval},
	LoanStatusPendingApproval: {LoanStatusActive},
	LoanStatusActive: {
		LoanStatusActive,
		LoanStatusCompleted,
		LoanStatusDefaulted,
		LoanStatusRestructured,
		LoanStatusSuspended,
		LoanStatusCancelled,
	},
}

// CanTransition reports whether a loan may move from one status to another
func CanTransition(from, to LoanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusDraft, LoanStatusPendingApproval, LoanStatusActive, LoanStatusCompleted,
		LoanStatusDefaulted, LoanStatusRestructured, LoanStatusSuspended, LoanStatusCancelled:
		return true
	}
	return false
}

// AllLoanStatuses returns every known status in lifecycle order
func AllLoanStatuses() []LoanStatus {
	return []LoanStatus{
		LoanStatusDraft,
		LoanStatusPendingApproval,
		LoanStatusActive,
		LoanStatusCompleted,
		LoanStatusDefaulted,
		LoanStatusRestructured,
		LoanStatusSuspended,
		LoanStatusCancelled,
	}
}

// Frequency is how often installments fall due
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi_weekly"
	FrequencyMonthly  Frequency = "monthly"
)

// AmortizationMethod selects how installments split principal and interest
type AmortizationMethod string

const (
	MethodReducingBalance AmortizationMethod = "reducing_balance"
	MethodFlatRate        AmortizationMethod = "flat_rate"
	MethodInterestOnly    AmortizationMethod = "interest_only"
)

// Loan represents a dealer working-capital loan
type Loan struct {
	ID        uuid.UUID `json:"id" db:"id"`
	LoanRef   string    `json:"loan_ref" db:"loan_ref"`
	StationID string    `json:"station_id" db:"station_id"`
	DealerID  string    `json:"dealer_id" db:"dealer_id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`

	// Terms
	PrincipalAmount    decimal.Decimal    `json:"principal_amount" db:"principal_amount"`
	AnnualInterestRate decimal.Decimal    `json:"annual_interest_rate" db:"annual_interest_rate"`
	TenorMonths        int                `json:"tenor_months" db:"tenor_months"`
	Frequency          Frequency          `json:"repayment_frequency" db:"repayment_frequency"`
	Method             AmortizationMethod `json:"amortization_method" db:"amortization_method"`

	// Dates
	StartDate       time.Time  `json:"start_date" db:"start_date"`
	MaturityDate    *time.Time `json:"maturity_date,omitempty" db:"maturity_date"`
	NextPaymentDate *time.Time `json:"next_payment_date,omitempty" db:"next_payment_date"`
	LastPaymentDate *time.Time `json:"last_payment_date,omitempty" db:"last_payment_date"`
	ApprovalDate    *time.Time `json:"approval_date,omitempty" db:"approval_date"`
	CompletionDate  *time.Time `json:"completion_date,omitempty" db:"completion_date"`

	// Running state
	Status                    LoanStatus      `json:"status" db:"status"`
	StatusReason              string          `json:"status_reason,omitempty" db:"status_reason"`
	OutstandingBalance        decimal.Decimal `json:"outstanding_balance" db:"outstanding_balance"`
	TotalPaid                 decimal.Decimal `json:"total_paid" db:"total_paid"`
	TotalInterestPaid         decimal.Decimal `json:"total_interest_paid" db:"total_interest_paid"`
	InstallmentAmount         decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	DaysPastDue               int             `json:"days_past_due" db:"days_past_due"`
	AccruedPenalty            decimal.Decimal `json:"accrued_penalty" db:"accrued_penalty"`
	PenaltyRate               decimal.Decimal `json:"penalty_rate" db:"penalty_rate"`
	GracePeriodDays           int             `json:"grace_period_days" db:"grace_period_days"`
	CurrentPeriodInterestPaid decimal.Decimal `json:"current_period_interest_paid" db:"current_period_interest_paid"`
	PenaltyStepsCharged       int             `json:"penalty_steps_charged" db:"penalty_steps_charged"`
	LastPenaltyAccrualDate    *time.Time      `json:"last_penalty_accrual_date,omitempty" db:"last_penalty_accrual_date"`

	// Restructuring links
	RestructuredFrom string `json:"restructured_from,omitempty" db:"restructured_from"`
	RestructuredTo   string `json:"restructured_to,omitempty" db:"restructured_to"`

	// Opaque records, not interpreted by the engine
	Collateral RawJSON `json:"collateral,omitempty" db:"collateral"`
	Guarantors RawJSON `json:"guarantors,omitempty" db:"guarantors"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether payments and penalty accrual may post against the loan
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// Clone returns a copy that can be mutated without touching the original
func (l *Loan) Clone() *Loan {
	c := *l
	c.MaturityDate = cloneTime(l.MaturityDate)
	c.NextPaymentDate = cloneTime(l.NextPaymentDate)
	c.LastPaymentDate = cloneTime(l.LastPaymentDate)
	c.ApprovalDate = cloneTime(l.ApprovalDate)
	c.CompletionDate = cloneTime(l.CompletionDate)
	c.LastPenaltyAccrualDate = cloneTime(l.LastPenaltyAccrualDate)
	c.Collateral = append(RawJSON(nil), l.Collateral...)
	c.Guarantors = append(RawJSON(nil), l.Guarantors...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// DTOs for requests and responses

type ApplyLoanRequest struct {
	TenantID           string             `json:"tenant_id" validate:"required"`
	StationID          string             `json:"station_id" validate:"required"`
	DealerID           string             `json:"dealer_id" validate:"required"`
	PrincipalAmount    decimal.Decimal    `json:"principal_amount" validate:"required,gt=0"`
	AnnualInterestRate decimal.Decimal    `json:"annual_interest_rate" validate:"gte=0"`
	TenorMonths        int                `json:"tenor_months" validate:"required,gt=0"`
	Frequency          Frequency          `json:"repayment_frequency" validate:"required,oneof=daily weekly bi_weekly monthly"`
	Method             AmortizationMethod `json:"amortization_method" validate:"omitempty,oneof=reducing_balance flat_rate interest_only"`
	StartDate          *time.Time         `json:"start_date,omitempty"`
	PenaltyRate        *decimal.Decimal   `json:"penalty_rate,omitempty"`
	GracePeriodDays    *int               `json:"grace_period_days,omitempty" validate:"omitempty,gte=0"`
	Collateral         RawJSON            `json:"collateral,omitempty"`
	Guarantors         RawJSON            `json:"guarantors,omitempty"`
}

type ApproveLoanRequest struct {
	ApprovedBy string `json:"approved_by"`
}

type ChangeStatusRequest struct {
	Status LoanStatus `json:"status" validate:"required,oneof=suspended cancelled defaulted"`
	Reason string     `json:"reason" validate:"required"`
}

type RestructureRequest struct {
	NewPrincipal     *decimal.Decimal    `json:"new_principal,omitempty"`
	NewAnnualRate    *decimal.Decimal    `json:"new_annual_interest_rate,omitempty"`
	NewTenorMonths   *int                `json:"new_tenor_months,omitempty" validate:"omitempty,gt=0"`
	NewFrequency     *Frequency          `json:"new_repayment_frequency,omitempty"`
	NewMethod        *AmortizationMethod `json:"new_amortization_method,omitempty"`
	MoratoriumMonths int                 `json:"moratorium_months" validate:"gte=0"`
	Reason           string              `json:"reason" validate:"required"`
}

type LoanResponse struct {
	Loan     *Loan          `json:"loan"`
	Schedule []*Installment `json:"schedule,omitempty"`
}

type RestructureResponse struct {
	Original *Loan          `json:"original"`
	Loan     *Loan          `json:"loan"`
	Schedule []*Installment `json:"schedule"`
}
