package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the processing state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusReversed  PaymentStatus = "reversed"
)

// PaymentSource tells where the money came from
type PaymentSource string

const (
	PaymentSourceManual              PaymentSource = "manual"
	PaymentSourceSettlementDeduction PaymentSource = "settlement_deduction"
)

// Allocation is the waterfall split of one payment. The four parts always sum
// to the payment amount.
type Allocation struct {
	Penalty     decimal.Decimal `json:"penalty"`
	Interest    decimal.Decimal `json:"interest"`
	Principal   decimal.Decimal `json:"principal"`
	Overpayment decimal.Decimal `json:"overpayment"`
}

// Total sums every component
func (a Allocation) Total() decimal.Decimal {
	return a.Penalty.Add(a.Interest).Add(a.Principal).Add(a.Overpayment)
}

// Payment represents a payment against a loan
type Payment struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	PaymentRef         string          `json:"payment_ref" db:"payment_ref"`
	LoanRef            string          `json:"loan_ref" db:"loan_ref"`
	TenantID           string          `json:"tenant_id" db:"tenant_id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate        time.Time       `json:"payment_date" db:"payment_date"`
	Method             string          `json:"method" db:"method"`
	Source             PaymentSource   `json:"source" db:"source"`
	SourceReference    string          `json:"source_reference,omitempty" db:"source_reference"`
	PenaltyPortion     decimal.Decimal `json:"penalty_portion" db:"penalty_portion"`
	InterestPortion    decimal.Decimal `json:"interest_portion" db:"interest_portion"`
	PrincipalPortion   decimal.Decimal `json:"principal_portion" db:"principal_portion"`
	OverpaymentPortion decimal.Decimal `json:"overpayment_portion" db:"overpayment_portion"`
	BalanceAfter       decimal.Decimal `json:"outstanding_balance_after" db:"balance_after"`
	Status             PaymentStatus   `json:"status" db:"status"`
	ReversedAt         *time.Time      `json:"reversed_at,omitempty" db:"reversed_at"`
	ReversalReason     string          `json:"reversal_reason,omitempty" db:"reversal_reason"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// Allocation returns the stored waterfall split
func (p *Payment) Allocation() Allocation {
	return Allocation{
		Penalty:     p.PenaltyPortion,
		Interest:    p.InterestPortion,
		Principal:   p.PrincipalPortion,
		Overpayment: p.OverpaymentPortion,
	}
}

// SetAllocation copies a waterfall split onto the payment
func (p *Payment) SetAllocation(a Allocation) {
	p.PenaltyPortion = a.Penalty
	p.InterestPortion = a.Interest
	p.PrincipalPortion = a.Principal
	p.OverpaymentPortion = a.Overpayment
}

type MakePaymentRequest struct {
	LoanRef         string          `json:"-"`
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PaymentDate     *time.Time      `json:"payment_date,omitempty"`
	Method          string          `json:"method" validate:"omitempty,max=32"`
	Source          PaymentSource   `json:"source" validate:"omitempty,oneof=manual settlement_deduction"`
	SourceReference string          `json:"source_reference,omitempty" validate:"max=128"`
}

type ReversePaymentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type PaymentResponse struct {
	Payment *Payment `json:"payment"`
	Loan    *Loan    `json:"loan"`
}
