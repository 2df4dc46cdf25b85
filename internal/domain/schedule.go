package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Installment represents one amortization period of a loan schedule
type Installment struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanRef            string          `json:"loan_ref" db:"loan_ref"`
	InstallmentNumber  int             `json:"installment_number" db:"installment_number"`
	DueDate            time.Time       `json:"due_date" db:"due_date"`
	PrincipalComponent decimal.Decimal `json:"principal_component" db:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component" db:"interest_component"`
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	BalanceAfter       decimal.Decimal `json:"outstanding_balance_after" db:"balance_after"`
	Paid               bool            `json:"paid" db:"paid"`
	PaidAmount         decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	PaidDate           *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// Remaining is the part of the installment total not yet covered
func (i *Installment) Remaining() decimal.Decimal {
	rem := i.TotalAmount.Sub(i.PaidAmount)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

type ScheduleResponse struct {
	LoanRef  string         `json:"loan_ref"`
	Schedule []*Installment `json:"schedule"`
}
