package calculator

import (
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// AllocationInput is the loan state a payment is allocated against
type AllocationInput struct {
	OutstandingBalance decimal.Decimal
	AccruedPenalty     decimal.Decimal
	PeriodicRate       decimal.Decimal
	// InterestBasis is the balance this period's interest accrues on.
	// Zero means the outstanding balance.
	InterestBasis decimal.Decimal
	// InterestPaidThisPeriod is interest already collected for the current
	// due period by earlier partial payments.
	InterestPaidThisPeriod decimal.Decimal
}

// InterestDue is the current period's interest still owed
func InterestDue(in AllocationInput) decimal.Decimal {
	basis := in.InterestBasis
	if basis.IsZero() {
		basis = in.OutstandingBalance
	}
	due := utils.RoundCurrency(basis.Mul(in.PeriodicRate)).Sub(in.InterestPaidThisPeriod)
	if due.IsNegative() || !in.OutstandingBalance.IsPositive() {
		return decimal.Zero
	}
	return due
}

// TotalDue is what it takes to retire the loan in full right now
func TotalDue(in AllocationInput) decimal.Decimal {
	return in.AccruedPenalty.Add(InterestDue(in)).Add(in.OutstandingBalance)
}

// Allocate splits a payment through a strict waterfall: accrued penalty first,
// then the current period's interest, then principal up to the outstanding
// balance. Whatever is left is reported as Overpayment for the caller to
// refund, credit or reject.
func Allocate(in AllocationInput, amount decimal.Decimal) (domain.Allocation, error) {
	if !amount.IsPositive() {
		return domain.Allocation{}, customError.WrapInvalidPaymentAmount(amount.String())
	}
	if in.OutstandingBalance.IsNegative() {
		return domain.Allocation{}, customError.WrapInvalidRequest("outstanding balance cannot be negative")
	}
	if in.AccruedPenalty.IsNegative() {
		return domain.Allocation{}, customError.WrapInvalidRequest("accrued penalty cannot be negative")
	}

	remaining := amount

	penalty := utils.MinDecimal(remaining, in.AccruedPenalty)
	remaining = remaining.Sub(penalty)

	interest := utils.MinDecimal(remaining, InterestDue(in))
	remaining = remaining.Sub(interest)

	principal := utils.MinDecimal(remaining, in.OutstandingBalance)
	remaining = remaining.Sub(principal)

	return domain.Allocation{
		Penalty:     penalty,
		Interest:    interest,
		Principal:   principal,
		Overpayment: remaining,
	}, nil
}
