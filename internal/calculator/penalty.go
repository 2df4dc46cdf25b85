package calculator

import (
	"time"

	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// PenaltyStepDays is the length of one penalty step
const PenaltyStepDays = 30

// PenaltyInput is the overdue state of one loan on a given day
type PenaltyInput struct {
	NextPaymentDate   time.Time
	AsOf              time.Time
	GracePeriodDays   int
	InstallmentAmount decimal.Decimal
	PenaltyRate       decimal.Decimal
	// StepsCharged is how many steps of the current overdue window were
	// already charged by earlier runs.
	StepsCharged int
}

// PenaltyResult is what a run adds for one loan
type PenaltyResult struct {
	DaysPastDue     int
	ChargeableSteps int
	NewSteps        int
	Delta           decimal.Decimal
}

// Accrued reports whether the run adds any penalty
func (r PenaltyResult) Accrued() bool {
	return r.Delta.IsPositive()
}

// AccruePenalty computes the penalty added by one run. Once days past due
// exceed the grace period, the window's total is installment × rate ×
// floor(days past due / 30). Only the steps not charged before are added, so
// repeated runs in the same window add nothing.
func AccruePenalty(in PenaltyInput) PenaltyResult {
	result := PenaltyResult{
		DaysPastDue: utils.DaysPastDue(in.NextPaymentDate, in.AsOf),
		Delta:       decimal.Zero,
	}
	if result.DaysPastDue <= in.GracePeriodDays {
		result.ChargeableSteps = in.StepsCharged
		return result
	}

	steps := result.DaysPastDue / PenaltyStepDays
	result.ChargeableSteps = steps
	if steps <= in.StepsCharged {
		result.ChargeableSteps = in.StepsCharged
		return result
	}

	result.NewSteps = steps - in.StepsCharged
	result.Delta = utils.RoundCurrency(in.InstallmentAmount.Mul(in.PenaltyRate).Mul(decimal.NewFromInt(int64(result.NewSteps))))
	return result
}
