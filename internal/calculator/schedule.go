package calculator

import (
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// ApplyToSchedule credits `credit` (the interest and principal part of a
// payment) to the earliest unpaid installments, in installment order, and
// returns the installments it changed. When settled is true the loan has been
// retired and every remaining installment is closed as well.
//
// The installments are modified in place; schedule must be ordered by
// installment number.
func ApplyToSchedule(schedule []*domain.Installment, credit decimal.Decimal, paidAt time.Time, settled bool) []*domain.Installment {
	var touched []*domain.Installment
	remaining := credit

	for _, inst := range schedule {
		if inst.Paid {
			continue
		}
		if !remaining.IsPositive() && !settled {
			break
		}

		changed := false
		if remaining.IsPositive() {
			take := utils.MinDecimal(remaining, inst.Remaining())
			if take.IsPositive() {
				inst.PaidAmount = inst.PaidAmount.Add(take)
				remaining = remaining.Sub(take)
				changed = true
			}
		}
		if settled || !inst.Remaining().IsPositive() {
			inst.Paid = true
			paid := paidAt
			inst.PaidDate = &paid
			changed = true
		}
		if changed {
			touched = append(touched, inst)
		}
	}
	return touched
}

// RevertFromSchedule removes a previously applied credit, starting from the
// latest installment that received money. Installments left short of their
// total are reopened.
func RevertFromSchedule(schedule []*domain.Installment, credit decimal.Decimal) []*domain.Installment {
	seen := make(map[int]bool)
	var touched []*domain.Installment
	remaining := credit

	for i := len(schedule) - 1; i >= 0 && remaining.IsPositive(); i-- {
		inst := schedule[i]
		if !inst.PaidAmount.IsPositive() {
			continue
		}
		take := utils.MinDecimal(remaining, inst.PaidAmount)
		inst.PaidAmount = inst.PaidAmount.Sub(take)
		remaining = remaining.Sub(take)
		seen[inst.InstallmentNumber] = true
	}

	for _, inst := range schedule {
		if inst.Paid && inst.Remaining().IsPositive() {
			inst.Paid = false
			inst.PaidDate = nil
			seen[inst.InstallmentNumber] = true
		}
		if seen[inst.InstallmentNumber] {
			touched = append(touched, inst)
		}
	}
	return touched
}

// NextUnpaid returns the first open installment, or nil when all are settled
func NextUnpaid(schedule []*domain.Installment) *domain.Installment {
	for _, inst := range schedule {
		if !inst.Paid {
			return inst
		}
	}
	return nil
}

// NextDueDate is the due date of the first open installment
func NextDueDate(schedule []*domain.Installment) *time.Time {
	inst := NextUnpaid(schedule)
	if inst == nil {
		return nil
	}
	due := inst.DueDate
	return &due
}
