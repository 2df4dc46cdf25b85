package service

import (
	"context"
	"strconv"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/event"
	"github.com/segyhp/dealer-loan-engine/internal/repository"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
)

// PenaltyOutcome is what one accrual did to a loan
type PenaltyOutcome struct {
	Loan   *domain.Loan
	Result calculator.PenaltyResult
}

// AccruePenalty refreshes a loan's days past due and charges the penalty
// steps of its current overdue window not charged before
func (s *LoanService) AccruePenalty(ctx context.Context, loanRef string) (*PenaltyOutcome, error) {
	var outcome PenaltyOutcome
	now := s.clock.Now()

	err := s.withLock(ctx, loanKey(loanRef), func() error {
		return s.store.WithinTx(ctx, func(loans repository.LoanRepository, _ repository.PaymentRepository) error {
			loan, err := loans.GetByRefForUpdate(ctx, loanRef)
			if err != nil {
				return err
			}
			if !loan.IsActive() {
				return customError.WrapLoanNotActive(loanRef, string(loan.Status))
			}
			outcome.Loan = loan
			if loan.NextPaymentDate == nil {
				return nil
			}

			result := calculator.AccruePenalty(penaltyInput(loan, now))
			outcome.Result = result
			if !result.Accrued() && result.DaysPastDue == loan.DaysPastDue {
				return nil
			}

			loan.DaysPastDue = result.DaysPastDue
			if result.Accrued() {
				loan.AccruedPenalty = loan.AccruedPenalty.Add(result.Delta)
				loan.PenaltyStepsCharged = result.ChargeableSteps
				loan.LastPenaltyAccrualDate = &now
			}
			loan.UpdatedAt = now
			return loans.Update(ctx, loan)
		})
	})
	if err != nil {
		return nil, err
	}

	if outcome.Result.Accrued() {
		loan := outcome.Loan
		s.log.InfoContext(ctx, "penalty accrued",
			"loan_ref", loan.LoanRef,
			"days_past_due", outcome.Result.DaysPastDue,
			"steps", outcome.Result.NewSteps,
			"penalty", outcome.Result.Delta.String(),
		)
		s.metrics.PenaltyAccrued.Add(outcome.Result.Delta.InexactFloat64())
		s.publish(ctx, event.New(event.PenaltyCalculated, loan, now).
			WithAmount("penalty", outcome.Result.Delta).
			WithAmount("accrued_penalty", loan.AccruedPenalty).
			WithAmount("installment_amount", loan.InstallmentAmount).
			WithAttribute("days_past_due", strconv.Itoa(outcome.Result.DaysPastDue)).
			WithAttribute("steps_charged", strconv.Itoa(loan.PenaltyStepsCharged)))
	}

	return &outcome, nil
}

func penaltyInput(loan *domain.Loan, asOf time.Time) calculator.PenaltyInput {
	return calculator.PenaltyInput{
		NextPaymentDate:   *loan.NextPaymentDate,
		AsOf:              asOf,
		GracePeriodDays:   loan.GracePeriodDays,
		InstallmentAmount: loan.InstallmentAmount,
		PenaltyRate:       loan.PenaltyRate,
		StepsCharged:      loan.PenaltyStepsCharged,
	}
}
