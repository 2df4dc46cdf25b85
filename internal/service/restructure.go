package service

import (
	"context"
	"strings"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/event"
	"github.com/segyhp/dealer-loan-engine/internal/repository"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoratoriumDays is the grace granted per moratorium month
const MoratoriumDays = 30

// Restructure closes an active loan and originates its replacement in one
// transaction. The replacement's principal is the outstanding balance unless
// an explicit new principal is given; terms not supplied carry over from the
// original. Payments and accrued penalty stay on the original loan.
func (s *LoanService) Restructure(ctx context.Context, loanRef string, req *domain.RestructureRequest) (*domain.RestructureResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, customError.WrapRestructureReasonRequired()
	}
	if req.MoratoriumMonths < 0 {
		return nil, customError.WrapInvalidRequest("moratorium months cannot be negative")
	}
	if req.NewPrincipal != nil && !req.NewPrincipal.IsPositive() {
		return nil, customError.WrapInvalidLoanAmount(req.NewPrincipal.String())
	}

	var (
		original *domain.Loan
		loan     *domain.Loan
		schedule []*domain.Installment
		carried  decimal.Decimal
	)
	now := s.clock.Now()

	err := s.withLock(ctx, loanKey(loanRef), func() error {
		return s.store.WithinTx(ctx, func(loans repository.LoanRepository, _ repository.PaymentRepository) error {
			var err error
			original, err = loans.GetByRefForUpdate(ctx, loanRef)
			if err != nil {
				return err
			}
			if !original.IsActive() {
				return customError.WrapLoanNotActive(loanRef, string(original.Status))
			}
			carried = original.OutstandingBalance

			loan, err = s.replacementLoan(original, req, now)
			if err != nil {
				return err
			}

			schedule, err = calculator.GenerateSchedule(calculator.TermsOf(loan))
			if err != nil {
				return err
			}
			stampSchedule(schedule, now)
			loan.InstallmentAmount = calculator.PeriodicPayment(schedule)
			loan.MaturityDate = calculator.MaturityDate(schedule)
			loan.NextPaymentDate = calculator.NextDueDate(schedule)

			if err := loans.Create(ctx, loan); err != nil {
				return err
			}
			if err := loans.CreateSchedule(ctx, schedule); err != nil {
				return err
			}

			if err := s.transition(original, domain.LoanStatusRestructured); err != nil {
				return err
			}
			original.StatusReason = req.Reason
			original.RestructuredTo = loan.LoanRef
			original.NextPaymentDate = nil
			original.DaysPastDue = 0
			original.UpdatedAt = now
			return loans.Update(ctx, original)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "loan restructured",
		"loan_ref", original.LoanRef,
		"new_loan_ref", loan.LoanRef,
		"carried_balance", carried.String(),
		"new_principal", loan.PrincipalAmount.String(),
		"reason", req.Reason,
	)
	s.metrics.LoansOriginated.WithLabelValues("restructure").Inc()
	s.metrics.StatusTransitions.WithLabelValues(string(domain.LoanStatusActive), string(domain.LoanStatusRestructured)).Inc()
	s.publish(ctx,
		event.New(event.LoanCreated, loan, now).
			WithAmount("principal", loan.PrincipalAmount).
			WithAmount("installment_amount", loan.InstallmentAmount).
			WithAttribute("origin", "restructure").
			WithAttribute("restructured_from", original.LoanRef),
		event.New(event.LoanRestructured, original, now).
			WithAmount("carried_balance", carried).
			WithAmount("new_principal", loan.PrincipalAmount).
			WithAmount("accrued_penalty", original.AccruedPenalty).
			WithAttribute("new_loan_ref", loan.LoanRef).
			WithAttribute("reason", req.Reason),
	)

	return &domain.RestructureResponse{Original: original, Loan: loan, Schedule: schedule}, nil
}

// replacementLoan builds the new instrument from the original and the requested terms
func (s *LoanService) replacementLoan(original *domain.Loan, req *domain.RestructureRequest, now time.Time) (*domain.Loan, error) {
	principal := original.OutstandingBalance
	if req.NewPrincipal != nil {
		principal = *req.NewPrincipal
	}
	if !principal.IsPositive() {
		return nil, customError.WrapNoOutstandingBalance(original.LoanRef)
	}

	rate := original.AnnualInterestRate
	if req.NewAnnualRate != nil {
		rate = *req.NewAnnualRate
	}
	tenor := original.TenorMonths
	if req.NewTenorMonths != nil {
		tenor = *req.NewTenorMonths
	}
	frequency := original.Frequency
	if req.NewFrequency != nil {
		frequency = *req.NewFrequency
	}
	method := original.Method
	if req.NewMethod != nil {
		method = *req.NewMethod
	}
	if err := s.validator.ValidateTerms(rate, tenor, frequency, method); err != nil {
		return nil, err
	}

	replacement := original.Clone()
	replacement.ID = uuid.Nil
	replacement.LoanRef = newRef(loanRefPrefix)
	replacement.PrincipalAmount = principal
	replacement.AnnualInterestRate = rate
	replacement.TenorMonths = tenor
	replacement.Frequency = frequency
	replacement.Method = method
	replacement.StartDate = utils.StartOfDay(now)
	replacement.LastPaymentDate = nil
	replacement.ApprovalDate = &now
	replacement.CompletionDate = nil
	replacement.Status = domain.LoanStatusActive
	replacement.StatusReason = req.Reason
	replacement.OutstandingBalance = principal
	replacement.TotalPaid = decimal.Zero
	replacement.TotalInterestPaid = decimal.Zero
	replacement.DaysPastDue = 0
	replacement.AccruedPenalty = decimal.Zero
	replacement.GracePeriodDays = req.MoratoriumMonths * MoratoriumDays
	replacement.CurrentPeriodInterestPaid = decimal.Zero
	replacement.PenaltyStepsCharged = 0
	replacement.LastPenaltyAccrualDate = nil
	replacement.RestructuredFrom = original.LoanRef
	replacement.RestructuredTo = ""
	replacement.CreatedAt = now
	replacement.UpdatedAt = now
	return replacement, nil
}
