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

	"github.com/shopspring/decimal"
)

// ProcessPayment allocates a payment through the waterfall and applies it to
// the loan and its schedule. A settlement deduction whose source reference was
// already applied to the loan returns the earlier payment unchanged.
func (s *LoanService) ProcessPayment(ctx context.Context, req *domain.MakePaymentRequest) (*domain.PaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, customError.WrapInvalidPaymentAmount(req.Amount.String())
	}
	if req.Amount.Exponent() < -utils.CurrencyPlaces {
		return nil, customError.WrapInvalidPaymentAmount(req.Amount.String())
	}
	source := req.Source
	if source == "" {
		source = domain.PaymentSourceManual
	}
	if source == domain.PaymentSourceSettlementDeduction && strings.TrimSpace(req.SourceReference) == "" {
		return nil, customError.WrapInvalidRequest("settlement deductions require a source reference")
	}

	now := s.clock.Now()
	paidAt := now
	if req.PaymentDate != nil {
		paidAt = req.PaymentDate.UTC()
	}

	var (
		loan      *domain.Loan
		payment   *domain.Payment
		from      domain.LoanStatus
		duplicate bool
	)

	err := s.withLock(ctx, loanKey(req.LoanRef), func() error {
		return s.store.WithinTx(ctx, func(loans repository.LoanRepository, payments repository.PaymentRepository) error {
			var err error
			loan, err = loans.GetByRefForUpdate(ctx, req.LoanRef)
			if err != nil {
				return err
			}

			if req.SourceReference != "" {
				existing, err := payments.GetBySourceReference(ctx, req.LoanRef, req.SourceReference)
				if err != nil {
					return err
				}
				if existing != nil {
					payment, duplicate = existing, true
					return nil
				}
			}

			if !loan.IsActive() {
				return customError.WrapLoanNotActive(loan.LoanRef, string(loan.Status))
			}
			from = loan.Status

			schedule, err := loans.GetSchedule(ctx, loan.LoanRef)
			if err != nil {
				return err
			}

			in, err := allocationInput(loan)
			if err != nil {
				return err
			}
			alloc, err := calculator.Allocate(in, req.Amount)
			if err != nil {
				return err
			}
			if alloc.Overpayment.IsPositive() && !s.policy.CreditOverpayments {
				return customError.WrapPaymentExceedsDue(req.Amount.String(), calculator.TotalDue(in).String())
			}

			current := calculator.NextUnpaid(schedule)

			loan.AccruedPenalty = loan.AccruedPenalty.Sub(alloc.Penalty)
			loan.OutstandingBalance = loan.OutstandingBalance.Sub(alloc.Principal)
			loan.TotalPaid = loan.TotalPaid.Add(req.Amount)
			loan.TotalInterestPaid = loan.TotalInterestPaid.Add(alloc.Interest)
			loan.LastPaymentDate = &paidAt
			loan.UpdatedAt = now

			settled := !loan.OutstandingBalance.IsPositive()
			touched := calculator.ApplyToSchedule(schedule, alloc.Interest.Add(alloc.Principal), paidAt, settled)
			if len(touched) > 0 {
				if err := loans.UpdateInstallments(ctx, touched); err != nil {
					return err
				}
			}

			if next := calculator.NextUnpaid(schedule); next != nil && current != nil && next.InstallmentNumber == current.InstallmentNumber {
				loan.CurrentPeriodInterestPaid = loan.CurrentPeriodInterestPaid.Add(alloc.Interest)
			} else {
				loan.CurrentPeriodInterestPaid = decimal.Zero
			}

			if settled {
				if err := s.transition(loan, domain.LoanStatusCompleted); err != nil {
					return err
				}
				loan.OutstandingBalance = decimal.Zero
				loan.CompletionDate = &paidAt
				loan.NextPaymentDate = nil
				loan.DaysPastDue = 0
				loan.PenaltyStepsCharged = 0
			} else {
				s.refreshDueState(loan, schedule, now)
			}
			if err := loans.Update(ctx, loan); err != nil {
				return err
			}

			payment = &domain.Payment{
				PaymentRef:      newRef(paymentRefPrefix),
				LoanRef:         loan.LoanRef,
				TenantID:        loan.TenantID,
				Amount:          req.Amount,
				PaymentDate:     paidAt,
				Method:          req.Method,
				Source:          source,
				SourceReference: req.SourceReference,
				BalanceAfter:    loan.OutstandingBalance,
				Status:          domain.PaymentStatusCompleted,
				CreatedAt:       now,
			}
			payment.SetAllocation(alloc)
			if err := payments.Create(ctx, payment); err != nil {
				return err
			}
			return checkTotalPaid(ctx, payments, loan)
		})
	})
	if err != nil {
		s.metrics.PaymentsProcessed.WithLabelValues(string(source), "rejected").Inc()
		return nil, err
	}

	if duplicate {
		s.log.InfoContext(ctx, "settlement reference already applied",
			"loan_ref", req.LoanRef,
			"source_reference", req.SourceReference,
			"payment_ref", payment.PaymentRef,
		)
		s.metrics.PaymentsProcessed.WithLabelValues(string(source), "duplicate").Inc()
		return &domain.PaymentResponse{Payment: payment, Loan: loan}, nil
	}

	s.log.InfoContext(ctx, "payment processed",
		"loan_ref", loan.LoanRef,
		"payment_ref", payment.PaymentRef,
		"amount", payment.Amount.String(),
		"outstanding", loan.OutstandingBalance.String(),
		"status", loan.Status,
	)
	s.metrics.PaymentsProcessed.WithLabelValues(string(source), "completed").Inc()
	s.observeAllocation(payment.Allocation())

	events := []event.Event{paymentEvent(event.PaymentProcessed, loan, payment, now)}
	if loan.Status != from {
		s.metrics.StatusTransitions.WithLabelValues(string(from), string(loan.Status)).Inc()
		events = append(events, statusChanged(loan, from, "paid in full", now))
	}
	s.publish(ctx, events...)

	return &domain.PaymentResponse{Payment: payment, Loan: loan}, nil
}

// ReversePayment undoes a completed payment on an active loan: its allocation
// is restored to the loan balances and its credit is taken back off the
// schedule, latest installment first.
func (s *LoanService) ReversePayment(ctx context.Context, paymentRef string, req *domain.ReversePaymentRequest) (*domain.PaymentResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, customError.WrapInvalidRequest("a reason is required to reverse a payment")
	}

	original, err := s.store.Payments().GetByRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	var (
		loan    *domain.Loan
		payment *domain.Payment
	)
	now := s.clock.Now()

	err = s.withLock(ctx, loanKey(original.LoanRef), func() error {
		return s.store.WithinTx(ctx, func(loans repository.LoanRepository, payments repository.PaymentRepository) error {
			var err error
			loan, err = loans.GetByRefForUpdate(ctx, original.LoanRef)
			if err != nil {
				return err
			}
			payment, err = payments.GetByRef(ctx, paymentRef)
			if err != nil {
				return err
			}
			if payment.Status != domain.PaymentStatusCompleted {
				return customError.WrapPaymentNotReversible(paymentRef, string(payment.Status))
			}
			if !loan.IsActive() {
				return customError.WrapLoanNotActive(loan.LoanRef, string(loan.Status))
			}

			schedule, err := loans.GetSchedule(ctx, loan.LoanRef)
			if err != nil {
				return err
			}

			alloc := payment.Allocation()
			loan.AccruedPenalty = loan.AccruedPenalty.Add(alloc.Penalty)
			loan.OutstandingBalance = loan.OutstandingBalance.Add(alloc.Principal)
			loan.TotalPaid = loan.TotalPaid.Sub(payment.Amount)
			loan.TotalInterestPaid = loan.TotalInterestPaid.Sub(alloc.Interest)
			loan.CurrentPeriodInterestPaid = loan.CurrentPeriodInterestPaid.Sub(alloc.Interest)
			if loan.CurrentPeriodInterestPaid.IsNegative() {
				loan.CurrentPeriodInterestPaid = decimal.Zero
			}
			loan.UpdatedAt = now

			touched := calculator.RevertFromSchedule(schedule, alloc.Interest.Add(alloc.Principal))
			if len(touched) > 0 {
				if err := loans.UpdateInstallments(ctx, touched); err != nil {
					return err
				}
			}
			s.refreshDueState(loan, schedule, now)

			// the reopened window is not charged retroactively
			if loan.NextPaymentDate != nil {
				steps := calculator.AccruePenalty(penaltyInput(loan, now)).ChargeableSteps
				if steps > loan.PenaltyStepsCharged {
					loan.PenaltyStepsCharged = steps
				}
			}
			if err := loans.Update(ctx, loan); err != nil {
				return err
			}

			payment.Status = domain.PaymentStatusReversed
			payment.ReversedAt = &now
			payment.ReversalReason = req.Reason
			if err := payments.Update(ctx, payment); err != nil {
				return err
			}
			return checkTotalPaid(ctx, payments, loan)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "payment reversed",
		"loan_ref", loan.LoanRef,
		"payment_ref", payment.PaymentRef,
		"amount", payment.Amount.String(),
		"reason", req.Reason,
	)
	s.metrics.PaymentsProcessed.WithLabelValues(string(payment.Source), "reversed").Inc()
	s.publish(ctx, paymentEvent(event.PaymentReversed, loan, payment, now).
		WithAttribute("reason", req.Reason))

	return &domain.PaymentResponse{Payment: payment, Loan: loan}, nil
}

// checkTotalPaid holds the loan's running total to the sum of its completed
// payments, so a drifted ledger rolls the transaction back.
func checkTotalPaid(ctx context.Context, payments repository.PaymentRepository, loan *domain.Loan) error {
	total, err := payments.GetTotalPaid(ctx, loan.LoanRef)
	if err != nil {
		return err
	}
	if !total.Equal(loan.TotalPaid) {
		return customError.WrapLedgerMismatch(loan.LoanRef, loan.TotalPaid.String(), total.String())
	}
	return nil
}

// refreshDueState moves the next due date to the earliest open installment.
// A new due date starts a new overdue window with nothing charged yet.
func (s *LoanService) refreshDueState(loan *domain.Loan, schedule []*domain.Installment, now time.Time) {
	next := calculator.NextDueDate(schedule)
	if next == nil {
		// balance left after the last installment closed falls due at maturity
		next = calculator.MaturityDate(schedule)
	}
	if next == nil || loan.NextPaymentDate == nil || !next.Equal(*loan.NextPaymentDate) {
		loan.PenaltyStepsCharged = 0
	}
	loan.NextPaymentDate = next
	loan.DaysPastDue = 0
	if next != nil {
		loan.DaysPastDue = utils.DaysPastDue(*next, now)
	}
}

func (s *LoanService) observeAllocation(a domain.Allocation) {
	for component, amount := range map[string]decimal.Decimal{
		"penalty":     a.Penalty,
		"interest":    a.Interest,
		"principal":   a.Principal,
		"overpayment": a.Overpayment,
	} {
		if amount.IsPositive() {
			s.metrics.PaymentAmount.WithLabelValues(component).Add(amount.InexactFloat64())
		}
	}
}

// allocationInput is the loan state the waterfall runs against
func allocationInput(loan *domain.Loan) (calculator.AllocationInput, error) {
	method, err := calculator.MethodFor(loan.Method)
	if err != nil {
		return calculator.AllocationInput{}, err
	}
	rate, err := calculator.PeriodicRate(loan.AnnualInterestRate, loan.Frequency)
	if err != nil {
		return calculator.AllocationInput{}, err
	}
	return calculator.AllocationInput{
		OutstandingBalance:     loan.OutstandingBalance,
		AccruedPenalty:         loan.AccruedPenalty,
		PeriodicRate:           rate,
		InterestBasis:          method.InterestBasis(loan.PrincipalAmount, loan.OutstandingBalance),
		InterestPaidThisPeriod: loan.CurrentPeriodInterestPaid,
	}, nil
}

func paymentEvent(t event.Type, loan *domain.Loan, payment *domain.Payment, at time.Time) event.Event {
	return event.New(t, loan, at).
		WithAmount("amount", payment.Amount).
		WithAmount("penalty", payment.PenaltyPortion).
		WithAmount("interest", payment.InterestPortion).
		WithAmount("principal", payment.PrincipalPortion).
		WithAmount("overpayment", payment.OverpaymentPortion).
		WithAmount("outstanding_balance", loan.OutstandingBalance).
		WithAttribute("payment_ref", payment.PaymentRef).
		WithAttribute("source", string(payment.Source))
}
