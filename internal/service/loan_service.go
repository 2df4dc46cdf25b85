package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/event"
	"github.com/segyhp/dealer-loan-engine/internal/lock"
	"github.com/segyhp/dealer-loan-engine/internal/metrics"
	"github.com/segyhp/dealer-loan-engine/internal/repository"
	"github.com/segyhp/dealer-loan-engine/pkg/clock"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/google/uuid"
)

const (
	loanRefPrefix    = "DLN"
	paymentRefPrefix = "PAY"
)

// LoanService owns the loan lifecycle. Every mutation of a loan runs under the
// loan's lock and inside one store transaction; events go out after commit.
type LoanService struct {
	store     repository.Store
	locker    lock.Locker
	sink      event.Sink
	clock     clock.Clock
	policy    Policy
	validator *ApplicationValidator
	log       *slog.Logger
	metrics   *metrics.Metrics
	weights   calculator.RiskWeights
	bands     calculator.RiskBands
}

func NewLoanService(
	store repository.Store,
	locker lock.Locker,
	sink event.Sink,
	clk clock.Clock,
	policy Policy,
	log *slog.Logger,
	m *metrics.Metrics,
) *LoanService {
	return &LoanService{
		store:     store,
		locker:    locker,
		sink:      sink,
		clock:     clk,
		policy:    policy,
		validator: NewApplicationValidator(policy),
		log:       log,
		metrics:   m,
		weights:   calculator.DefaultRiskWeights(),
		bands:     calculator.DefaultRiskBands(),
	}
}

// SetRiskModel replaces the default risk weights and score bands
func (s *LoanService) SetRiskModel(weights calculator.RiskWeights, bands calculator.RiskBands) {
	s.weights = weights
	s.bands = bands
}

// Apply validates an application and records the loan as pending approval
func (s *LoanService) Apply(ctx context.Context, req *domain.ApplyLoanRequest) (*domain.Loan, error) {
	if req.Method == "" {
		req.Method = domain.MethodReducingBalance
	}
	if err := s.validator.ValidateApplication(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start := utils.StartOfDay(now)
	if req.StartDate != nil {
		start = utils.StartOfDay(*req.StartDate)
	}

	loan := &domain.Loan{
		LoanRef:            newRef(loanRefPrefix),
		StationID:          req.StationID,
		DealerID:           req.DealerID,
		TenantID:           req.TenantID,
		PrincipalAmount:    req.PrincipalAmount,
		AnnualInterestRate: req.AnnualInterestRate,
		TenorMonths:        req.TenorMonths,
		Frequency:          req.Frequency,
		Method:             req.Method,
		StartDate:          start,
		Status:             domain.LoanStatusDraft,
		OutstandingBalance: req.PrincipalAmount,
		PenaltyRate:        s.policy.DefaultPenaltyRate,
		GracePeriodDays:    s.policy.DefaultGracePeriodDays,
		Collateral:         req.Collateral,
		Guarantors:         req.Guarantors,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.PenaltyRate != nil {
		loan.PenaltyRate = *req.PenaltyRate
	}
	if req.GracePeriodDays != nil {
		loan.GracePeriodDays = *req.GracePeriodDays
	}

	// preview the schedule for the quoted installment; it is persisted on approval
	preview, err := calculator.GenerateSchedule(calculator.TermsOf(loan))
	if err != nil {
		return nil, err
	}
	loan.InstallmentAmount = calculator.PeriodicPayment(preview)
	loan.MaturityDate = calculator.MaturityDate(preview)

	err = s.withLock(ctx, stationKey(req.StationID), func() error {
		active, err := s.store.Loans().CountActiveByStation(ctx, req.StationID)
		if err != nil {
			return err
		}
		if err := s.validator.CheckActiveLoans(req.StationID, active); err != nil {
			return err
		}
		if err := s.transition(loan, domain.LoanStatusPendingApproval); err != nil {
			return err
		}
		return s.store.Loans().Create(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "loan application recorded",
		"loan_ref", loan.LoanRef,
		"station_id", loan.StationID,
		"principal", loan.PrincipalAmount.String(),
	)
	s.metrics.LoansOriginated.WithLabelValues("application").Inc()
	s.publish(ctx, event.New(event.LoanCreated, loan, now).
		WithAmount("principal", loan.PrincipalAmount).
		WithAmount("installment_amount", loan.InstallmentAmount).
		WithAttribute("origin", "application"))

	return loan, nil
}

// Approve activates a pending loan and generates its schedule
func (s *LoanService) Approve(ctx context.Context, loanRef string, req *domain.ApproveLoanRequest) (*domain.LoanResponse, error) {
	current, err := s.store.Loans().GetByRef(ctx, loanRef)
	if err != nil {
		return nil, err
	}

	var (
		loan     *domain.Loan
		schedule []*domain.Installment
	)
	now := s.clock.Now()

	err = s.withLock(ctx, stationKey(current.StationID), func() error {
		return s.withLock(ctx, loanKey(loanRef), func() error {
			return s.store.WithinTx(ctx, func(loans repository.LoanRepository, _ repository.PaymentRepository) error {
				loan, err = loans.GetByRefForUpdate(ctx, loanRef)
				if err != nil {
					return err
				}
				if loan.Status != domain.LoanStatusPendingApproval {
					return customError.WrapInvalidTransition(loanRef, string(loan.Status), string(domain.LoanStatusActive))
				}

				active, err := loans.CountActiveByStation(ctx, loan.StationID)
				if err != nil {
					return err
				}
				if err := s.validator.CheckActiveLoans(loan.StationID, active); err != nil {
					return err
				}

				today := utils.StartOfDay(now)
				if loan.StartDate.Before(today) {
					loan.StartDate = today
				}
				schedule, err = calculator.GenerateSchedule(calculator.TermsOf(loan))
				if err != nil {
					return err
				}
				stampSchedule(schedule, now)
				if err := loans.CreateSchedule(ctx, schedule); err != nil {
					return err
				}

				if err := s.transition(loan, domain.LoanStatusActive); err != nil {
					return err
				}
				loan.ApprovalDate = &now
				loan.InstallmentAmount = calculator.PeriodicPayment(schedule)
				loan.MaturityDate = calculator.MaturityDate(schedule)
				loan.NextPaymentDate = calculator.NextDueDate(schedule)
				if req != nil && req.ApprovedBy != "" {
					loan.StatusReason = "approved by " + req.ApprovedBy
				}
				loan.UpdatedAt = now
				return loans.Update(ctx, loan)
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "loan approved",
		"loan_ref", loan.LoanRef,
		"installments", len(schedule),
		"installment_amount", loan.InstallmentAmount.String(),
	)
	s.metrics.StatusTransitions.WithLabelValues(string(domain.LoanStatusPendingApproval), string(domain.LoanStatusActive)).Inc()
	s.publish(ctx, event.New(event.LoanApproved, loan, now).
		WithAmount("principal", loan.PrincipalAmount).
		WithAmount("installment_amount", loan.InstallmentAmount).
		WithAmount("total_interest", calculator.SumInterest(schedule)))

	return &domain.LoanResponse{Loan: loan, Schedule: schedule}, nil
}

// administrative lists the statuses an operator may set directly
var administrative = map[domain.LoanStatus]bool{
	domain.LoanStatusSuspended: true,
	domain.LoanStatusCancelled: true,
	domain.LoanStatusDefaulted: true,
}

// ChangeStatus applies an administrative suspension, cancellation or default
func (s *LoanService) ChangeStatus(ctx context.Context, loanRef string, req *domain.ChangeStatusRequest) (*domain.Loan, error) {
	if !administrative[req.Status] {
		return nil, customError.WrapInvalidRequest(fmt.Sprintf("status %q cannot be set directly", req.Status))
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, customError.WrapInvalidRequest("a reason is required to change a loan's status")
	}

	var (
		loan *domain.Loan
		from domain.LoanStatus
	)
	now := s.clock.Now()

	err := s.withLock(ctx, loanKey(loanRef), func() error {
		return s.store.WithinTx(ctx, func(loans repository.LoanRepository, _ repository.PaymentRepository) error {
			var err error
			loan, err = loans.GetByRefForUpdate(ctx, loanRef)
			if err != nil {
				return err
			}
			from = loan.Status
			if err := s.transition(loan, req.Status); err != nil {
				return err
			}
			loan.StatusReason = req.Reason
			loan.UpdatedAt = now
			return loans.Update(ctx, loan)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "loan status changed",
		"loan_ref", loanRef,
		"from", from,
		"to", loan.Status,
		"reason", req.Reason,
	)
	s.metrics.StatusTransitions.WithLabelValues(string(from), string(loan.Status)).Inc()
	s.publish(ctx, statusChanged(loan, from, req.Reason, now))

	return loan, nil
}

// GetLoan returns a loan with its schedule
func (s *LoanService) GetLoan(ctx context.Context, loanRef string) (*domain.LoanResponse, error) {
	loan, err := s.store.Loans().GetByRef(ctx, loanRef)
	if err != nil {
		return nil, err
	}
	schedule, err := s.store.Loans().GetSchedule(ctx, loanRef)
	if err != nil {
		return nil, err
	}
	return &domain.LoanResponse{Loan: loan, Schedule: schedule}, nil
}

// GetSchedule returns the installments of a loan. Loans still pending
// approval have no schedule yet.
func (s *LoanService) GetSchedule(ctx context.Context, loanRef string) ([]*domain.Installment, error) {
	if _, err := s.store.Loans().GetByRef(ctx, loanRef); err != nil {
		return nil, err
	}
	return s.store.Loans().GetSchedule(ctx, loanRef)
}

// GetPayments returns the payment history of a loan
func (s *LoanService) GetPayments(ctx context.Context, loanRef string) ([]*domain.Payment, error) {
	if _, err := s.store.Loans().GetByRef(ctx, loanRef); err != nil {
		return nil, err
	}
	return s.store.Payments().GetByLoanRef(ctx, loanRef)
}

// ListStationLoans lists a station's loans, optionally filtered by status
func (s *LoanService) ListStationLoans(ctx context.Context, stationID string, status domain.LoanStatus) ([]*domain.Loan, error) {
	if stationID == "" {
		return nil, customError.WrapInvalidRequest("station_id is required")
	}
	if status != "" && !status.IsValid() {
		return nil, customError.WrapInvalidRequest(fmt.Sprintf("unknown loan status %q", status))
	}
	return s.store.Loans().ListByStation(ctx, stationID, status)
}

// AssessRisk scores a loan's default risk as of now
func (s *LoanService) AssessRisk(ctx context.Context, loanRef string) (*calculator.RiskAssessment, error) {
	loan, err := s.store.Loans().GetByRef(ctx, loanRef)
	if err != nil {
		return nil, err
	}
	schedule, err := s.store.Loans().GetSchedule(ctx, loanRef)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().GetByLoanRef(ctx, loanRef)
	if err != nil {
		return nil, err
	}

	assessment := calculator.AssessRisk(calculator.RiskInput{
		Loan:     loan,
		Schedule: schedule,
		Payments: payments,
		AsOf:     s.clock.Now(),
	}, s.weights, s.bands)
	return &assessment, nil
}

// transition moves the loan to status or reports the conflict
func (s *LoanService) transition(loan *domain.Loan, to domain.LoanStatus) error {
	if !domain.CanTransition(loan.Status, to) {
		return customError.WrapInvalidTransition(loan.LoanRef, string(loan.Status), string(to))
	}
	loan.Status = to
	return nil
}

func (s *LoanService) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return customError.WrapLockUnavailable(key, err)
	}
	defer unlock()
	return fn()
}

// publish hands events to the sink. The change is already committed, so a
// failed delivery is logged and counted but never returned.
func (s *LoanService) publish(ctx context.Context, events ...event.Event) {
	for _, e := range events {
		if err := s.sink.Publish(ctx, e); err != nil {
			s.log.ErrorContext(ctx, "publish event failed",
				"type", e.Type,
				"loan_ref", e.LoanRef,
				"error", err,
			)
			s.metrics.EventsPublished.WithLabelValues(string(e.Type), "failed").Inc()
			continue
		}
		s.metrics.EventsPublished.WithLabelValues(string(e.Type), "published").Inc()
	}
}

func statusChanged(loan *domain.Loan, from domain.LoanStatus, reason string, at time.Time) event.Event {
	return event.New(event.StatusChanged, loan, at).
		WithAttribute("from", string(from)).
		WithAttribute("to", string(loan.Status)).
		WithAttribute("reason", reason)
}

func stampSchedule(schedule []*domain.Installment, at time.Time) {
	for _, inst := range schedule {
		if inst.ID == uuid.Nil {
			inst.ID = uuid.New()
		}
		inst.CreatedAt = at
	}
}

func newRef(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(id[:16])
}

func loanKey(loanRef string) string {
	return "loan:" + loanRef
}

func stationKey(stationID string) string {
	return "station:" + stationID
}
