package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/event"
	"github.com/segyhp/dealer-loan-engine/internal/metrics"
	"github.com/segyhp/dealer-loan-engine/internal/repository/mocks"
	"github.com/segyhp/dealer-loan-engine/pkg/clock"
	"github.com/segyhp/dealer-loan-engine/pkg/logger"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"
)

func TestDelinquencyRun_AccruesOverdueLoans(t *testing.T) {
	h := newHarness(t, DefaultPolicy())
	ctx := context.Background()
	refs := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		refs = append(refs, h.activeLoan(t, applyRequest("12000")).Loan.LoanRef)
	}

	runner := NewDelinquencyService(h.store.Loans(), h.svc, h.clock, logger.Discard(), metrics.NewNop(), 2, 2)

	h.clock.Set(time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC))
	report, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 3, report.Accrued)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "68.07", report.TotalPenalty.String())
	assert.Equal(t, 3, count(h.events.Types(), event.PenaltyCalculated))

	for _, ref := range refs {
		loan := h.loan(t, ref)
		assert.Equal(t, 30, loan.DaysPastDue)
		assert.Equal(t, "22.69", loan.AccruedPenalty.String())
		assert.Equal(t, 1, loan.PenaltyStepsCharged)
	}

	// same window, nothing new to charge
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 0, report.Accrued)
	assert.Equal(t, 3, report.Unchanged)
	assert.True(t, report.TotalPenalty.IsZero())

	h.clock.Set(time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC))
	report, err = runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Accrued)
	for _, ref := range refs {
		loan := h.loan(t, ref)
		assert.Equal(t, 60, loan.DaysPastDue)
		assert.Equal(t, "45.38", loan.AccruedPenalty.String())
		assert.Equal(t, 2, loan.PenaltyStepsCharged)
	}
}

func TestDelinquencyRun_SkipsLoansNotYetOverdue(t *testing.T) {
	h := newHarness(t, DefaultPolicy())
	h.activeLoan(t, applyRequest("12000"))

	runner := NewDelinquencyService(h.store.Loans(), h.svc, h.clock, logger.Discard(), metrics.NewNop(), 0, 0)
	h.clock.Set(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Empty(t, h.events.Events())
}

type stubAccruer struct {
	mu     sync.Mutex
	fail   map[string]bool
	called []string
}

func (s *stubAccruer) AccruePenalty(_ context.Context, loanRef string) (*PenaltyOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called = append(s.called, loanRef)
	if s.fail[loanRef] {
		return nil, errors.New("row locked")
	}
	return &PenaltyOutcome{
		Loan:   &domain.Loan{LoanRef: loanRef},
		Result: calculator.PenaltyResult{DaysPastDue: 31, ChargeableSteps: 1, NewSteps: 1, Delta: dec("10")},
	}, nil
}

func loansWithRefs(refs ...string) []*domain.Loan {
	loans := make([]*domain.Loan, 0, len(refs))
	for _, ref := range refs {
		loans = append(loans, &domain.Loan{LoanRef: ref, Status: domain.LoanStatusActive})
	}
	return loans
}

func TestDelinquencyRun_PagesAndContinuesPastFailures(t *testing.T) {
	loans := new(mocks.MockLoanRepository)
	clk := clock.NewFixed(today)
	asOf := utils.StartOfDay(clk.Now())

	loans.On("ListOverdue", mock.Anything, asOf, "", 2).Return(loansWithRefs("DLN-A", "DLN-B"), nil).Once()
	loans.On("ListOverdue", mock.Anything, asOf, "DLN-B", 2).Return(loansWithRefs("DLN-C", "DLN-D"), nil).Once()
	loans.On("ListOverdue", mock.Anything, asOf, "DLN-D", 2).Return(loansWithRefs("DLN-E"), nil).Once()

	accruer := &stubAccruer{fail: map[string]bool{"DLN-C": true}}
	runner := NewDelinquencyService(loans, accruer, clk, logger.Discard(), metrics.NewNop(), 2, 3)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Scanned)
	assert.Equal(t, 4, report.Accrued)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "40", report.TotalPenalty.String())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "DLN-C", report.Failures[0].LoanRef)
	assert.Contains(t, report.Failures[0].Error, "row locked")
	assert.ElementsMatch(t, []string{"DLN-A", "DLN-B", "DLN-C", "DLN-D", "DLN-E"}, accruer.called)
	loans.AssertExpectations(t)
}

func TestDelinquencyRun_ListFailureEndsThePass(t *testing.T) {
	loans := new(mocks.MockLoanRepository)
	clk := clock.NewFixed(today)
	asOf := utils.StartOfDay(today)

	loans.On("ListOverdue", mock.Anything, asOf, "", 10).Return(loansWithRefs("DLN-A"), nil).Once()
	loans.On("ListOverdue", mock.Anything, asOf, "DLN-A", 10).Return(nil, errors.New("connection reset")).Maybe()

	accruer := &stubAccruer{}
	runner := NewDelinquencyService(loans, accruer, clk, logger.Discard(), metrics.NewNop(), 10, 1)

	// one short batch is the last page
	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)

	failing := new(mocks.MockLoanRepository)
	failing.On("ListOverdue", mock.Anything, asOf, "", 10).Return(nil, errors.New("connection reset"))
	runner = NewDelinquencyService(failing, accruer, clk, logger.Discard(), metrics.NewNop(), 10, 1)

	report, err = runner.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, report.Scanned)
}

func TestDelinquencyRun_CancelledContext(t *testing.T) {
	loans := new(mocks.MockLoanRepository)
	runner := NewDelinquencyService(loans, &stubAccruer{}, clock.NewFixed(today), logger.Discard(), metrics.NewNop(), 10, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	loans.AssertNotCalled(t, "ListOverdue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
