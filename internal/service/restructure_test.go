package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/event"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
)

func TestRestructure_CarriesOverOutstandingBalance(t *testing.T) {
	h := newHarness(t, DefaultPolicy())
	ctx := context.Background()
	original := h.activeLoan(t, applyRequest("5000")).Loan

	h.clock.Set(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC))
	resp, err := h.svc.Restructure(ctx, original.LoanRef, &domain.RestructureRequest{
		MoratoriumMonths: 2,
		Reason:           "seasonal sales drop",
	})
	require.NoError(t, err)

	assert.Equal(t, "5000", resp.Loan.PrincipalAmount.String())
	assert.Equal(t, "5000", resp.Loan.OutstandingBalance.String())
	assert.True(t, calculator.SumPrincipal(resp.Schedule).Equal(dec("5000")))
	assert.Len(t, resp.Schedule, 12)
	assert.True(t, resp.Schedule[0].DueDate.Equal(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, domain.LoanStatusActive, resp.Loan.Status)
	assert.NotEqual(t, original.LoanRef, resp.Loan.LoanRef)
	assert.Equal(t, original.LoanRef, resp.Loan.RestructuredFrom)
	assert.Equal(t, 60, resp.Loan.GracePeriodDays)
	assert.True(t, resp.Loan.TotalPaid.IsZero())
	assert.True(t, resp.Loan.TotalInterestPaid.IsZero())
	assert.Equal(t, original.StationID, resp.Loan.StationID)

	stored := h.loan(t, original.LoanRef)
	assert.Equal(t, domain.LoanStatusRestructured, stored.Status)
	assert.Equal(t, resp.Loan.LoanRef, stored.RestructuredTo)
	assert.Equal(t, "seasonal sales drop", stored.StatusReason)
	assert.Nil(t, stored.NextPaymentDate)

	replacement := h.loan(t, resp.Loan.LoanRef)
	assert.Equal(t, domain.LoanStatusActive, replacement.Status)
	schedule, err := h.svc.GetSchedule(ctx, replacement.LoanRef)
	require.NoError(t, err)
	assert.Len(t, schedule, 12)

	assert.Equal(t, []event.Type{event.LoanCreated, event.LoanRestructured}, h.events.Types())
	restructured := h.events.Events()[1]
	assert.Equal(t, original.LoanRef, restructured.LoanRef)
	assert.Equal(t, resp.Loan.LoanRef, restructured.Attributes["new_loan_ref"])
	assert.True(t, restructured.Amounts["carried_balance"].Equal(dec("5000")))

	_, err = h.svc.ProcessPayment(ctx, &domain.MakePaymentRequest{LoanRef: original.LoanRef, Amount: dec("100")})
	assert.ErrorIs(t, err, customError.ErrLoanNotActive)

	_, err = h.svc.Restructure(ctx, original.LoanRef, &domain.RestructureRequest{Reason: "again"})
	assert.ErrorIs(t, err, customError.ErrLoanNotActive)
}

func TestRestructure_AfterPartialRepayment(t *testing.T) {
	h := newHarness(t, DefaultPolicy())
	ctx := context.Background()
	active := h.activeLoan(t, applyRequest("12000"))
	ref := active.Loan.LoanRef

	h.clock.Set(active.Schedule[0].DueDate)
	_, err := h.svc.ProcessPayment(ctx, &domain.MakePaymentRequest{LoanRef: ref, Amount: dec("1134.72")})
	require.NoError(t, err)

	// fall behind and pick up a penalty, which stays on the original
	h.clock.Set(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	_, err = h.svc.AccruePenalty(ctx, ref)
	require.NoError(t, err)

	tenor := 24
	resp, err := h.svc.Restructure(ctx, ref, &domain.RestructureRequest{
		NewTenorMonths: &tenor,
		Reason:         "extend tenor",
	})
	require.NoError(t, err)

	assert.Equal(t, "11105.28", resp.Loan.PrincipalAmount.String())
	assert.True(t, calculator.SumPrincipal(resp.Schedule).Equal(dec("11105.28")))
	assert.Len(t, resp.Schedule, 24)
	assert.Equal(t, 0, resp.Loan.GracePeriodDays)
	assert.True(t, resp.Loan.AccruedPenalty.IsZero())
	assert.True(t, resp.Loan.AnnualInterestRate.Equal(dec("0.24")))

	original := h.loan(t, ref)
	assert.Equal(t, "22.69", original.AccruedPenalty.String())
	assert.Equal(t, "11105.28", original.OutstandingBalance.String())

	payments, err := h.svc.GetPayments(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	newPayments, err := h.svc.GetPayments(ctx, resp.Loan.LoanRef)
	require.NoError(t, err)
	assert.Empty(t, newPayments)
}

func TestRestructure_ExplicitPrincipalOverride(t *testing.T) {
	h := newHarness(t, DefaultPolicy())
	ref := h.activeLoan(t, applyRequest("5000")).Loan.LoanRef

	principal := dec("8000")
	rate := dec("0.12")
	frequency := domain.FrequencyWeekly
	resp, err := h.svc.Restructure(context.Background(), ref, &domain.RestructureRequest{
		NewPrincipal:  &principal,
		NewAnnualRate: &rate,
		NewFrequency:  &frequency,
		Reason:        "top-up",
	})
	require.NoError(t, err)

	assert.Equal(t, "8000", resp.Loan.PrincipalAmount.String())
	assert.Equal(t, domain.FrequencyWeekly, resp.Loan.Frequency)
	assert.Len(t, resp.Schedule, 52)
	assert.True(t, calculator.SumPrincipal(resp.Schedule).Equal(principal))
}

func TestRestructure_Rejections(t *testing.T) {
	h := newHarness(t, DefaultPolicy())
	ctx := context.Background()
	ref := h.activeLoan(t, applyRequest("5000")).Loan.LoanRef

	zero := dec("0")
	shortTenor := 1
	highRate := dec("0.9")

	tests := []struct {
		name string
		req  *domain.RestructureRequest
		err  error
	}{
		{name: "missing reason", req: &domain.RestructureRequest{}, err: customError.ErrRestructureReason},
		{name: "negative moratorium", req: &domain.RestructureRequest{MoratoriumMonths: -1, Reason: "x"}, err: customError.ErrInvalidRequest},
		{name: "zero principal", req: &domain.RestructureRequest{NewPrincipal: &zero, Reason: "x"}, err: customError.ErrInvalidLoanAmount},
		{name: "tenor out of bounds", req: &domain.RestructureRequest{NewTenorMonths: &shortTenor, Reason: "x"}, err: customError.ErrTenorOutOfBounds},
		{name: "rate out of bounds", req: &domain.RestructureRequest{NewAnnualRate: &highRate, Reason: "x"}, err: customError.ErrRateOutOfBounds},
		{name: "unknown loan", req: &domain.RestructureRequest{Reason: "x"}, err: customError.ErrLoanNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := ref
			if tt.err == customError.ErrLoanNotFound {
				target = "DLN-NOPE"
			}
			_, err := h.svc.Restructure(ctx, target, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Equal(t, domain.LoanStatusActive, h.loan(t, ref).Status)
	assert.Empty(t, h.events.Events())
}
