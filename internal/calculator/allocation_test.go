package calculator

import (
	"testing"

	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_Waterfall(t *testing.T) {
	base := AllocationInput{
		OutstandingBalance: dec("10000"),
		AccruedPenalty:     dec("50"),
		PeriodicRate:       dec("0.01"),
	}

	tests := []struct {
		name        string
		input       AllocationInput
		amount      string
		penalty     string
		interest    string
		principal   string
		overpayment string
	}{
		{name: "covers penalty and part of interest", input: base, amount: "120", penalty: "50", interest: "70", principal: "0", overpayment: "0"},
		{name: "reaches principal", input: base, amount: "1200", penalty: "50", interest: "100", principal: "1050", overpayment: "0"},
		{name: "smaller than penalty", input: base, amount: "20", penalty: "20", interest: "0", principal: "0", overpayment: "0"},
		{name: "exact payoff", input: base, amount: "10150", penalty: "50", interest: "100", principal: "10000", overpayment: "0"},
		{name: "beyond payoff", input: base, amount: "10200", penalty: "50", interest: "100", principal: "10000", overpayment: "50"},
		{
			name: "interest already partly collected",
			input: AllocationInput{
				OutstandingBalance:     dec("10000"),
				PeriodicRate:           dec("0.01"),
				InterestPaidThisPeriod: dec("30"),
			},
			amount: "500", penalty: "0", interest: "70", principal: "430", overpayment: "0",
		},
		{
			name: "flat rate accrues on original principal",
			input: AllocationInput{
				OutstandingBalance: dec("5000"),
				PeriodicRate:       dec("0.02"),
				InterestBasis:      dec("12000"),
			},
			amount: "1240", penalty: "0", interest: "240", principal: "1000", overpayment: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := dec(tt.amount)
			alloc, err := Allocate(tt.input, amount)
			require.NoError(t, err)

			assert.True(t, alloc.Penalty.Equal(dec(tt.penalty)), "penalty %s", alloc.Penalty)
			assert.True(t, alloc.Interest.Equal(dec(tt.interest)), "interest %s", alloc.Interest)
			assert.True(t, alloc.Principal.Equal(dec(tt.principal)), "principal %s", alloc.Principal)
			assert.True(t, alloc.Overpayment.Equal(dec(tt.overpayment)), "overpayment %s", alloc.Overpayment)
			assert.True(t, alloc.Total().Equal(amount))
			assert.True(t, alloc.Principal.LessThanOrEqual(tt.input.OutstandingBalance))
		})
	}
}

func TestAllocate_InvalidAmount(t *testing.T) {
	in := AllocationInput{OutstandingBalance: dec("1000"), PeriodicRate: dec("0.01")}

	for _, amount := range []decimal.Decimal{decimal.Zero, dec("-5")} {
		_, err := Allocate(in, amount)
		require.Error(t, err)
		assert.Equal(t, customError.ErrCodeInvalidPaymentAmount, customError.CodeOf(err))
	}
}

func TestAllocate_NegativeState(t *testing.T) {
	_, err := Allocate(AllocationInput{OutstandingBalance: dec("-1")}, dec("10"))
	assert.ErrorIs(t, err, customError.ErrInvalidRequest)

	_, err = Allocate(AllocationInput{OutstandingBalance: dec("10"), AccruedPenalty: dec("-1")}, dec("10"))
	assert.ErrorIs(t, err, customError.ErrInvalidRequest)
}

func TestInterestDue(t *testing.T) {
	t.Run("rounds to the minor unit", func(t *testing.T) {
		due := InterestDue(AllocationInput{OutstandingBalance: dec("1234.56"), PeriodicRate: dec("0.015")})
		assert.True(t, due.Equal(dec("18.52")), "got %s", due)
	})

	t.Run("never negative", func(t *testing.T) {
		due := InterestDue(AllocationInput{
			OutstandingBalance:     dec("1000"),
			PeriodicRate:           dec("0.01"),
			InterestPaidThisPeriod: dec("25"),
		})
		assert.True(t, due.IsZero())
	})

	t.Run("nothing owed once principal is retired", func(t *testing.T) {
		due := InterestDue(AllocationInput{OutstandingBalance: decimal.Zero, PeriodicRate: dec("0.01"), InterestBasis: dec("12000")})
		assert.True(t, due.IsZero())
	})
}

func TestTotalDue(t *testing.T) {
	total := TotalDue(AllocationInput{
		OutstandingBalance: dec("10000"),
		AccruedPenalty:     dec("50"),
		PeriodicRate:       dec("0.01"),
	})
	assert.True(t, total.Equal(dec("10150")))
}
