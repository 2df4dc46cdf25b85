package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccruePenalty(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	daysLate := func(d int) time.Time { return due.AddDate(0, 0, d) }

	tests := []struct {
		name          string
		asOf          time.Time
		grace         int
		stepsCharged  int
		expectedDPD   int
		expectedSteps int
		expectedNew   int
		expectedDelta string
	}{
		{name: "not yet due", asOf: daysLate(-3), grace: 7, expectedDelta: "0"},
		{name: "inside grace", asOf: daysLate(7), grace: 7, expectedDPD: 7, expectedDelta: "0"},
		{name: "past grace before first step", asOf: daysLate(20), grace: 7, expectedDPD: 20, expectedDelta: "0"},
		{name: "first step", asOf: daysLate(45), grace: 7, expectedDPD: 45, expectedSteps: 1, expectedNew: 1, expectedDelta: "56.74"},
		{name: "first step already charged", asOf: daysLate(50), grace: 7, stepsCharged: 1, expectedDPD: 50, expectedSteps: 1, expectedDelta: "0"},
		{name: "second step", asOf: daysLate(61), grace: 7, stepsCharged: 1, expectedDPD: 61, expectedSteps: 2, expectedNew: 1, expectedDelta: "56.74"},
		{name: "catches up missed runs", asOf: daysLate(95), grace: 7, expectedDPD: 95, expectedSteps: 3, expectedNew: 3, expectedDelta: "170.21"},
		{name: "month of grace then first step", asOf: daysLate(45), grace: 30, expectedDPD: 45, expectedSteps: 1, expectedNew: 1, expectedDelta: "56.74"},
		{name: "month of grace then two steps", asOf: daysLate(60), grace: 30, expectedDPD: 60, expectedSteps: 2, expectedNew: 2, expectedDelta: "113.47"},
		{name: "moratorium still running", asOf: daysLate(90), grace: 90, expectedDPD: 90, expectedDelta: "0"},
		{name: "moratorium over charges every step", asOf: daysLate(91), grace: 90, expectedDPD: 91, expectedSteps: 3, expectedNew: 3, expectedDelta: "170.21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AccruePenalty(PenaltyInput{
				NextPaymentDate:   due,
				AsOf:              tt.asOf,
				GracePeriodDays:   tt.grace,
				InstallmentAmount: dec("1134.72"),
				PenaltyRate:       dec("0.05"),
				StepsCharged:      tt.stepsCharged,
			})

			assert.Equal(t, tt.expectedDPD, result.DaysPastDue)
			assert.Equal(t, tt.expectedSteps, result.ChargeableSteps)
			assert.Equal(t, tt.expectedNew, result.NewSteps)
			assert.True(t, result.Delta.Equal(dec(tt.expectedDelta)), "delta %s", result.Delta)
			assert.Equal(t, result.Delta.IsPositive(), result.Accrued())
		})
	}
}

func TestAccruePenalty_RepeatedRunsAreIdempotent(t *testing.T) {
	in := PenaltyInput{
		NextPaymentDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		AsOf:              time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
		GracePeriodDays:   7,
		InstallmentAmount: dec("1000"),
		PenaltyRate:       dec("0.02"),
	}

	first := AccruePenalty(in)
	assert.True(t, first.Delta.Equal(dec("20")))

	in.StepsCharged = first.ChargeableSteps
	second := AccruePenalty(in)
	assert.False(t, second.Accrued())
	assert.Equal(t, first.ChargeableSteps, second.ChargeableSteps)
}
