// Package calculator holds the engine's pure calculations: amortization
// schedules, the payment waterfall, penalty steps and risk scoring.
// Nothing here reads the clock or touches storage.
package calculator

import (
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// MaxAnnualRate is the highest annual rate the calculator accepts (50%)
var MaxAnnualRate = decimal.RequireFromString("0.5")

// ScheduleTerms are the loan terms a schedule is generated from
type ScheduleTerms struct {
	LoanRef     string
	Principal   decimal.Decimal
	AnnualRate  decimal.Decimal
	TenorMonths int
	Frequency   domain.Frequency
	Method      domain.AmortizationMethod
	StartDate   time.Time
}

// TermsOf extracts schedule terms from a loan
func TermsOf(loan *domain.Loan) ScheduleTerms {
	return ScheduleTerms{
		LoanRef:     loan.LoanRef,
		Principal:   loan.PrincipalAmount,
		AnnualRate:  loan.AnnualInterestRate,
		TenorMonths: loan.TenorMonths,
		Frequency:   loan.Frequency,
		Method:      loan.Method,
		StartDate:   loan.StartDate,
	}
}

// GenerateSchedule builds the installment schedule for the given terms.
// Identical terms always produce an identical schedule; ids and timestamps
// are left for the persistence layer to assign.
func GenerateSchedule(terms ScheduleTerms) ([]*domain.Installment, error) {
	if !terms.Principal.IsPositive() {
		return nil, customError.WrapInvalidLoanAmount(terms.Principal.String())
	}
	if terms.AnnualRate.IsNegative() || terms.AnnualRate.GreaterThan(MaxAnnualRate) {
		return nil, customError.WrapRateOutOfBounds(terms.AnnualRate.String(), "0", MaxAnnualRate.String())
	}
	if terms.TenorMonths < 1 {
		return nil, customError.WrapInvalidRequest("tenor must be at least one month")
	}

	method, err := MethodFor(terms.Method)
	if err != nil {
		return nil, err
	}
	n, err := NumberOfPeriods(terms.TenorMonths, terms.Frequency)
	if err != nil {
		return nil, err
	}
	rate, err := PeriodicRate(terms.AnnualRate, terms.Frequency)
	if err != nil {
		return nil, err
	}

	start := utils.StartOfDay(terms.StartDate)
	dueDates := make([]time.Time, n)
	for i := range dueDates {
		dueDates[i] = DueDate(start, terms.Frequency, i+1)
	}

	schedule := method.build(plan{
		principal:   terms.Principal,
		annualRate:  terms.AnnualRate,
		rate:        rate,
		tenorMonths: terms.TenorMonths,
		dueDates:    dueDates,
	})
	for _, inst := range schedule {
		inst.LoanRef = terms.LoanRef
	}
	return schedule, nil
}

// PeriodicPayment is the regular installment amount of a schedule
func PeriodicPayment(schedule []*domain.Installment) decimal.Decimal {
	if len(schedule) == 0 {
		return decimal.Zero
	}
	return schedule[0].TotalAmount
}

// MaturityDate is the due date of the final installment
func MaturityDate(schedule []*domain.Installment) *time.Time {
	if len(schedule) == 0 {
		return nil
	}
	due := schedule[len(schedule)-1].DueDate
	return &due
}

// SumPrincipal totals the principal components of a schedule
func SumPrincipal(schedule []*domain.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range schedule {
		total = total.Add(inst.PrincipalComponent)
	}
	return total
}

// SumInterest totals the interest components of a schedule
func SumInterest(schedule []*domain.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range schedule {
		total = total.Add(inst.InterestComponent)
	}
	return total
}
