package calculator

import (
	"math"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// PeriodsPerYear returns how many installments a frequency produces per year
func PeriodsPerYear(f domain.Frequency) (int, error) {
	switch f {
	case domain.FrequencyDaily:
		return 365, nil
	case domain.FrequencyWeekly:
		return 52, nil
	case domain.FrequencyBiWeekly:
		return 26, nil
	case domain.FrequencyMonthly:
		return 12, nil
	}
	return 0, customError.WrapUnsupportedFrequency(string(f))
}

// PeriodicRate converts an annual rate (as a fraction) into the per-period rate
func PeriodicRate(annualRate decimal.Decimal, f domain.Frequency) (decimal.Decimal, error) {
	ppy, err := PeriodsPerYear(f)
	if err != nil {
		return decimal.Zero, err
	}
	return annualRate.Div(decimal.NewFromInt(int64(ppy))), nil
}

// NumberOfPeriods is tenor_months × periods_per_year / 12, rounded up, never below one
func NumberOfPeriods(tenorMonths int, f domain.Frequency) (int, error) {
	ppy, err := PeriodsPerYear(f)
	if err != nil {
		return 0, err
	}
	n := (tenorMonths*ppy + 11) / 12
	if n < 1 {
		n = 1
	}
	return n, nil
}

// DueDate returns the date `periods` steps of frequency f after start
func DueDate(start time.Time, f domain.Frequency, periods int) time.Time {
	switch f {
	case domain.FrequencyDaily:
		return start.AddDate(0, 0, periods)
	case domain.FrequencyWeekly:
		return start.AddDate(0, 0, 7*periods)
	case domain.FrequencyBiWeekly:
		return start.AddDate(0, 0, 14*periods)
	default:
		return utils.AddMonths(start, periods)
	}
}

// plan carries everything a Method needs to lay out installments
type plan struct {
	principal   decimal.Decimal
	annualRate  decimal.Decimal
	rate        decimal.Decimal // per period
	tenorMonths int
	dueDates    []time.Time
}

func (p plan) periods() int {
	return len(p.dueDates)
}

// Method splits each installment between principal and interest.
// It is resolved once, from the loan's amortization method, when a schedule
// is generated or a payment is allocated.
type Method interface {
	Name() domain.AmortizationMethod
	// InterestBasis is the balance the current period's interest accrues on.
	InterestBasis(principal, outstanding decimal.Decimal) decimal.Decimal
	build(p plan) []*domain.Installment
}

// MethodFor resolves the strategy for an amortization method
func MethodFor(m domain.AmortizationMethod) (Method, error) {
	switch m {
	case domain.MethodReducingBalance, "":
		return reducingBalance{}, nil
	case domain.MethodFlatRate:
		return flatRate{}, nil
	case domain.MethodInterestOnly:
		return interestOnly{}, nil
	}
	return nil, customError.WrapUnsupportedMethod(string(m))
}

type reducingBalance struct{}

func (reducingBalance) Name() domain.AmortizationMethod { return domain.MethodReducingBalance }

func (reducingBalance) InterestBasis(_, outstanding decimal.Decimal) decimal.Decimal {
	return outstanding
}

// build uses the annuity formula
//
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// computed in float64 for the power and rounded back to a decimal amount.
// The last installment takes whatever principal is left. When the rounded
// payment would retire the balance before the last period, the payment is
// rounded down instead so the final installment keeps a positive remainder.
func (reducingBalance) build(p plan) []*domain.Installment {
	n := p.periods()
	if p.rate.IsZero() {
		return equalPrincipal(p)
	}

	r := p.rate.InexactFloat64()
	factor := math.Pow(1+r, float64(n))
	level := decimal.NewFromFloat(p.principal.InexactFloat64() * r * factor / (factor - 1))

	if schedule, ok := annuity(p, utils.RoundCurrency(level)); ok {
		return schedule
	}
	schedule, _ := annuity(p, level.RoundDown(utils.CurrencyPlaces))
	return schedule
}

// annuity lays out a level payment. ok is false when the balance reaches
// zero before the final period.
func annuity(p plan, payment decimal.Decimal) (schedule []*domain.Installment, ok bool) {
	n := p.periods()
	schedule = make([]*domain.Installment, 0, n)
	ok = true
	remaining := p.principal
	for period := 1; period <= n; period++ {
		interest := utils.RoundCurrency(remaining.Mul(p.rate))
		principalPart := payment.Sub(interest)
		if period == n || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		remaining = remaining.Sub(principalPart)
		if period < n && !remaining.IsPositive() {
			ok = false
		}
		schedule = append(schedule, newInstallment(period, p.dueDates[period-1], principalPart, interest, remaining))
	}
	return schedule, ok
}

// equalPrincipal is the interest-free degenerate case. The share is rounded
// down so the last installment absorbs the remainder.
func equalPrincipal(p plan) []*domain.Installment {
	n := p.periods()
	per := p.principal.Div(decimal.NewFromInt(int64(n))).RoundDown(utils.CurrencyPlaces)

	schedule := make([]*domain.Installment, 0, n)
	remaining := p.principal
	for period := 1; period <= n; period++ {
		principalPart := per
		if period == n {
			principalPart = remaining
		}
		remaining = remaining.Sub(principalPart)
		schedule = append(schedule, newInstallment(period, p.dueDates[period-1], principalPart, decimal.Zero, remaining))
	}
	return schedule
}

type flatRate struct{}

func (flatRate) Name() domain.AmortizationMethod { return domain.MethodFlatRate }

func (flatRate) InterestBasis(principal, _ decimal.Decimal) decimal.Decimal {
	return principal
}

// build charges interest on the original principal for the whole tenor and
// spreads it evenly, alongside an even principal split. Both shares are
// rounded down and the last installment absorbs the remainders.
func (flatRate) build(p plan) []*domain.Installment {
	n := p.periods()
	count := decimal.NewFromInt(int64(n))
	totalInterest := utils.RoundCurrency(p.principal.Mul(p.annualRate).Mul(decimal.NewFromInt(int64(p.tenorMonths))).Div(decimal.NewFromInt(12)))
	interestPer := totalInterest.Div(count).RoundDown(utils.CurrencyPlaces)
	principalPer := p.principal.Div(count).RoundDown(utils.CurrencyPlaces)

	schedule := make([]*domain.Installment, 0, n)
	remaining := p.principal
	interestLeft := totalInterest
	for period := 1; period <= n; period++ {
		principalPart, interest := principalPer, interestPer
		if period == n || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		if period == n || interest.GreaterThan(interestLeft) {
			interest = interestLeft
		}
		remaining = remaining.Sub(principalPart)
		interestLeft = interestLeft.Sub(interest)
		schedule = append(schedule, newInstallment(period, p.dueDates[period-1], principalPart, interest, remaining))
	}
	return schedule
}

type interestOnly struct{}

func (interestOnly) Name() domain.AmortizationMethod { return domain.MethodInterestOnly }

func (interestOnly) InterestBasis(_, outstanding decimal.Decimal) decimal.Decimal {
	return outstanding
}

// build collects interest every period and the whole principal at maturity
func (interestOnly) build(p plan) []*domain.Installment {
	n := p.periods()
	interest := utils.RoundCurrency(p.principal.Mul(p.rate))

	schedule := make([]*domain.Installment, 0, n)
	for period := 1; period <= n; period++ {
		principalPart, remaining := decimal.Zero, p.principal
		if period == n {
			principalPart, remaining = p.principal, decimal.Zero
		}
		schedule = append(schedule, newInstallment(period, p.dueDates[period-1], principalPart, interest, remaining))
	}
	return schedule
}

func newInstallment(number int, due time.Time, principal, interest, balanceAfter decimal.Decimal) *domain.Installment {
	return &domain.Installment{
		InstallmentNumber:  number,
		DueDate:            due,
		PrincipalComponent: principal,
		InterestComponent:  interest,
		TotalAmount:        principal.Add(interest),
		BalanceAfter:       balanceAfter,
		PaidAmount:         decimal.Zero,
	}
}
