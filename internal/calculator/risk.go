package calculator

import (
	"math"
	"sort"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// RiskLevel is the default-risk classification of a loan
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// OnTimeToleranceDays is how far past a due date a payment still counts as on time
const OnTimeToleranceDays = 7

// RiskWeights are the points each factor contributes at its worst.
// They are policy, tuned through configuration.
type RiskWeights struct {
	DPDOver90   float64 `json:"dpd_over_90"`
	DPDOver30   float64 `json:"dpd_over_30"`
	DPDOver7    float64 `json:"dpd_over_7"`
	Efficiency  float64 `json:"efficiency"`
	Outstanding float64 `json:"outstanding"`
	Penalty     float64 `json:"penalty"`
}

// RiskBands are the lower score bounds of MEDIUM, HIGH and CRITICAL
type RiskBands struct {
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

// DefaultRiskWeights sum to 100 at the worst case
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		DPDOver90:   40,
		DPDOver30:   25,
		DPDOver7:    10,
		Efficiency:  25,
		Outstanding: 20,
		Penalty:     15,
	}
}

// DefaultRiskBands: LOW < 25 ≤ MEDIUM < 50 ≤ HIGH < 75 ≤ CRITICAL
func DefaultRiskBands() RiskBands {
	return RiskBands{Medium: 25, High: 50, Critical: 75}
}

// RiskInput is everything the scorer looks at
type RiskInput struct {
	Loan     *domain.Loan
	Schedule []*domain.Installment
	Payments []*domain.Payment
	AsOf     time.Time
}

// RiskAssessment is the scored result with the factors that produced it
type RiskAssessment struct {
	LoanRef           string     `json:"loan_ref"`
	Score             float64    `json:"score"`
	Level             RiskLevel  `json:"level"`
	DaysPastDue       int        `json:"days_past_due"`
	PaymentsMade      int        `json:"payments_made"`
	OnTimePayments    int        `json:"on_time_payments"`
	PaymentEfficiency float64    `json:"payment_efficiency"`
	OutstandingRatio  float64    `json:"outstanding_ratio"`
	PenaltyRatio      float64    `json:"penalty_ratio"`
	ProjectedMaturity *time.Time `json:"projected_maturity,omitempty"`
	AssessedAt        time.Time  `json:"assessed_at"`
}

// AssessRisk scores a loan from its delinquency, payment history and balances
func AssessRisk(in RiskInput, weights RiskWeights, bands RiskBands) RiskAssessment {
	loan := in.Loan
	assessment := RiskAssessment{
		LoanRef:    loan.LoanRef,
		AssessedAt: in.AsOf,
	}

	assessment.DaysPastDue = loan.DaysPastDue
	if loan.IsActive() && loan.NextPaymentDate != nil {
		if dpd := utils.DaysPastDue(*loan.NextPaymentDate, in.AsOf); dpd > assessment.DaysPastDue {
			assessment.DaysPastDue = dpd
		}
	}

	assessment.PaymentsMade, assessment.OnTimePayments = onTimePayments(in.Schedule, in.Payments)
	assessment.PaymentEfficiency = paymentEfficiency(assessment.PaymentsMade, assessment.OnTimePayments, in.Schedule, in.AsOf)

	if loan.PrincipalAmount.IsPositive() {
		assessment.OutstandingRatio = loan.OutstandingBalance.Div(loan.PrincipalAmount).InexactFloat64()
	}
	if loan.InstallmentAmount.IsPositive() {
		assessment.PenaltyRatio = loan.AccruedPenalty.Div(loan.InstallmentAmount).InexactFloat64()
	}

	score := dpdPoints(assessment.DaysPastDue, weights)
	score += weights.Efficiency * (1 - assessment.PaymentEfficiency)
	score += weights.Outstanding * capOne(assessment.OutstandingRatio)
	score += weights.Penalty * capOne(assessment.PenaltyRatio)

	assessment.Score = math.Round(score*100) / 100
	assessment.Level = levelFor(assessment.Score, bands)
	assessment.ProjectedMaturity = ProjectMaturity(loan, in.Schedule, in.AsOf)
	return assessment
}

func dpdPoints(dpd int, w RiskWeights) float64 {
	switch {
	case dpd > 90:
		return w.DPDOver90
	case dpd > 30:
		return w.DPDOver30
	case dpd > 7:
		return w.DPDOver7
	}
	return 0
}

func levelFor(score float64, bands RiskBands) RiskLevel {
	switch {
	case score >= bands.Critical:
		return RiskCritical
	case score >= bands.High:
		return RiskHigh
	case score >= bands.Medium:
		return RiskMedium
	}
	return RiskLow
}

func capOne(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// onTimePayments replays completed payments in date order against the
// schedule. Each payment is judged against the earliest installment still
// open when it was made, and counts as on time when made no later than that
// due date plus the tolerance. Payments made after the schedule is covered
// count as on time.
func onTimePayments(schedule []*domain.Installment, payments []*domain.Payment) (made, onTime int) {
	var completed []*domain.Payment
	for _, p := range payments {
		if p.Status == domain.PaymentStatusCompleted {
			completed = append(completed, p)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].PaymentDate.Before(completed[j].PaymentDate)
	})

	open := 0
	credited := decimal.Zero // toward schedule[open]
	for _, p := range completed {
		made++
		if open >= len(schedule) {
			onTime++
			continue
		}
		deadline := utils.StartOfDay(schedule[open].DueDate).AddDate(0, 0, OnTimeToleranceDays)
		if !utils.StartOfDay(p.PaymentDate).After(deadline) {
			onTime++
		}

		credited = credited.Add(scheduleCredit(p))
		for open < len(schedule) && !credited.LessThan(schedule[open].TotalAmount) {
			credited = credited.Sub(schedule[open].TotalAmount)
			open++
		}
	}
	return made, onTime
}

// scheduleCredit is the part of a payment that went to installments
func scheduleCredit(p *domain.Payment) decimal.Decimal {
	credit := p.Amount.Sub(p.PenaltyPortion).Sub(p.OverpaymentPortion)
	if credit.IsNegative() {
		return decimal.Zero
	}
	return credit
}

// paymentEfficiency is on-time ÷ made. With no payments it is 1 until the
// first installment falls due, and 0 after.
func paymentEfficiency(made, onTime int, schedule []*domain.Installment, asOf time.Time) float64 {
	if made > 0 {
		return float64(onTime) / float64(made)
	}
	for _, inst := range schedule {
		if utils.IsDateOverdue(inst.DueDate, asOf) {
			return 0
		}
	}
	return 1
}

// ProjectMaturity estimates when the loan will actually be retired at the
// borrower's observed pace: the share of the amount due so far that has been
// paid. A borrower on or ahead of schedule matures as scheduled; one with no
// payments against a due amount cannot be projected (nil).
func ProjectMaturity(loan *domain.Loan, schedule []*domain.Installment, asOf time.Time) *time.Time {
	if loan.Status == domain.LoanStatusCompleted {
		return loan.CompletionDate
	}
	scheduled := MaturityDate(schedule)
	if scheduled == nil {
		return loan.MaturityDate
	}

	unpaid := 0
	expected, paid := 0.0, 0.0
	for _, inst := range schedule {
		if !inst.Paid {
			unpaid++
		}
		paid += inst.PaidAmount.InexactFloat64()
		if !utils.StartOfDay(inst.DueDate).After(utils.StartOfDay(asOf)) {
			expected += inst.TotalAmount.InexactFloat64()
		}
	}
	if unpaid == 0 || expected == 0 {
		return scheduled
	}

	pace := paid / expected
	if pace >= 1 {
		return scheduled
	}
	if pace <= 0 {
		return nil
	}

	periods := int(math.Ceil(float64(unpaid) / pace))
	projected := DueDate(utils.StartOfDay(asOf), loan.Frequency, periods)
	if projected.Before(*scheduled) {
		return scheduled
	}
	return &projected
}
