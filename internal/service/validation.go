package service

import (
	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/config"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// Policy is the lending policy applied to applications, payments and restructurings
type Policy struct {
	MinLoanAmount            decimal.Decimal
	MaxLoanAmount            decimal.Decimal
	MinTenorMonths           int
	MaxTenorMonths           int
	MinInterestRate          decimal.Decimal
	MaxInterestRate          decimal.Decimal
	MaxActiveLoansPerStation int
	DefaultPenaltyRate       decimal.Decimal
	DefaultGracePeriodDays   int
	CreditOverpayments       bool
}

// PolicyFromConfig reads the business section of the configuration
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MinLoanAmount:            cfg.GetMinLoanAmount(),
		MaxLoanAmount:            cfg.GetMaxLoanAmount(),
		MinTenorMonths:           cfg.Business.MinTenorMonths,
		MaxTenorMonths:           cfg.Business.MaxTenorMonths,
		MinInterestRate:          cfg.GetMinInterestRate(),
		MaxInterestRate:          cfg.GetMaxInterestRate(),
		MaxActiveLoansPerStation: cfg.Business.MaxActiveLoansPerStation,
		DefaultPenaltyRate:       cfg.GetDefaultPenaltyRate(),
		DefaultGracePeriodDays:   cfg.Business.DefaultGracePeriodDays,
		CreditOverpayments:       cfg.CreditOverpayments(),
	}
}

// DefaultPolicy mirrors the configuration defaults
func DefaultPolicy() Policy {
	return Policy{
		MinLoanAmount:            decimal.NewFromInt(1000),
		MaxLoanAmount:            decimal.NewFromInt(10000000),
		MinTenorMonths:           3,
		MaxTenorMonths:           60,
		MinInterestRate:          decimal.Zero,
		MaxInterestRate:          calculator.MaxAnnualRate,
		MaxActiveLoansPerStation: 3,
		DefaultPenaltyRate:       decimal.RequireFromString("0.02"),
		DefaultGracePeriodDays:   7,
	}
}

// ApplicationValidator enforces the policy bounds a loan must meet before it
// reaches pending_approval
type ApplicationValidator struct {
	policy Policy
}

func NewApplicationValidator(policy Policy) *ApplicationValidator {
	return &ApplicationValidator{policy: policy}
}

// ValidateApplication checks the requested amount and terms
func (v *ApplicationValidator) ValidateApplication(req *domain.ApplyLoanRequest) error {
	if req.StationID == "" || req.DealerID == "" {
		return customError.WrapInvalidRequest("station_id and dealer_id are required")
	}
	if !req.PrincipalAmount.IsPositive() {
		return customError.WrapInvalidLoanAmount(req.PrincipalAmount.String())
	}
	if req.PrincipalAmount.LessThan(v.policy.MinLoanAmount) {
		return customError.WrapAmountBelowMinimum(req.PrincipalAmount.String(), v.policy.MinLoanAmount.String())
	}
	if req.PrincipalAmount.GreaterThan(v.policy.MaxLoanAmount) {
		return customError.WrapAmountAboveMaximum(req.PrincipalAmount.String(), v.policy.MaxLoanAmount.String())
	}
	if req.PenaltyRate != nil && req.PenaltyRate.IsNegative() {
		return customError.WrapInvalidRequest("penalty rate cannot be negative")
	}
	if req.GracePeriodDays != nil && *req.GracePeriodDays < 0 {
		return customError.WrapInvalidRequest("grace period days cannot be negative")
	}
	return v.ValidateTerms(req.AnnualInterestRate, req.TenorMonths, req.Frequency, req.Method)
}

// ValidateTerms checks tenor and rate bounds and that frequency and method are known.
// Restructured loans go through this check but not the amount bounds.
func (v *ApplicationValidator) ValidateTerms(rate decimal.Decimal, tenorMonths int, frequency domain.Frequency, method domain.AmortizationMethod) error {
	if tenorMonths < v.policy.MinTenorMonths || tenorMonths > v.policy.MaxTenorMonths {
		return customError.WrapTenorOutOfBounds(tenorMonths, v.policy.MinTenorMonths, v.policy.MaxTenorMonths)
	}
	if rate.LessThan(v.policy.MinInterestRate) || rate.GreaterThan(v.policy.MaxInterestRate) {
		return customError.WrapRateOutOfBounds(rate.String(), v.policy.MinInterestRate.String(), v.policy.MaxInterestRate.String())
	}
	if _, err := calculator.PeriodsPerYear(frequency); err != nil {
		return err
	}
	if _, err := calculator.MethodFor(method); err != nil {
		return err
	}
	return nil
}

// CheckActiveLoans rejects a station that already holds the maximum number of active loans
func (v *ApplicationValidator) CheckActiveLoans(stationID string, active int) error {
	if active >= v.policy.MaxActiveLoansPerStation {
		return customError.WrapTooManyActiveLoans(stationID, active, v.policy.MaxActiveLoansPerStation)
	}
	return nil
}
