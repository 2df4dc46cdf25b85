package mocks

import (
	"context"

	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) Apply(ctx context.Context, req *domain.ApplyLoanRequest) (*domain.Loan, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) Approve(ctx context.Context, loanRef string, req *domain.ApproveLoanRequest) (*domain.LoanResponse, error) {
	args := m.Called(ctx, loanRef, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanResponse), args.Error(1)
}

func (m *MockLoanService) ChangeStatus(ctx context.Context, loanRef string, req *domain.ChangeStatusRequest) (*domain.Loan, error) {
	args := m.Called(ctx, loanRef, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanRef string) (*domain.LoanResponse, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanResponse), args.Error(1)
}

func (m *MockLoanService) GetSchedule(ctx context.Context, loanRef string) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanService) GetPayments(ctx context.Context, loanRef string) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockLoanService) ListStationLoans(ctx context.Context, stationID string, status domain.LoanStatus) ([]*domain.Loan, error) {
	args := m.Called(ctx, stationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanService) AssessRisk(ctx context.Context, loanRef string) (*calculator.RiskAssessment, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calculator.RiskAssessment), args.Error(1)
}

func (m *MockLoanService) ProcessPayment(ctx context.Context, req *domain.MakePaymentRequest) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLoanService) ReversePayment(ctx context.Context, paymentRef string, req *domain.ReversePaymentRequest) (*domain.PaymentResponse, error) {
	args := m.Called(ctx, paymentRef, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResponse), args.Error(1)
}

func (m *MockLoanService) Restructure(ctx context.Context, loanRef string, req *domain.RestructureRequest) (*domain.RestructureResponse, error) {
	args := m.Called(ctx, loanRef, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RestructureResponse), args.Error(1)
}

func (m *MockLoanService) AccruePenalty(ctx context.Context, loanRef string) (*service.PenaltyOutcome, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PenaltyOutcome), args.Error(1)
}

type MockDelinquencyRunner struct {
	mock.Mock
}

func (m *MockDelinquencyRunner) Run(ctx context.Context) (*service.RunReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RunReport), args.Error(1)
}

// NewMockLoanService creates a new mock loan service instance
func NewMockLoanService() *MockLoanService {
	return &MockLoanService{}
}
