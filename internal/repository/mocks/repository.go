package mocks

import (
	"context"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByRef(ctx context.Context, loanRef string) (*domain.Loan, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByRefForUpdate(ctx context.Context, loanRef string) (*domain.Loan, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) CountActiveByStation(ctx context.Context, stationID string) (int, error) {
	args := m.Called(ctx, stationID)
	return args.Int(0), args.Error(1)
}

func (m *MockLoanRepository) ListByStation(ctx context.Context, stationID string, status domain.LoanStatus) ([]*domain.Loan, error) {
	args := m.Called(ctx, stationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListOverdue(ctx context.Context, asOf time.Time, afterRef string, limit int) ([]*domain.Loan, error) {
	args := m.Called(ctx, asOf, afterRef, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) CreateSchedule(ctx context.Context, installments []*domain.Installment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockLoanRepository) GetSchedule(ctx context.Context, loanRef string) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanRepository) UpdateInstallments(ctx context.Context, installments []*domain.Installment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error) {
	args := m.Called(ctx, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByLoanRef(ctx context.Context, loanRef string) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetBySourceReference(ctx context.Context, loanRef, sourceRef string) (*domain.Payment, error) {
	args := m.Called(ctx, loanRef, sourceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetTotalPaid(ctx context.Context, loanRef string) (decimal.Decimal, error) {
	args := m.Called(ctx, loanRef)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockStore hands its repository mocks to every transaction. An expectation
// on WithinTx returning an error makes the transaction fail before fn runs.
type MockStore struct {
	mock.Mock
	LoanRepo    *MockLoanRepository
	PaymentRepo *MockPaymentRepository
}

func NewMockStore() *MockStore {
	return &MockStore{
		LoanRepo:    &MockLoanRepository{},
		PaymentRepo: &MockPaymentRepository{},
	}
}

func (m *MockStore) Loans() repository.LoanRepository {
	return m.LoanRepo
}

func (m *MockStore) Payments() repository.PaymentRepository {
	return m.PaymentRepo
}

func (m *MockStore) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.LoanRepo, m.PaymentRepo)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// AssertExpectations checks the store and both repositories
func (m *MockStore) AssertExpectations(t mock.TestingT) bool {
	return m.Mock.AssertExpectations(t) &&
		m.LoanRepo.AssertExpectations(t) &&
		m.PaymentRepo.AssertExpectations(t)
}
