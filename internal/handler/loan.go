package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/segyhp/dealer-loan-engine/internal/calculator"
	"github.com/segyhp/dealer-loan-engine/internal/domain"
	"github.com/segyhp/dealer-loan-engine/internal/service"
	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"
	"github.com/segyhp/dealer-loan-engine/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// LoanService is the part of service.LoanService the HTTP surface drives
type LoanService interface {
	Apply(ctx context.Context, req *domain.ApplyLoanRequest) (*domain.Loan, error)
	Approve(ctx context.Context, loanRef string, req *domain.ApproveLoanRequest) (*domain.LoanResponse, error)
	ChangeStatus(ctx context.Context, loanRef string, req *domain.ChangeStatusRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanRef string) (*domain.LoanResponse, error)
	GetSchedule(ctx context.Context, loanRef string) ([]*domain.Installment, error)
	GetPayments(ctx context.Context, loanRef string) ([]*domain.Payment, error)
	ListStationLoans(ctx context.Context, stationID string, status domain.LoanStatus) ([]*domain.Loan, error)
	AssessRisk(ctx context.Context, loanRef string) (*calculator.RiskAssessment, error)
	ProcessPayment(ctx context.Context, req *domain.MakePaymentRequest) (*domain.PaymentResponse, error)
	ReversePayment(ctx context.Context, paymentRef string, req *domain.ReversePaymentRequest) (*domain.PaymentResponse, error)
	Restructure(ctx context.Context, loanRef string, req *domain.RestructureRequest) (*domain.RestructureResponse, error)
	AccruePenalty(ctx context.Context, loanRef string) (*service.PenaltyOutcome, error)
}

// DelinquencyRunner triggers one delinquency pass
type DelinquencyRunner interface {
	Run(ctx context.Context) (*service.RunReport, error)
}

type LoanHandler struct {
	service     LoanService
	delinquency DelinquencyRunner
	validator   *validator.Validate
	log         *slog.Logger
}

func NewLoanHandler(service LoanService, delinquency DelinquencyRunner, log *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service:     service,
		delinquency: delinquency,
		validator:   newValidator(),
		log:         log,
	}
}

// newValidator validates decimals by their float value so numeric tags apply
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Register mounts the loan routes on r
func (h *LoanHandler) Register(r *mux.Router) {
	r.HandleFunc("/loans", h.Apply).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanRef}", h.GetLoan).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanRef}/approve", h.Approve).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanRef}/status", h.ChangeStatus).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanRef}/schedule", h.GetSchedule).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanRef}/payments", h.GetPayments).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanRef}/payments", h.MakePayment).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanRef}/restructure", h.Restructure).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanRef}/penalty", h.AccruePenalty).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanRef}/risk", h.AssessRisk).Methods(http.MethodGet)
	r.HandleFunc("/payments/{paymentRef}/reverse", h.ReversePayment).Methods(http.MethodPost)
	r.HandleFunc("/stations/{stationId}/loans", h.ListStationLoans).Methods(http.MethodGet)
	r.HandleFunc("/delinquency/run", h.RunDelinquency).Methods(http.MethodPost)
}

// Apply handles POST /loans
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req domain.ApplyLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.service.Apply(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, loan)
}

// GetLoan handles GET /loans/{loanRef}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetLoan(r.Context(), mux.Vars(r)["loanRef"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, resp)
}

// Approve handles POST /loans/{loanRef}/approve
func (h *LoanHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req domain.ApproveLoanRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Approve(r.Context(), mux.Vars(r)["loanRef"], &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, resp)
}

// ChangeStatus handles POST /loans/{loanRef}/status
func (h *LoanHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangeStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.service.ChangeStatus(r.Context(), mux.Vars(r)["loanRef"], &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, loan)
}

// GetSchedule handles GET /loans/{loanRef}/schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanRef := mux.Vars(r)["loanRef"]
	schedule, err := h.service.GetSchedule(r.Context(), loanRef)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, domain.ScheduleResponse{LoanRef: loanRef, Schedule: schedule})
}

// GetPayments handles GET /loans/{loanRef}/payments
func (h *LoanHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.GetPayments(r.Context(), mux.Vars(r)["loanRef"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payments)
}

// MakePayment handles POST /loans/{loanRef}/payments
func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.MakePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.LoanRef = mux.Vars(r)["loanRef"]

	resp, err := h.service.ProcessPayment(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, resp)
}

// ReversePayment handles POST /payments/{paymentRef}/reverse
func (h *LoanHandler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.ReversePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.ReversePayment(r.Context(), mux.Vars(r)["paymentRef"], &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, resp)
}

// Restructure handles POST /loans/{loanRef}/restructure
func (h *LoanHandler) Restructure(w http.ResponseWriter, r *http.Request) {
	var req domain.RestructureRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Restructure(r.Context(), mux.Vars(r)["loanRef"], &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, resp)
}

// AccruePenalty handles POST /loans/{loanRef}/penalty
func (h *LoanHandler) AccruePenalty(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.AccruePenalty(r.Context(), mux.Vars(r)["loanRef"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"loan":          outcome.Loan,
		"days_past_due": outcome.Result.DaysPastDue,
		"penalty_added": outcome.Result.Delta,
		"steps_charged": outcome.Result.ChargeableSteps,
	})
}

// AssessRisk handles GET /loans/{loanRef}/risk
func (h *LoanHandler) AssessRisk(w http.ResponseWriter, r *http.Request) {
	assessment, err := h.service.AssessRisk(r.Context(), mux.Vars(r)["loanRef"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, assessment)
}

// ListStationLoans handles GET /stations/{stationId}/loans?status=
func (h *LoanHandler) ListStationLoans(w http.ResponseWriter, r *http.Request) {
	status := domain.LoanStatus(r.URL.Query().Get("status"))
	loans, err := h.service.ListStationLoans(r.Context(), mux.Vars(r)["stationId"], status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, loans)
}

// RunDelinquency handles POST /delinquency/run
func (h *LoanHandler) RunDelinquency(w http.ResponseWriter, r *http.Request) {
	report, err := h.delinquency.Run(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, report)
}

// decode reads and validates a JSON body, writing a 400 when it cannot
func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", customError.WrapInvalidRequest(err.Error()))
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", customError.WrapInvalidRequest(validationMessage(err)))
		return false
	}
	return true
}

func (h *LoanHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if response.StatusFor(err) == http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	response.ErrorFrom(w, err)
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
