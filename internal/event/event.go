// Package event carries loan lifecycle notifications to downstream consumers.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/dealer-loan-engine/internal/domain"
)

// Type names a lifecycle event
type Type string

const (
	LoanCreated       Type = "loan.created"
	LoanApproved      Type = "loan.approved"
	PaymentProcessed  Type = "loan.payment.processed"
	PaymentReversed   Type = "loan.payment.reversed"
	LoanRestructured  Type = "loan.restructured"
	PenaltyCalculated Type = "loan.penalty.calculated"
	StatusChanged     Type = "loan.status.changed"
)

// Event is one notification about a loan
type Event struct {
	ID         uuid.UUID                  `json:"id"`
	Type       Type                       `json:"type"`
	LoanRef    string                     `json:"loan_ref"`
	TenantID   string                     `json:"tenant_id,omitempty"`
	StationID  string                     `json:"station_id,omitempty"`
	DealerID   string                     `json:"dealer_id,omitempty"`
	Status     domain.LoanStatus          `json:"status"`
	OccurredAt time.Time                  `json:"occurred_at"`
	Amounts    map[string]decimal.Decimal `json:"amounts,omitempty"`
	Attributes map[string]string          `json:"attributes,omitempty"`
}

// New creates an event for loan at the given instant
func New(t Type, loan *domain.Loan, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		LoanRef:    loan.LoanRef,
		TenantID:   loan.TenantID,
		StationID:  loan.StationID,
		DealerID:   loan.DealerID,
		Status:     loan.Status,
		OccurredAt: at,
	}
}

// WithAmount attaches a named money amount
func (e Event) WithAmount(name string, amount decimal.Decimal) Event {
	amounts := make(map[string]decimal.Decimal, len(e.Amounts)+1)
	for k, v := range e.Amounts {
		amounts[k] = v
	}
	amounts[name] = amount
	e.Amounts = amounts
	return e
}

// WithAttribute attaches a named string attribute
func (e Event) WithAttribute(name, value string) Event {
	attrs := make(map[string]string, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs[name] = value
	e.Attributes = attrs
	return e
}

// Payload is the JSON encoding published by the sinks
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Sink receives events after the change they describe has been committed
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
