package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[LoanStatus]map[LoanStatus]bool{
		LoanStatusDraft:           {LoanStatusPendingApproval: true},
		LoanStatusPendingApproval: {LoanStatusActive: true},
		LoanStatusActive: {
			LoanStatusActive:       true,
			LoanStatusCompleted:    true,
			LoanStatusDefaulted:    true,
			LoanStatusRestructured: true,
			LoanStatusSuspended:    true,
			LoanStatusCancelled:    true,
		},
	}

	for _, from := range AllLoanStatuses() {
		for _, to := range AllLoanStatuses() {
			expected := allowed[from][to]
			assert.Equal(t, expected, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestLoanStatus_IsValid(t *testing.T) {
	assert.True(t, LoanStatusActive.IsValid())
	assert.True(t, LoanStatusRestructured.IsValid())
	assert.False(t, LoanStatus("bogus").IsValid())
}

func TestRawJSON(t *testing.T) {
	var loan struct {
		Collateral RawJSON `json:"collateral,omitempty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"collateral":{"type":"tank","value":250000}}`), &loan))
	assert.JSONEq(t, `{"type":"tank","value":250000}`, string(loan.Collateral))

	var scanned RawJSON
	require.NoError(t, scanned.Scan(`[{"name":"guarantor"}]`))
	value, err := scanned.Value()
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"guarantor"}]`, value)

	require.NoError(t, scanned.Scan(nil))
	value, err = scanned.Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestLoan_Clone(t *testing.T) {
	original := &Loan{LoanRef: "DLN-1", Collateral: RawJSON(`{"a":1}`)}
	next := original.Clone()
	next.LoanRef = "DLN-2"
	next.Collateral[2] = 'b'

	assert.Equal(t, "DLN-1", original.LoanRef)
	assert.Equal(t, `{"a":1}`, string(original.Collateral))
}
