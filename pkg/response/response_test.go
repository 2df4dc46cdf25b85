package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	customError "github.com/segyhp/dealer-loan-engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{customError.WrapInvalidLoanAmount("0"), http.StatusBadRequest},
		{customError.WrapLoanNotFound("DLN-1"), http.StatusNotFound},
		{customError.WrapLoanNotActive("DLN-1", "completed"), http.StatusConflict},
		{customError.WrapPaymentExceedsDue("100", "50"), http.StatusUnprocessableEntity},
		{fmt.Errorf("apply: %w", customError.WrapInvalidTransition("DLN-1", "draft", "active")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFor(tt.err))
		})
	}
}

func TestErrorFrom(t *testing.T) {
	decode := func(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	w := httptest.NewRecorder()
	ErrorFrom(w, customError.WrapLoanNotFound("DLN-1"))
	body := decode(t, w)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, customError.ErrCodeLoanNotFound, body.Code)
	assert.Contains(t, body.Message, "DLN-1")
	assert.False(t, body.Success)

	w = httptest.NewRecorder()
	ErrorFrom(w, customError.WrapDatabaseError(errors.New("password authentication failed")))
	body = decode(t, w)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, body.Error)

	w = httptest.NewRecorder()
	ErrorFrom(w, customError.WrapLockUnavailable("DLN-1", errors.New("timeout")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/loans", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
