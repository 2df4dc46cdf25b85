package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segyhp/dealer-loan-engine/internal/handler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{ err error }

func (f fakeStore) Ping(_ context.Context) error { return f.err }

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		store          fakeStore
		expectedStatus int
		expectedCheck  string
	}{
		{name: "database reachable", store: fakeStore{}, expectedStatus: http.StatusOK, expectedCheck: "ok"},
		{name: "database down", store: fakeStore{err: errors.New("dial tcp: refused")}, expectedStatus: http.StatusServiceUnavailable, expectedCheck: "failed: dial tcp: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.store, nil, 0)
			w := httptest.NewRecorder()
			h.Ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body struct {
				Data handler.HealthStatus `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedCheck, body.Data.Checks["database"])
			assert.NotContains(t, body.Data.Checks, "redis")
		})
	}
}
