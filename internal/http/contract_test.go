//go:build contract

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAPI_ContractCompliance validates that API responses match the documented envelopes.
func TestAPI_ContractCompliance(t *testing.T) {
	api := newAPI(t, repository.NewMemoryStore(), RouterConfig{})
	addr := api.createAddress(t)
	truck := api.createTruck(t, "CT-1", 10000)

	successEnvelope := func(t *testing.T, w *httptest.ResponseRecorder) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		assert.Contains(t, raw, "data")
		assert.Contains(t, raw, "request_id")
		assert.Contains(t, raw, "timestamp")
		assert.NotContains(t, raw, "error")
	}
	errorEnvelope := func(code string) func(*testing.T, *httptest.ResponseRecorder) {
		return func(t *testing.T, w *httptest.ResponseRecorder) {
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, code, resp.Error)
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.RequestID)
			assert.False(t, resp.Timestamp.IsZero())
		}
	}

	tests := []struct {
		name             string
		method           string
		path             string
		body             interface{}
		expectedStatus   int
		validateResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:             "GET /api/trucks/{id} 200",
			method:           http.MethodGet,
			path:             "/api/trucks/" + truck.ID,
			expectedStatus:   http.StatusOK,
			validateResponse: successEnvelope,
		},
		{
			name:             "GET /api/orders 200 list",
			method:           http.MethodGet,
			path:             "/api/orders",
			expectedStatus:   http.StatusOK,
			validateResponse: successEnvelope,
		},
		{
			name:             "POST /api/orders 400",
			method:           http.MethodPost,
			path:             "/api/orders",
			body:             dto.CreateOrderRequest{DestinationAddressID: addr.ID},
			expectedStatus:   http.StatusBadRequest,
			validateResponse: errorEnvelope("validation_error"),
		},
		{
			name:             "GET /api/trips/{id} 404",
			method:           http.MethodGet,
			path:             "/api/trips/missing",
			expectedStatus:   http.StatusNotFound,
			validateResponse: errorEnvelope("not_found"),
		},
		{
			name:             "POST /api/planning/optimize 422",
			method:           http.MethodPost,
			path:             "/api/planning/optimize",
			body:             dto.OptimizeRequest{Pallets: []dto.PalletRequest{palletReq("H", 20000, 100)}},
			expectedStatus:   http.StatusUnprocessableEntity,
			validateResponse: errorEnvelope("infeasible_allocation"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			tt.validateResponse(t, w)
		})
	}
}
