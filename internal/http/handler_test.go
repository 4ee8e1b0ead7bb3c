//go:build !integration

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, cfg RouterConfig) *testAPI {
	t.Helper()
	return newAPI(t, repository.NewMemoryStore(), cfg)
}

// TestOrderHandler tests order registration, reads and edits.
func TestOrderHandler(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)
	order := api.createOrder(t, addr.ID, palletReq("P1", 800, 140), palletReq("P2", 600, 120))

	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		expectedStatus int
		validate       func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:           "get order",
			method:         http.MethodGet,
			path:           "/api/orders/" + order.ID,
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data[model.Order](t, w)
				assert.Equal(t, model.OrderDraft, got.Status)
				assert.Equal(t, 1400.0, got.CargoWeight)
				assert.Len(t, got.Pallets, 2)
			},
		},
		{
			name:           "unknown order",
			method:         http.MethodGet,
			path:           "/api/orders/missing",
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "not_found", errorBody(t, w).Error)
			},
		},
		{
			name:           "list orders",
			method:         http.MethodGet,
			path:           "/api/orders?status=DRAFT",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				page := data[struct {
					Items []model.Order `json:"items"`
					Total int64         `json:"total"`
					Limit int           `json:"limit"`
				}](t, w)
				assert.Len(t, page.Items, 1)
				assert.Equal(t, int64(1), page.Total)
				assert.Equal(t, defaultPageSize, page.Limit)
			},
		},
		{
			name:           "invalid status filter",
			method:         http.MethodGet,
			path:           "/api/orders?status=LOST",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing pallets",
			method:         http.MethodPost,
			path:           "/api/orders",
			body:           dto.CreateOrderRequest{DestinationAddressID: addr.ID},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				resp := errorBody(t, w)
				assert.Equal(t, "validation_error", resp.Error)
				assert.Contains(t, resp.Details, "pallets")
			},
		},
		{
			name:   "pallet id with inner whitespace",
			method: http.MethodPost,
			path:   "/api/orders",
			body: dto.CreateOrderRequest{
				Pallets:              []dto.PalletRequest{palletReq("P 1", 100, 100)},
				DestinationAddressID: addr.ID,
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "duplicate pallet ids",
			method: http.MethodPost,
			path:   "/api/orders",
			body: dto.CreateOrderRequest{
				Pallets:              []dto.PalletRequest{palletReq("D1", 100, 100), palletReq("D1", 100, 100)},
				DestinationAddressID: addr.ID,
			},
			expectedStatus: http.StatusConflict,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "duplicate_id", errorBody(t, w).Details["reason"])
			},
		},
		{
			name:           "malformed body",
			method:         http.MethodPost,
			path:           "/api/orders",
			body:           `{"pallets":`,
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "invalid_request", errorBody(t, w).Error)
			},
		},
		{
			name:           "unassigned pallets",
			method:         http.MethodGet,
			path:           "/api/orders/" + order.ID + "/pallets/unassigned",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Len(t, data[[]model.Pallet](t, w), 2)
			},
		},
		{
			name:           "update notes",
			method:         http.MethodPut,
			path:           "/api/orders/" + order.ID,
			body:           map[string]string{"notes": "fragile"},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "fragile", data[model.Order](t, w).Notes)
			},
		},
		{
			name:           "events",
			method:         http.MethodGet,
			path:           "/api/orders/" + order.ID + "/events",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.validate != nil {
				tt.validate(t, w)
			}
		})
	}
}

// TestOrderHandler_CancelAndDelete tests the closing transitions.
func TestOrderHandler_CancelAndDelete(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)
	order := api.createOrder(t, addr.ID, palletReq("P1", 800, 140))

	w := api.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.OrderCancelled, data[model.Order](t, w).Status)

	w = api.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", errorBody(t, w).Error)

	w = api.do(t, http.MethodDelete, "/api/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/api/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestTripHandler_Lifecycle tests booking, conflicts and the trip state machine.
func TestTripHandler_Lifecycle(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)
	truck := api.createTruck(t, "AB-1", 10000)
	order := api.createOrder(t, addr.ID, palletReq("P1", 800, 140), palletReq("P2", 600, 120))

	w := api.do(t, http.MethodPost, "/api/trips", dto.CreateTripRequest{
		OrderID:   order.ID,
		TruckID:   truck.ID,
		PalletIDs: []string{"P1"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trip := data[model.Trip](t, w)
	assert.Equal(t, model.TripPlanned, trip.Status)
	assert.Equal(t, 800.0, trip.Weight)
	assert.Positive(t, trip.EstimatedFuel)

	t.Run("truck busy", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/trips", dto.CreateTripRequest{
			OrderID:   order.ID,
			TruckID:   truck.ID,
			PalletIDs: []string{"P2"},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		resp := errorBody(t, w)
		assert.Equal(t, "truck_busy", resp.Details["reason"])
		assert.Equal(t, trip.ID, resp.Details["trip_id"])
	})

	t.Run("pallet already assigned", func(t *testing.T) {
		other := api.createTruck(t, "AB-2", 10000)
		w := api.do(t, http.MethodPost, "/api/trips", dto.CreateTripRequest{
			OrderID:   order.ID,
			TruckID:   other.ID,
			PalletIDs: []string{"P1"},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "pallet_already_assigned", errorBody(t, w).Details["reason"])
	})

	t.Run("list by order", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/trips?order_id="+order.ID+"&status=PLANNED,IN_PROGRESS", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		page := data[struct {
			Items []model.Trip `json:"items"`
		}](t, w)
		assert.Len(t, page.Items, 1)
	})

	t.Run("unknown status filter", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/trips?status=PLANNED,LOST", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = api.do(t, http.MethodPost, "/api/trips/"+trip.ID+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.TripInProgress, data[model.Trip](t, w).Status)

	w = api.do(t, http.MethodPut, "/api/trips/"+trip.ID, map[string]interface{}{"pallet_ids": []string{"P1", "P2"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "trip_locked", errorBody(t, w).Details["reason"])

	w = api.do(t, http.MethodDelete, "/api/trips/"+trip.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPost, "/api/trips/"+trip.ID+"/finish", dto.FinishTripRequest{ActualFuel: intPtr(60)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	finished := data[model.Trip](t, w)
	assert.Equal(t, model.TripDone, finished.Status)
	require.NotNil(t, finished.ActualFuel)
	assert.Equal(t, 60, *finished.ActualFuel)

	w = api.do(t, http.MethodPost, "/api/trips/"+trip.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", errorBody(t, w).Error)

	eventually(t, func() bool {
		w := api.do(t, http.MethodGet, "/api/orders/"+order.ID+"/events", nil)
		return w.Code == http.StatusOK && len(data[[]model.AllocationEvent](t, w)) >= 4
	})
}

// TestTripHandler_FinishWithoutBody tests finishing with no actual figures.
func TestTripHandler_FinishWithoutBody(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)
	truck := api.createTruck(t, "FB-1", 10000)
	order := api.createOrder(t, addr.ID, palletReq("P1", 800, 140))

	w := api.do(t, http.MethodPost, "/api/trips", dto.CreateTripRequest{OrderID: order.ID, TruckID: truck.ID, PalletIDs: []string{"P1"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trip := data[model.Trip](t, w)

	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/trips/"+trip.ID+"/start", nil).Code)
	w = api.do(t, http.MethodPost, "/api/trips/"+trip.ID+"/finish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/orders/"+order.ID, nil)
	assert.Equal(t, model.OrderDone, data[model.Order](t, w).Status)
}

// TestTripHandler_CapacityExceeded tests a booking over the truck payload.
func TestTripHandler_CapacityExceeded(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)
	truck := api.createTruck(t, "CX-1", 1000)
	order := api.createOrder(t, addr.ID, palletReq("P1", 800, 140), palletReq("P2", 600, 120))

	w := api.do(t, http.MethodPost, "/api/trips", dto.CreateTripRequest{
		OrderID:   order.ID,
		TruckID:   truck.ID,
		PalletIDs: []string{"P1", "P2"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := errorBody(t, w)
	assert.Equal(t, "capacity_exceeded", resp.Error)
	assert.Equal(t, truck.ID, resp.Details["truck_id"])
}

// TestTruckHandler tests fleet management.
func TestTruckHandler(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	truck := api.createTruck(t, "TR-1", 12000)
	assert.Equal(t, 18, truck.MaxPallets)
	assert.True(t, truck.IsActive)

	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		expectedStatus int
		validate       func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:           "get",
			method:         http.MethodGet,
			path:           "/api/trucks/" + truck.ID,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "duplicate plate",
			method:         http.MethodPost,
			path:           "/api/trucks",
			body:           dto.TruckRequest{PlateNumber: "TR-1", VINCode: "OTHER", Width: 2.4, Height: 2.5, Length: 7.26, MaxWeight: 1000},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "non-positive dimensions",
			method:         http.MethodPost,
			path:           "/api/trucks",
			body:           `{"plate_number":"X","vin_code":"Y","width":0,"height":2,"length":7,"max_weight":100}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "available",
			method:         http.MethodGet,
			path:           "/api/trucks/available?ids=" + truck.ID + ",unknown",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data[[]model.Truck](t, w)
				require.Len(t, got, 1)
				assert.Equal(t, truck.ID, got[0].ID)
			},
		},
		{
			name:           "list active",
			method:         http.MethodGet,
			path:           "/api/trucks?active_only=true&limit=10",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				page := data[struct {
					Items []model.Truck `json:"items"`
					Total int64         `json:"total"`
					Limit int           `json:"limit"`
				}](t, w)
				assert.Len(t, page.Items, 1)
				assert.Equal(t, 10, page.Limit)
			},
		},
		{
			name:           "limit out of range",
			method:         http.MethodGet,
			path:           "/api/trucks?limit=1000",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "update",
			method:         http.MethodPut,
			path:           "/api/trucks/" + truck.ID,
			body:           dto.TruckRequest{PlateNumber: "TR-1", VINCode: "VIN-TR-1", Width: 2.4, Height: 2.7, Length: 13.6, MaxWeight: 24000, DriverName: "Sam"},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data[model.Truck](t, w)
				assert.Equal(t, "Sam", got.DriverName)
				assert.Equal(t, 24000.0, got.MaxWeight)
			},
		},
		{
			name:           "delete",
			method:         http.MethodDelete,
			path:           "/api/trucks/" + truck.ID,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "deleted truck is gone",
			method:         http.MethodGet,
			path:           "/api/trucks/" + truck.ID,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.validate != nil {
				tt.validate(t, w)
			}
		})
	}
}

// TestAddressHandler tests delivery address management.
func TestAddressHandler(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)

	w := api.do(t, http.MethodGet, "/api/addresses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := data[struct {
		Items []model.Address `json:"items"`
		Total int64           `json:"total"`
	}](t, w)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Total)

	w = api.do(t, http.MethodPut, "/api/addresses/"+addr.ID, dto.AddressRequest{
		AddressLine1: "Neude 5", City: "Utrecht", Country: "NL", Postcode: "3512", RangeKm: 110, TimeH: 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 110.0, data[model.Address](t, w).RangeKm)

	w = api.do(t, http.MethodPost, "/api/addresses", `{"address_line1":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.createOrder(t, addr.ID, palletReq("P1", 100, 100))
	w = api.do(t, http.MethodDelete, "/api/addresses/"+addr.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "address_in_use", errorBody(t, w).Details["reason"])

	spare := api.createAddress(t)
	w = api.do(t, http.MethodDelete, "/api/addresses/"+spare.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// TestPlanningHandler_Optimize tests planning and committing an order.
func TestPlanningHandler_Optimize(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)
	api.createTruck(t, "PL-1", 10000)
	order := api.createOrder(t, addr.ID, palletReq("P1", 800, 140), palletReq("P2", 600, 120))

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		validate       func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:           "neither order nor pallets",
			body:           dto.OptimizeRequest{},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "order_id", errorBody(t, w).Details["field"])
			},
		},
		{
			name:           "commit without order",
			body:           dto.OptimizeRequest{Pallets: []dto.PalletRequest{palletReq("L1", 100, 100)}, Commit: true},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "loose pallets",
			body:           dto.OptimizeRequest{Pallets: []dto.PalletRequest{palletReq("L1", 100, 100)}, DestinationAddressID: addr.ID},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data[model.OptimizationResult](t, w)
				assert.Len(t, got.Trips, 1)
				assert.Equal(t, 1, got.TotalPallets)
			},
		},
		{
			name:           "pallet no truck can carry",
			body:           dto.OptimizeRequest{Pallets: []dto.PalletRequest{palletReq("H1", 20000, 100)}},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "commit order plan",
			body:           dto.OptimizeRequest{OrderID: order.ID, Commit: true},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				got := data[model.OptimizationResult](t, w)
				assert.Equal(t, order.ID, got.OrderID)
				require.Len(t, got.Trips, 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/planning/optimize", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.validate != nil {
				tt.validate(t, w)
			}
		})
	}

	w := api.do(t, http.MethodGet, "/api/orders/"+order.ID+"/pallets/unassigned", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, data[[]model.Pallet](t, w))
}

// TestPlanningHandler_ValidatePallets tests the non-failing pallet report.
func TestPlanningHandler_ValidatePallets(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	api.createTruck(t, "VP-1", 10000)

	w := api.do(t, http.MethodPost, "/api/planning/validate-pallets", dto.ValidatePalletsRequest{
		Pallets: []model.Pallet{{ID: "A", Weight: 500, Height: 100}, {ID: "A", Weight: -1, Height: 100}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := data[model.PalletValidation](t, w)
	assert.False(t, got.Valid)
	assert.NotEmpty(t, got.Errors)
	assert.Equal(t, 2, got.TotalPallets)
}

// TestPlanningHandler_PerformanceTrends tests the trends window query.
func TestPlanningHandler_PerformanceTrends(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})

	w := api.do(t, http.MethodGet, "/api/planning/performance-trends", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, defaultTrendDays, data[model.PerformanceTrends](t, w).Period)

	w = api.do(t, http.MethodGet, "/api/planning/performance-trends?days=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, data[model.PerformanceTrends](t, w).Period)

	w = api.do(t, http.MethodGet, "/api/planning/performance-trends?days=400", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestEstimateHandler tests the estimate breakdown.
func TestEstimateHandler(t *testing.T) {
	api := newTestAPI(t, RouterConfig{})
	addr := api.createAddress(t)
	truck := api.createTruck(t, "ES-1", 10000)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		validate       func(t *testing.T, got dto.EstimateResponse)
	}{
		{
			name:           "known route",
			path:           "/api/estimates?truck_id=" + truck.ID + "&destination_address_id=" + addr.ID + "&weight=5000&pallet_count=4",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, got dto.EstimateResponse) {
				assert.True(t, got.KnownRoute)
				assert.Equal(t, 100.0, got.Distance.OneWayRangeKm)
				assert.Equal(t, 4.0, got.WorkingTime.TravelHours)
				assert.Positive(t, got.Estimate.Fuel)
				assert.Equal(t, 50.0, got.Efficiency.WeightUtilization)
			},
		},
		{
			name:           "unknown destination uses the default leg",
			path:           "/api/estimates?truck_id=" + truck.ID + "&weight=1000&pallet_count=1",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, got dto.EstimateResponse) {
				assert.False(t, got.KnownRoute)
				assert.Equal(t, 250.0, got.Distance.OneWayRangeKm)
			},
		},
		{
			name:           "missing truck id",
			path:           "/api/estimates",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown truck",
			path:           "/api/estimates?truck_id=missing",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.validate != nil {
				tt.validate(t, data[dto.EstimateResponse](t, w))
			}
		})
	}
}

// TestIdempotentBooking tests that a retried booking is replayed, not rebooked.
func TestIdempotentBooking(t *testing.T) {
	api := newTestAPI(t, RouterConfig{EnableIdempotency: true, IdempotencyTTL: time.Minute})
	addr := api.createAddress(t)
	truck := api.createTruck(t, "ID-1", 10000)
	order := api.createOrder(t, addr.ID, palletReq("P1", 800, 140))

	body, err := json.Marshal(dto.CreateTripRequest{OrderID: order.ID, TruckID: truck.ID, PalletIDs: []string{"P1"}})
	require.NoError(t, err)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "booking-1")
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := send()
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))
	assert.Equal(t, data[model.Trip](t, first).ID, data[model.Trip](t, second).ID)

	trips, err := api.store.Trips().List(context.Background(), repository.TripFilter{OrderID: order.ID})
	require.NoError(t, err)
	assert.Len(t, trips, 1)
}
