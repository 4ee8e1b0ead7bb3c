package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testAPI is the full router over a store.
type testAPI struct {
	router *gin.Engine
	store  repository.Store
}

// eventually polls until cond holds; allocation events are written asynchronously.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

// newAPI wires the real services over store behind the full router.
func newAPI(t *testing.T, store repository.Store, cfg RouterConfig) *testAPI {
	t.Helper()
	locks := service.NewKeyedLocker()
	profiles := service.NewRepositoryProfiles(store.Addresses(), 250, 4)
	est := service.NewEstimator(service.WithProfiles(profiles))
	recorder := service.NewEventRecorder(service.DefaultEventRecorderConfig(), service.NewRepositoryEventSink(store.Events()))
	t.Cleanup(recorder.Stop)
	allocation := service.NewAllocationService(store, est,
		service.WithLocker(locks),
		service.WithEventEmitter(recorder))
	trucks := service.NewTruckService(store, locks, nil)
	addresses := service.NewAddressService(store, nil)
	history := service.NewHistoryService(store)
	planning := service.NewPlanningService(allocation, trucks,
		service.NewOptimizer(est, service.DefaultOptimizerConfig()), est,
		service.WithHistory(history))

	handlers := Handlers{
		Orders:    NewOrderHandler(allocation),
		Trips:     NewTripHandler(allocation),
		Trucks:    NewTruckHandler(trucks),
		Addresses: NewAddressHandler(addresses),
		Planning:  NewPlanningHandler(planning, history),
		Estimates: NewEstimateHandler(trucks, est),
	}
	return &testAPI{
		router: NewRouter(handlers.Groups(), NewHealthHandler(), cfg),
		store:  store,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// data decodes the data of a success envelope into T.
func data[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data      T      `json:"data"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.NotEmpty(t, env.RequestID)
	return env.Data
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (a *testAPI) createAddress(t *testing.T) model.Address {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/addresses", dto.AddressRequest{
		AddressLine1: "Oudegracht 1",
		City:         "Utrecht",
		Country:      "NL",
		Postcode:     "3511",
		RangeKm:      100,
		TimeH:        2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return data[model.Address](t, w)
}

func (a *testAPI) createTruck(t *testing.T, plate string, maxWeight float64) model.Truck {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/trucks", dto.TruckRequest{
		PlateNumber: plate,
		VINCode:     "VIN-" + plate,
		Width:       2.4,
		Height:      2.5,
		Length:      7.26,
		MaxWeight:   maxWeight,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return data[model.Truck](t, w)
}

func (a *testAPI) createOrder(t *testing.T, addressID string, pallets ...dto.PalletRequest) model.Order {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/orders", dto.CreateOrderRequest{
		Pallets:              pallets,
		DestinationAddressID: addressID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return data[model.Order](t, w)
}

func palletReq(id string, weight, height float64) dto.PalletRequest {
	return dto.PalletRequest{ID: id, Weight: weight, Height: height}
}

func intPtr(v int) *int { return &v }
