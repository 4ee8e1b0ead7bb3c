package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/service"
)

// TripHandler serves /api/trips.
type TripHandler struct {
	trips TripService
}

// NewTripHandler creates a TripHandler.
func NewTripHandler(trips TripService) *TripHandler {
	return &TripHandler{trips: trips}
}

// RegisterRoutes registers the trip routes.
func (h *TripHandler) RegisterRoutes(rg *gin.RouterGroup, _ *RouterConfig) {
	trips := rg.Group("/trips")
	trips.POST("", h.Create)
	trips.GET("", h.List)
	trips.GET("/:id", h.Get)
	trips.PUT("/:id", h.Update)
	trips.DELETE("/:id", h.Delete)
	trips.POST("/:id/start", h.Start)
	trips.POST("/:id/finish", h.Finish)
	trips.POST("/:id/cancel", h.Cancel)
}

// Create handles POST /api/trips.
//
// @Summary      Book a truck for pallets of an order
// @Description  Creates a PLANNED trip. The truck must be active and free, the pallets unassigned, and the load within the truck's slots, weight and height. Retries with the same Idempotency-Key replay the first response.
// @Tags         Trips
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Idempotency key for request deduplication"
// @Param        request body dto.CreateTripRequest true "Booking"
// @Success      201 {object} dto.SuccessResponse{data=model.Trip}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse "Order, truck or pallet not found"
// @Failure      409 {object} dto.ErrorResponse "Truck busy, pallet already assigned or order closed"
// @Failure      422 {object} dto.ErrorResponse "Capacity exceeded"
// @Security     BearerAuth
// @Router       /api/trips [post]
func (h *TripHandler) Create(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.CreateTripRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}

	in := service.CreateTripInput{
		OrderID:   req.OrderID,
		TruckID:   req.TruckID,
		PalletIDs: trimAll(req.PalletIDs),
		Notes:     req.Notes,
	}
	if req.StartDate != nil {
		in.StartDate = *req.StartDate
	}
	trip, err := h.trips.CreateTrip(c.Request.Context(), in)
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.Created(trip.ID, trip)
}

// List handles GET /api/trips.
//
// @Summary      List trips
// @Tags         Trips
// @Produce      json
// @Param        order_id query string false "Order"
// @Param        truck_id query string false "Truck"
// @Param        status query string false "Comma separated statuses, e.g. PLANNED,IN_PROGRESS"
// @Param        limit query int false "Max trips" default(50)
// @Success      200 {object} dto.SuccessResponse{data=dto.ListResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/trips [get]
func (h *TripHandler) List(c *gin.Context) {
	builder := NewResponseBuilder(c)
	q, err := BindQuery[dto.TripListQuery](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	statuses, err := parseTripStatuses(q.Status)
	if err != nil {
		builder.AppError(err)
		return
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	trips, err := h.trips.ListTrips(c.Request.Context(), repository.TripFilter{
		OrderID:  q.OrderID,
		TruckID:  q.TruckID,
		Statuses: statuses,
		Limit:    limit,
	})
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.List(trips, int64(len(trips)), limit, 0)
}

func parseTripStatuses(raw string) ([]model.TripStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var out []model.TripStatus
	for _, part := range strings.Split(raw, ",") {
		status, ok := model.ParseTripStatus(strings.TrimSpace(part))
		if !ok {
			return nil, apperror.NewValidation("status", "unknown trip status %q", part)
		}
		out = append(out, status)
	}
	return out, nil
}

// Get handles GET /api/trips/{id}.
//
// @Summary      Get a trip
// @Tags         Trips
// @Produce      json
// @Param        id path string true "Trip id"
// @Success      200 {object} dto.SuccessResponse{data=model.Trip}
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/trips/{id} [get]
func (h *TripHandler) Get(c *gin.Context) {
	builder := NewResponseBuilder(c)
	trip, err := h.trips.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(trip)
}

// Update handles PUT /api/trips/{id}.
//
// @Summary      Edit a planned trip
// @Description  Truck and pallets can change only while the trip is PLANNED. The trip is re-estimated.
// @Tags         Trips
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip id"
// @Param        request body dto.UpdateTripRequest true "Changes"
// @Success      200 {object} dto.SuccessResponse{data=model.Trip}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Trip locked, truck busy or pallet already assigned"
// @Failure      422 {object} dto.ErrorResponse "Capacity exceeded"
// @Security     BearerAuth
// @Router       /api/trips/{id} [put]
func (h *TripHandler) Update(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.UpdateTripRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}

	trip, err := h.trips.UpdateTrip(c.Request.Context(), c.Param("id"), service.UpdateTripInput{
		TruckID:   req.TruckID,
		PalletIDs: trimAll(req.PalletIDs),
		StartDate: req.StartDate,
		Notes:     req.Notes,
	})
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(trip)
}

// Delete handles DELETE /api/trips/{id}.
//
// @Summary      Delete a planned or cancelled trip
// @Tags         Trips
// @Param        id path string true "Trip id"
// @Success      204
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Trip in progress or done"
// @Security     BearerAuth
// @Router       /api/trips/{id} [delete]
func (h *TripHandler) Delete(c *gin.Context) {
	builder := NewResponseBuilder(c)
	if err := h.trips.DeleteTrip(c.Request.Context(), c.Param("id")); err != nil {
		builder.AppError(err)
		return
	}
	builder.NoContent()
}

// Start handles POST /api/trips/{id}/start.
//
// @Summary      Start a trip
// @Tags         Trips
// @Produce      json
// @Param        id path string true "Trip id"
// @Success      200 {object} dto.SuccessResponse{data=model.Trip}
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Invalid transition"
// @Security     BearerAuth
// @Router       /api/trips/{id}/start [post]
func (h *TripHandler) Start(c *gin.Context) {
	h.transition(c, func(id string) (*model.Trip, error) {
		return h.trips.StartTrip(c.Request.Context(), id)
	})
}

// Finish handles POST /api/trips/{id}/finish.
//
// @Summary      Complete a trip
// @Description  Records the actual fuel and duration. The order becomes DONE once all cargo is delivered.
// @Tags         Trips
// @Accept       json
// @Produce      json
// @Param        id path string true "Trip id"
// @Param        request body dto.FinishTripRequest false "Actual figures"
// @Success      200 {object} dto.SuccessResponse{data=model.Trip}
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Invalid transition"
// @Security     BearerAuth
// @Router       /api/trips/{id}/finish [post]
func (h *TripHandler) Finish(c *gin.Context) {
	builder := NewResponseBuilder(c)
	var req dto.FinishTripRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			builder.BindError(err)
			return
		}
	}
	h.transition(c, func(id string) (*model.Trip, error) {
		return h.trips.FinishTrip(c.Request.Context(), id, service.FinishTripInput{
			ActualFuel:     req.ActualFuel,
			ActualDuration: req.ActualDuration,
			Notes:          req.Notes,
		})
	})
}

// Cancel handles POST /api/trips/{id}/cancel.
//
// @Summary      Cancel a trip
// @Description  Releases the trip's pallets and truck.
// @Tags         Trips
// @Produce      json
// @Param        id path string true "Trip id"
// @Success      200 {object} dto.SuccessResponse{data=model.Trip}
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Invalid transition"
// @Security     BearerAuth
// @Router       /api/trips/{id}/cancel [post]
func (h *TripHandler) Cancel(c *gin.Context) {
	h.transition(c, func(id string) (*model.Trip, error) {
		return h.trips.CancelTrip(c.Request.Context(), id)
	})
}

func (h *TripHandler) transition(c *gin.Context, apply func(id string) (*model.Trip, error)) {
	builder := NewResponseBuilder(c)
	trip, err := apply(c.Param("id"))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(trip)
}

func trimAll(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strings.TrimSpace(id)
	}
	return out
}

