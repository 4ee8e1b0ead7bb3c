package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/service"
)

// TruckHandler serves /api/trucks.
type TruckHandler struct {
	trucks TruckService
}

// NewTruckHandler creates a TruckHandler.
func NewTruckHandler(trucks TruckService) *TruckHandler {
	return &TruckHandler{trucks: trucks}
}

// RegisterRoutes registers the truck routes.
func (h *TruckHandler) RegisterRoutes(rg *gin.RouterGroup, _ *RouterConfig) {
	trucks := rg.Group("/trucks")
	trucks.POST("", h.Create)
	trucks.GET("", h.List)
	trucks.GET("/available", h.Available)
	trucks.GET("/:id", h.Get)
	trucks.PUT("/:id", h.Update)
	trucks.DELETE("/:id", h.Delete)
}

func truckInput(req *dto.TruckRequest) service.TruckInput {
	return service.TruckInput{
		PlateNumber:             strings.TrimSpace(req.PlateNumber),
		VINCode:                 strings.TrimSpace(req.VINCode),
		RegistrationCertificate: req.RegistrationCertificate,
		DriverName:              req.DriverName,
		Width:                   req.Width,
		Height:                  req.Height,
		Length:                  req.Length,
		MaxWeight:               req.MaxWeight,
		Model:                   req.Model,
		ManufacturingYear:       req.ManufacturingYear,
		FuelConsumption:         req.FuelConsumption,
		Notes:                   req.Notes,
		IsActive:                req.IsActive,
	}
}

// Create handles POST /api/trucks.
//
// @Summary      Register a truck
// @Tags         Trucks
// @Accept       json
// @Produce      json
// @Param        request body dto.TruckRequest true "Truck"
// @Success      201 {object} dto.SuccessResponse{data=model.Truck}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Plate number or VIN already registered"
// @Security     BearerAuth
// @Router       /api/trucks [post]
func (h *TruckHandler) Create(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.TruckRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	truck, err := h.trucks.CreateTruck(c.Request.Context(), truckInput(req))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.Created(truck.ID, truck)
}

// List handles GET /api/trucks.
//
// @Summary      List trucks
// @Tags         Trucks
// @Produce      json
// @Param        active_only query bool false "Only active trucks"
// @Param        limit query int false "Page size" default(50)
// @Param        skip query int false "Offset"
// @Success      200 {object} dto.SuccessResponse{data=dto.ListResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/trucks [get]
func (h *TruckHandler) List(c *gin.Context) {
	builder := NewResponseBuilder(c)
	q, err := BindQuery[dto.TruckListQuery](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	limit := q.LimitOr(defaultPageSize)
	trucks, total, err := h.trucks.ListTrucks(c.Request.Context(), repository.TruckFilter{
		ActiveOnly: q.ActiveOnly,
		Limit:      limit,
		Skip:       q.Skip,
	})
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.List(trucks, total, limit, q.Skip)
}

// Available handles GET /api/trucks/available.
//
// @Summary      List trucks free for booking
// @Description  Active trucks without a PLANNED or IN_PROGRESS trip.
// @Tags         Trucks
// @Produce      json
// @Param        ids query string false "Comma separated truck ids to consider"
// @Success      200 {object} dto.SuccessResponse{data=[]model.Truck}
// @Security     BearerAuth
// @Router       /api/trucks/available [get]
func (h *TruckHandler) Available(c *gin.Context) {
	builder := NewResponseBuilder(c)
	var ids []string
	if raw := c.Query("ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	trucks, err := h.trucks.AvailableTrucks(c.Request.Context(), ids)
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(trucks)
}

// Get handles GET /api/trucks/{id}.
//
// @Summary      Get a truck
// @Tags         Trucks
// @Produce      json
// @Param        id path string true "Truck id"
// @Success      200 {object} dto.SuccessResponse{data=model.Truck}
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/trucks/{id} [get]
func (h *TruckHandler) Get(c *gin.Context) {
	builder := NewResponseBuilder(c)
	truck, err := h.trucks.GetTruck(c.Request.Context(), c.Param("id"))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(truck)
}

// Update handles PUT /api/trucks/{id}.
//
// @Summary      Update a truck
// @Description  Deactivating a truck is refused while it has an active trip.
// @Tags         Trucks
// @Accept       json
// @Produce      json
// @Param        id path string true "Truck id"
// @Param        request body dto.TruckRequest true "Truck"
// @Success      200 {object} dto.SuccessResponse{data=model.Truck}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/trucks/{id} [put]
func (h *TruckHandler) Update(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.TruckRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	truck, err := h.trucks.UpdateTruck(c.Request.Context(), c.Param("id"), truckInput(req))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(truck)
}

// Delete handles DELETE /api/trucks/{id}.
//
// @Summary      Delete a truck
// @Tags         Trucks
// @Param        id path string true "Truck id"
// @Success      204
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Truck has trips"
// @Security     BearerAuth
// @Router       /api/trucks/{id} [delete]
func (h *TruckHandler) Delete(c *gin.Context) {
	builder := NewResponseBuilder(c)
	if err := h.trucks.DeleteTruck(c.Request.Context(), c.Param("id")); err != nil {
		builder.AppError(err)
		return
	}
	builder.NoContent()
}
