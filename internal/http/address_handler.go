package http

import (
	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/service"
)

// AddressHandler serves /api/addresses.
type AddressHandler struct {
	addresses AddressService
}

// NewAddressHandler creates an AddressHandler.
func NewAddressHandler(addresses AddressService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// RegisterRoutes registers the address routes.
func (h *AddressHandler) RegisterRoutes(rg *gin.RouterGroup, _ *RouterConfig) {
	addresses := rg.Group("/addresses")
	addresses.POST("", h.Create)
	addresses.GET("", h.List)
	addresses.GET("/:id", h.Get)
	addresses.PUT("/:id", h.Update)
	addresses.DELETE("/:id", h.Delete)
}

func addressInput(req *dto.AddressRequest) service.AddressInput {
	return service.AddressInput{
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		Country:      req.Country,
		Postcode:     req.Postcode,
		State:        req.State,
		RangeKm:      req.RangeKm,
		TimeH:        req.TimeH,
	}
}

// Create handles POST /api/addresses.
//
// @Summary      Register a delivery address
// @Tags         Addresses
// @Accept       json
// @Produce      json
// @Param        request body dto.AddressRequest true "Address"
// @Success      201 {object} dto.SuccessResponse{data=model.Address}
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/addresses [post]
func (h *AddressHandler) Create(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.AddressRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	address, err := h.addresses.CreateAddress(c.Request.Context(), addressInput(req))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.Created(address.ID, address)
}

// List handles GET /api/addresses.
//
// @Summary      List delivery addresses
// @Tags         Addresses
// @Produce      json
// @Param        limit query int false "Page size" default(50)
// @Param        skip query int false "Offset"
// @Success      200 {object} dto.SuccessResponse{data=dto.ListResponse}
// @Security     BearerAuth
// @Router       /api/addresses [get]
func (h *AddressHandler) List(c *gin.Context) {
	builder := NewResponseBuilder(c)
	q, err := BindQuery[dto.ListQuery](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	limit := q.LimitOr(defaultPageSize)
	addresses, err := h.addresses.ListAddresses(c.Request.Context(), limit, q.Skip)
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.List(addresses, int64(len(addresses)), limit, q.Skip)
}

// Get handles GET /api/addresses/{id}.
//
// @Summary      Get a delivery address
// @Tags         Addresses
// @Produce      json
// @Param        id path string true "Address id"
// @Success      200 {object} dto.SuccessResponse{data=model.Address}
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/addresses/{id} [get]
func (h *AddressHandler) Get(c *gin.Context) {
	builder := NewResponseBuilder(c)
	address, err := h.addresses.GetAddress(c.Request.Context(), c.Param("id"))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(address)
}

// Update handles PUT /api/addresses/{id}.
//
// @Summary      Update a delivery address
// @Tags         Addresses
// @Accept       json
// @Produce      json
// @Param        id path string true "Address id"
// @Param        request body dto.AddressRequest true "Address"
// @Success      200 {object} dto.SuccessResponse{data=model.Address}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/addresses/{id} [put]
func (h *AddressHandler) Update(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.AddressRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	address, err := h.addresses.UpdateAddress(c.Request.Context(), c.Param("id"), addressInput(req))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(address)
}

// Delete handles DELETE /api/addresses/{id}.
//
// @Summary      Delete a delivery address
// @Tags         Addresses
// @Param        id path string true "Address id"
// @Success      204
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Address used by an order"
// @Security     BearerAuth
// @Router       /api/addresses/{id} [delete]
func (h *AddressHandler) Delete(c *gin.Context) {
	builder := NewResponseBuilder(c)
	if err := h.addresses.DeleteAddress(c.Request.Context(), c.Param("id")); err != nil {
		builder.AppError(err)
		return
	}
	builder.NoContent()
}
