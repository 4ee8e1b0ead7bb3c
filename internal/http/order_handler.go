package http

import (
	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/service"
)

// OrderHandler serves /api/orders.
type OrderHandler struct {
	orders OrderService
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes registers the order routes.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup, _ *RouterConfig) {
	orders := rg.Group("/orders")
	orders.POST("", h.Create)
	orders.GET("", h.List)
	orders.GET("/:id", h.Get)
	orders.PUT("/:id", h.Update)
	orders.DELETE("/:id", h.Delete)
	orders.POST("/:id/cancel", h.Cancel)
	orders.GET("/:id/pallets/unassigned", h.UnassignedPallets)
	orders.GET("/:id/events", h.Events)
}

// Create handles POST /api/orders.
//
// @Summary      Register an order
// @Description  Creates an order in DRAFT with all pallets unassigned. Pallet ids must be unique within the order.
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Idempotency key for request deduplication"
// @Param        request body dto.CreateOrderRequest true "Order"
// @Success      201 {object} dto.SuccessResponse{data=model.Order}
// @Failure      400 {object} dto.ErrorResponse "Validation failed"
// @Failure      404 {object} dto.ErrorResponse "Destination address not found"
// @Failure      409 {object} dto.ErrorResponse "Duplicate pallet id"
// @Security     BearerAuth
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.CreateOrderRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		Pallets:              req.ModelPallets(),
		DestinationAddressID: req.DestinationAddressID,
		Notes:                req.Notes,
	})
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.Created(order.ID, order)
}

// List handles GET /api/orders.
//
// @Summary      List orders
// @Tags         Orders
// @Produce      json
// @Param        status query string false "Order status" Enums(DRAFT, NEW, IN_PROGRESS, DONE, CANCELLED)
// @Param        destination_address_id query string false "Destination address"
// @Param        limit query int false "Page size" default(50)
// @Param        skip query int false "Offset"
// @Success      200 {object} dto.SuccessResponse{data=dto.ListResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	builder := NewResponseBuilder(c)
	q, err := BindQuery[dto.OrderListQuery](c)
	if err != nil {
		builder.BindError(err)
		return
	}

	limit := q.LimitOr(defaultPageSize)
	orders, total, err := h.orders.ListOrders(c.Request.Context(), repository.OrderFilter{
		Status:               model.OrderStatus(q.Status),
		DestinationAddressID: q.DestinationAddressID,
		Limit:                limit,
		Skip:                 q.Skip,
	})
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.List(orders, total, limit, q.Skip)
}

// Get handles GET /api/orders/{id}.
//
// @Summary      Get an order
// @Tags         Orders
// @Produce      json
// @Param        id path string true "Order id"
// @Success      200 {object} dto.SuccessResponse{data=model.Order}
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	builder := NewResponseBuilder(c)
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(order)
}

// Update handles PUT /api/orders/{id}.
//
// @Summary      Edit an order
// @Description  Replaces pallets, destination or notes. Pallets held by live trips cannot be removed; planned trips are re-estimated when the destination changes.
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order id"
// @Param        request body dto.UpdateOrderRequest true "Changes"
// @Success      200 {object} dto.SuccessResponse{data=model.Order}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Order closed, in progress or pallet in use"
// @Failure      422 {object} dto.ErrorResponse "New pallet sizes no longer fit the truck"
// @Security     BearerAuth
// @Router       /api/orders/{id} [put]
func (h *OrderHandler) Update(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.UpdateOrderRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), c.Param("id"), service.UpdateOrderInput{
		Pallets:              req.ModelPallets(),
		DestinationAddressID: req.DestinationAddressID,
		Notes:                req.Notes,
	})
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(order)
}

// Delete handles DELETE /api/orders/{id}.
//
// @Summary      Delete an order and its trips
// @Tags         Orders
// @Param        id path string true "Order id"
// @Success      204
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "A trip is in progress"
// @Security     BearerAuth
// @Router       /api/orders/{id} [delete]
func (h *OrderHandler) Delete(c *gin.Context) {
	builder := NewResponseBuilder(c)
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		builder.AppError(err)
		return
	}
	builder.NoContent()
}

// Cancel handles POST /api/orders/{id}/cancel.
//
// @Summary      Cancel an order
// @Description  Cancels every non-terminal trip and marks the order CANCELLED.
// @Tags         Orders
// @Produce      json
// @Param        id path string true "Order id"
// @Success      200 {object} dto.SuccessResponse{data=model.Order}
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Order in progress or done"
// @Security     BearerAuth
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	builder := NewResponseBuilder(c)
	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(order)
}

// UnassignedPallets handles GET /api/orders/{id}/pallets/unassigned.
//
// @Summary      Pallets not on any live trip
// @Tags         Orders
// @Produce      json
// @Param        id path string true "Order id"
// @Success      200 {object} dto.SuccessResponse{data=[]model.Pallet}
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orders/{id}/pallets/unassigned [get]
func (h *OrderHandler) UnassignedPallets(c *gin.Context) {
	builder := NewResponseBuilder(c)
	pallets, err := h.orders.UnassignedPallets(c.Request.Context(), c.Param("id"))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(pallets)
}

// Events handles GET /api/orders/{id}/events.
//
// @Summary      Allocation history of an order
// @Tags         Orders
// @Produce      json
// @Param        id path string true "Order id"
// @Param        limit query int false "Max events" default(100)
// @Success      200 {object} dto.SuccessResponse{data=[]model.AllocationEvent}
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orders/{id}/events [get]
func (h *OrderHandler) Events(c *gin.Context) {
	builder := NewResponseBuilder(c)
	q, err := BindQuery[dto.ListQuery](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	events, err := h.orders.OrderEvents(c.Request.Context(), c.Param("id"), q.LimitOr(100))
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(events)
}
