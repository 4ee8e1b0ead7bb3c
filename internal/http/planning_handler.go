package http

import (
	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/service"
)

const defaultTrendDays = 30

// PlanningHandler serves /api/planning.
type PlanningHandler struct {
	planning PlanningService
	trends   TrendsService
}

// NewPlanningHandler creates a PlanningHandler.
func NewPlanningHandler(planning PlanningService, trends TrendsService) *PlanningHandler {
	return &PlanningHandler{planning: planning, trends: trends}
}

// RegisterRoutes registers the planning routes.
func (h *PlanningHandler) RegisterRoutes(rg *gin.RouterGroup, _ *RouterConfig) {
	planning := rg.Group("/planning")
	planning.POST("/optimize", h.Optimize)
	planning.POST("/validate-pallets", h.ValidatePallets)
	planning.GET("/performance-trends", h.PerformanceTrends)
}

// Optimize handles POST /api/planning/optimize.
//
// @Summary      Plan the loading of pallets onto trucks
// @Description  Packs an order's unassigned pallets, or an explicit pallet list, onto the available trucks. With commit the plan is booked as PLANNED trips in one step.
// @Tags         Planning
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Idempotency key for request deduplication"
// @Param        request body dto.OptimizeRequest true "Planning request"
// @Success      200 {object} dto.SuccessResponse{data=model.OptimizationResult}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse "Order not found"
// @Failure      409 {object} dto.ErrorResponse "Conflict while committing"
// @Failure      422 {object} dto.ErrorResponse "No feasible allocation"
// @Security     BearerAuth
// @Router       /api/planning/optimize [post]
func (h *PlanningHandler) Optimize(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.OptimizeRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}

	in := service.OptimizeRequest{
		OrderID:                  req.OrderID,
		Pallets:                  req.ModelPallets(),
		DestinationAddressID:     req.DestinationAddressID,
		PreferredTruckIDs:        req.PreferredTruckIDs,
		IncludeHistoricalContext: req.IncludeHistoricalContext,
		Commit:                   req.Commit,
	}
	if req.StartDate != nil {
		in.StartDate = *req.StartDate
	}
	result, err := h.planning.Optimize(c.Request.Context(), in)
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(result)
}

// ValidatePallets handles POST /api/planning/validate-pallets.
//
// @Summary      Check a pallet set
// @Description  Reports errors and warnings without rejecting the request.
// @Tags         Planning
// @Accept       json
// @Produce      json
// @Param        request body dto.ValidatePalletsRequest true "Pallets"
// @Success      200 {object} dto.SuccessResponse{data=model.PalletValidation}
// @Failure      400 {object} dto.ErrorResponse "Malformed body"
// @Security     BearerAuth
// @Router       /api/planning/validate-pallets [post]
func (h *PlanningHandler) ValidatePallets(c *gin.Context) {
	builder := NewResponseBuilder(c)
	req, err := BindJSON[dto.ValidatePalletsRequest](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	report, err := h.planning.ValidatePallets(c.Request.Context(), req.Pallets)
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(report)
}

// PerformanceTrends handles GET /api/planning/performance-trends.
//
// @Summary      Delivery performance over recent days
// @Tags         Planning
// @Produce      json
// @Param        days query int false "Window in days" default(30)
// @Success      200 {object} dto.SuccessResponse{data=model.PerformanceTrends}
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/planning/performance-trends [get]
func (h *PlanningHandler) PerformanceTrends(c *gin.Context) {
	builder := NewResponseBuilder(c)
	q, err := BindQuery[dto.TrendsQuery](c)
	if err != nil {
		builder.BindError(err)
		return
	}
	days := q.Days
	if days == 0 {
		days = defaultTrendDays
	}
	trends, err := h.trends.PerformanceTrends(c.Request.Context(), days)
	if err != nil {
		builder.AppError(err)
		return
	}
	builder.SuccessOK(trends)
}
