package http

import (
	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/service"
)

// EstimateHandler serves /api/estimates.
type EstimateHandler struct {
	trucks    TruckService
	estimator EstimateService
}

// NewEstimateHandler creates an EstimateHandler.
func NewEstimateHandler(trucks TruckService, estimator EstimateService) *EstimateHandler {
	return &EstimateHandler{trucks: trucks, estimator: estimator}
}

// RegisterRoutes registers the estimate routes.
func (h *EstimateHandler) RegisterRoutes(rg *gin.RouterGroup, _ *RouterConfig) {
	rg.GET("/estimates", h.Estimate)
}

// Estimate handles GET /api/estimates.
//
// @Summary      Estimate fuel and duration of a trip
// @Description  Advisory figures for a truck carrying weight kg on pallet_count pallets to a destination. Unknown destinations use the default leg.
// @Tags         Estimates
// @Produce      json
// @Param        truck_id query string true "Truck"
// @Param        destination_address_id query string false "Destination address"
// @Param        weight query number false "Load in kg"
// @Param        pallet_count query int false "Number of pallets"
// @Success      200 {object} dto.SuccessResponse{data=dto.EstimateResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse "Truck not found"
// @Security     BearerAuth
// @Router       /api/estimates [get]
func (h *EstimateHandler) Estimate(c *gin.Context) {
	builder := NewResponseBuilder(c)
	q, err := BindQuery[dto.EstimateQuery](c)
	if err != nil {
		builder.BindError(err)
		return
	}

	ctx := c.Request.Context()
	truck, err := h.trucks.GetTruck(ctx, q.TruckID)
	if err != nil {
		builder.AppError(err)
		return
	}

	est := h.estimator.Estimate(ctx, *truck, q.DestinationAddressID, q.Weight, q.PalletCount)
	leg, known := h.estimator.Distance(ctx, q.DestinationAddressID)
	builder.SuccessOK(dto.EstimateResponse{
		Estimate:    est,
		Distance:    leg,
		KnownRoute:  known,
		WorkingTime: service.WorkingTimeBreakdown(leg.OneWayTimeH, q.PalletCount),
		Efficiency:  service.EfficiencyMetrics(*truck, q.Weight, est.Fuel, leg.OneWayRangeKm, h.estimator.DefaultConsumption()),
	})
}
