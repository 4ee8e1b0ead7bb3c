package http

import (
	"github.com/gin-gonic/gin"
)

// RouteGroup defines a group of routes that can be registered.
type RouteGroup interface {
	// RegisterRoutes registers routes to the given router group.
	RegisterRoutes(rg *gin.RouterGroup, cfg *RouterConfig)
}

// Handlers bundles the API route groups.
type Handlers struct {
	Orders    *OrderHandler
	Trips     *TripHandler
	Trucks    *TruckHandler
	Addresses *AddressHandler
	Planning  *PlanningHandler
	Estimates *EstimateHandler
}

// Groups returns the non-nil handlers as route groups.
func (h Handlers) Groups() []RouteGroup {
	var groups []RouteGroup
	for _, g := range []RouteGroup{h.Orders, h.Trips, h.Trucks, h.Addresses, h.Planning, h.Estimates} {
		if !isNilGroup(g) {
			groups = append(groups, g)
		}
	}
	return groups
}

func isNilGroup(g RouteGroup) bool {
	switch v := g.(type) {
	case *OrderHandler:
		return v == nil
	case *TripHandler:
		return v == nil
	case *TruckHandler:
		return v == nil
	case *AddressHandler:
		return v == nil
	case *PlanningHandler:
		return v == nil
	case *EstimateHandler:
		return v == nil
	}
	return g == nil
}
