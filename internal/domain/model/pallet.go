// Package model defines the core domain entities of the trip planner: orders,
// their pallets, trucks, trips and the projections derived from them.
//
// Entities are storage-agnostic. Ids are opaque strings assigned by the
// repository layer.
package model

import (
	"fmt"

	"github.com/guttosm/trip-planner/internal/apperror"
)

// Pallet is the smallest cargo unit. Weight is in kilograms, Height in centimeters.
//
// @Description Cargo unit belonging to an order
type Pallet struct {
	ID     string  `json:"id" bson:"id" example:"P-001"`
	Weight float64 `json:"weight" bson:"weight" example:"850"`
	Height float64 `json:"height" bson:"height" example:"150"`
} // @name Pallet

// HeightMeters returns the pallet height converted to meters, the unit trucks use.
func (p Pallet) HeightMeters() float64 {
	return p.Height / 100
}

// TotalWeight sums the weight of the given pallets.
func TotalWeight(pallets []Pallet) float64 {
	var total float64
	for _, p := range pallets {
		total += p.Weight
	}
	return total
}

// PalletIDs returns the ids of the given pallets, in order.
func PalletIDs(pallets []Pallet) []string {
	ids := make([]string, len(pallets))
	for i, p := range pallets {
		ids[i] = p.ID
	}
	return ids
}

// ValidatePallets checks that every pallet has an id, a positive weight and a
// positive height, and that ids are unique within the set.
func ValidatePallets(pallets []Pallet) error {
	seen := make(map[string]struct{}, len(pallets))
	for i, p := range pallets {
		field := fmt.Sprintf("pallets[%d]", i)
		if p.ID == "" {
			return apperror.NewValidation(field+".id", "is required")
		}
		if !(p.Weight > 0) {
			return apperror.NewValidation(field+".weight", "pallet %s weight must be positive, got %v", p.ID, p.Weight)
		}
		if !(p.Height > 0) {
			return apperror.NewValidation(field+".height", "pallet %s height must be positive, got %v", p.ID, p.Height)
		}
		if _, dup := seen[p.ID]; dup {
			return &apperror.ConflictError{
				Reason:    apperror.ReasonDuplicateID,
				Entity:    "pallet",
				ID:        p.ID,
				PalletIDs: []string{p.ID},
			}
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
