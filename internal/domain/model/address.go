package model

import "time"

// Address is a delivery destination. RangeKm and TimeH are the one-way
// distance and driving time from the warehouse; zero means unknown.
type Address struct {
	ID           string    `json:"id"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2,omitempty"`
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Postcode     string    `json:"postcode"`
	State        string    `json:"state,omitempty"`
	RangeKm      float64   `json:"range_km,omitempty"`
	TimeH        float64   `json:"time_h,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
