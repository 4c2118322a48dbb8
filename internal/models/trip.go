package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trip represents one vehicle trip in the ledger. Odometer readings are in
// kilometers, fuel in liters. Mileage (km per liter) is only ever computed for
// refueling trips and is nil until the chain calculator has derived it, or when
// the recorded fuel quantity is zero.
type Trip struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID     string             `json:"vehicle_id" bson:"vehicle_id"`
	DriverID      string             `json:"driver_id" bson:"driver_id"`
	StartTime     time.Time          `json:"start_time" bson:"start_time"`
	EndTime       time.Time          `json:"end_time" bson:"end_time"`
	StartKm       float64            `json:"start_km" bson:"start_km"`
	EndKm         float64            `json:"end_km" bson:"end_km"`
	IsRefueling   bool               `json:"is_refueling" bson:"is_refueling"`
	FuelLiters    *float64           `json:"fuel_liters,omitempty" bson:"fuel_liters,omitempty"`
	GrossWeightKg float64            `json:"gross_weight_kg" bson:"gross_weight_kg"`
	Purpose       string             `json:"purpose" bson:"purpose"` // "business", "personal", "delivery"
	Notes         string             `json:"notes" bson:"notes"`
	Mileage       *float64           `json:"mileage,omitempty" bson:"mileage,omitempty"` // km per liter, tank-to-tank
	ChainPrevID   string             `json:"chain_prev_id,omitempty" bson:"chain_prev_id,omitempty"`
	Deleted       bool               `json:"deleted" bson:"deleted"`
	QualityScore  float64            `json:"quality_score" bson:"quality_score"`
	QualityFlags  []string           `json:"quality_flags,omitempty" bson:"quality_flags,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// DistanceKm returns the odometer distance covered by the trip.
func (t *Trip) DistanceKm() float64 {
	return t.EndKm - t.StartKm
}

// Duration returns the trip duration.
func (t *Trip) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

// Overlaps reports whether the two trips' time intervals intersect. Intervals
// are half-open [start, end), so back-to-back trips do not overlap.
func (t *Trip) Overlaps(other *Trip) bool {
	return t.StartTime.Before(other.EndTime) && other.StartTime.Before(t.EndTime)
}

// Clone returns a deep copy of the trip.
func (t *Trip) Clone() Trip {
	out := *t
	if t.FuelLiters != nil {
		v := *t.FuelLiters
		out.FuelLiters = &v
	}
	if t.Mileage != nil {
		v := *t.Mileage
		out.Mileage = &v
	}
	if t.QualityFlags != nil {
		out.QualityFlags = append([]string(nil), t.QualityFlags...)
	}
	return out
}
