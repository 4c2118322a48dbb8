package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents a fleet vehicle. The capacity profile is owned and
// maintained by the fleet-registry service; this engine only reads it.
type Vehicle struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Plate     string             `bson:"plate" json:"plate"`
	Make      string             `bson:"make" json:"make"`
	Model     string             `bson:"model" json:"model"`
	Year      int                `bson:"year" json:"year"`
	Status    string             `bson:"status" json:"status"` // "active" or "inactive"
	Profile   CapacityProfile    `bson:"profile" json:"profile"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// CapacityProfile holds the plausibility bounds used when validating and
// scoring a vehicle's trips.
type CapacityProfile struct {
	TankCapacityL   float64 `bson:"tank_capacity_l" json:"tank_capacity_l"`
	MaxDailyKm      float64 `bson:"max_daily_km" json:"max_daily_km"`
	MinPlausibleKmL float64 `bson:"min_plausible_kml" json:"min_plausible_kml"`
	MaxPlausibleKmL float64 `bson:"max_plausible_kml" json:"max_plausible_kml"`
}
