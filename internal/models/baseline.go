package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Season buckets a trip's start month into one of three bands.
type Season string

const (
	SeasonWinter       Season = "winter"       // Nov-Feb
	SeasonSummer       Season = "summer"       // Jun-Sep
	SeasonTransitional Season = "transitional" // Mar-May, Oct
)

// SeasonOf maps a timestamp to its season band.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.November, time.December, time.January, time.February:
		return SeasonWinter
	case time.June, time.July, time.August, time.September:
		return SeasonSummer
	default:
		return SeasonTransitional
	}
}

// LoadCategory buckets a trip's gross weight.
type LoadCategory string

const (
	LoadLight  LoadCategory = "light"
	LoadMedium LoadCategory = "medium"
	LoadHeavy  LoadCategory = "heavy"
)

// Baseline is the per-vehicle mileage expectation for one (season, load)
// bucket, recomputed from the vehicle's active refueling trips. It is never
// written directly by trip writes.
type Baseline struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID   string             `bson:"vehicle_id" json:"vehicle_id"`
	Season      Season             `bson:"season" json:"season"`
	Load        LoadCategory       `bson:"load" json:"load"`
	MeanMileage float64            `bson:"mean_mileage" json:"mean_mileage"`
	SampleCount int                `bson:"sample_count" json:"sample_count"`
	Confidence  float64            `bson:"confidence" json:"confidence"` // 0-1
	ComputedAt  time.Time          `bson:"computed_at" json:"computed_at"`
}
