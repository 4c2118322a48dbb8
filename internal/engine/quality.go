package engine

import (
	"time"

	"github.com/fleetops/tripledger/internal/models"
)

// Sub-score penalties. Each sub-score starts at 100 and is clamped at 0
// before weighting, so the overall score always lands in [0, 100].
const (
	penaltyMissingDriver     = 20
	penaltyMissingPurpose    = 10
	penaltyMissingFuel       = 30
	penaltyMissingLoadWeight = 10

	penaltyOdometerOrder      = 40
	penaltyDateOrder          = 40
	penaltyImplausibleMileage = 25
	penaltyLongDuration       = 15
	penaltyExcessiveDistance  = 15

	penaltyMileageAnomaly = 40

	weightCompleteness = 0.3
	weightConsistency  = 0.4
	weightAnomaly      = 0.3

	longDurationLimit = 24 * time.Hour
)

// Scorer combines completeness, consistency, and anomaly signals into one
// quality score and flag set per trip.
type Scorer struct {
	cfg Config
}

// NewScorer returns a scorer with the given thresholds.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	return s
}

// Score computes the trip's overall quality score and violation flags.
// profile may be nil when the vehicle's capacity profile is unknown; exp is
// the baseline expectation for the trip's bucket.
func (s *Scorer) Score(t *models.Trip, profile *models.CapacityProfile, exp Expectation) (float64, []string) {
	var flags []string

	completeness := 100.0
	if t.DriverID == "" {
		completeness -= penaltyMissingDriver
		flags = append(flags, models.FlagMissingDriver)
	}
	if t.Purpose == "" {
		completeness -= penaltyMissingPurpose
		flags = append(flags, models.FlagMissingPurpose)
	}
	if t.IsRefueling && (t.FuelLiters == nil || *t.FuelLiters == 0) {
		completeness -= penaltyMissingFuel
		flags = append(flags, models.FlagMissingFuel)
	}
	if t.GrossWeightKg == 0 {
		completeness -= penaltyMissingLoadWeight
		flags = append(flags, models.FlagMissingLoadWeight)
	}

	consistency := 100.0
	if t.EndKm < t.StartKm {
		consistency -= penaltyOdometerOrder
		flags = append(flags, models.FlagOdometerOrder)
	}
	if t.EndTime.Before(t.StartTime) {
		consistency -= penaltyDateOrder
		flags = append(flags, models.FlagDateOrder)
	}
	if t.Mileage != nil && profile != nil && profile.MaxPlausibleKmL > 0 {
		if *t.Mileage < profile.MinPlausibleKmL || *t.Mileage > profile.MaxPlausibleKmL {
			consistency -= penaltyImplausibleMileage
			flags = append(flags, models.FlagImplausibleMileage)
		}
	}
	if t.Duration() > longDurationLimit {
		consistency -= penaltyLongDuration
		flags = append(flags, models.FlagLongDuration)
	}
	if profile != nil && profile.MaxDailyKm > 0 {
		days := t.Duration().Hours() / 24
		if days < 1 {
			days = 1
		}
		if t.DistanceKm()/days > profile.MaxDailyKm {
			consistency -= penaltyExcessiveDistance
			flags = append(flags, models.FlagExcessiveDistance)
		}
	}

	anomaly := 100.0
	if t.Mileage != nil && exp.Anomalous(*t.Mileage, s.cfg.AnomalyRatio) {
		anomaly -= penaltyMileageAnomaly
		flags = append(flags, models.FlagMileageAnomaly)
	}

	overall := weightCompleteness*clampScore(completeness) +
		weightConsistency*clampScore(consistency) +
		weightAnomaly*clampScore(anomaly)
	return overall, flags
}
