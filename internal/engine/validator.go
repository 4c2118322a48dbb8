package engine

import (
	"fmt"

	"github.com/fleetops/tripledger/internal/models"
)

// Validator is the gatekeeper for every trip write. It decides accept,
// accept-with-warning, or reject before any state is persisted. Warnings never
// block the write; a non-nil Rejection aborts it entirely.
type Validator struct {
	cfg Config
}

// NewValidator returns a validator with the given thresholds.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks a candidate write against the vehicle's and driver's active
// trips. The candidate itself is skipped inside both slices (updates pass the
// edited trip's ID), so a trip never conflicts with its own stored version.
func (v *Validator) Validate(candidate *models.Trip, vehicleTrips, driverTrips []models.Trip, profile *models.CapacityProfile) ([]models.Warning, *Rejection) {
	if candidate.EndTime.Before(candidate.StartTime) {
		return nil, &Rejection{
			Reason: models.ReasonInvalidDateOrder,
			Detail: fmt.Sprintf("end %s precedes start %s", candidate.EndTime.Format("2006-01-02 15:04"), candidate.StartTime.Format("2006-01-02 15:04")),
		}
	}
	if candidate.IsRefueling && candidate.FuelLiters == nil {
		return nil, &Rejection{
			Reason: models.ReasonMissingFuelForRefueling,
			Detail: "refueling trip has no fuel quantity",
		}
	}

	if rej := overlapCheck(candidate, vehicleTrips, "vehicle"); rej != nil {
		return nil, rej
	}
	if rej := overlapCheck(candidate, driverTrips, "driver"); rej != nil {
		return nil, rej
	}

	var warnings []models.Warning

	if pred := odometerPredecessor(vehicleTrips, candidate); pred != nil {
		gap := candidate.StartKm - pred.EndKm
		if gap < 0 {
			return nil, &Rejection{
				Reason: models.ReasonNegativeOdometerGap,
				Detail: fmt.Sprintf("start %.1f km is below previous trip end %.1f km", candidate.StartKm, pred.EndKm),
			}
		}
		if gap > v.cfg.GapWarnKm {
			warnings = append(warnings, models.Warning{
				Code:   models.WarnLargeOdometerGap,
				Detail: fmt.Sprintf("continuity gap of %.1f km exceeds %.1f km", gap, v.cfg.GapWarnKm),
			})
		}
	}

	if profile != nil && profile.MaxDailyKm > 0 {
		distance := candidate.DistanceKm()
		days := candidate.Duration().Hours() / 24
		if days < 1 {
			days = 1
		}
		if distance/days > profile.MaxDailyKm {
			warnings = append(warnings, models.Warning{
				Code:   models.WarnHighDailyDistance,
				Detail: fmt.Sprintf("%.1f km over %.1f days exceeds %.1f km/day", distance, days, profile.MaxDailyKm),
			})
		}
	}

	return warnings, nil
}

// overlapCheck rejects the candidate if its half-open [start, end) interval
// intersects any other active trip in the slice. Touching boundaries (one
// trip's end equal to another's start) are not an overlap.
func overlapCheck(candidate *models.Trip, trips []models.Trip, scope string) *Rejection {
	for i := range trips {
		other := &trips[i]
		if other.ID == candidate.ID {
			continue
		}
		if candidate.Overlaps(other) {
			return &Rejection{
				Reason: models.ReasonTimeOverlap,
				Detail: fmt.Sprintf("interval intersects %s trip %s", scope, other.ID.Hex()),
			}
		}
	}
	return nil
}

// odometerPredecessor returns the latest active trip of the same vehicle
// ending at or before the candidate's start, or nil when the candidate is the
// vehicle's first trip. The input is sorted by start time.
func odometerPredecessor(trips []models.Trip, candidate *models.Trip) *models.Trip {
	var pred *models.Trip
	for i := range trips {
		t := &trips[i]
		if t.ID == candidate.ID {
			continue
		}
		if t.EndTime.After(candidate.StartTime) {
			continue
		}
		if pred == nil || t.EndTime.After(pred.EndTime) {
			pred = t
		}
	}
	return pred
}
