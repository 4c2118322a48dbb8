package engine

import (
	"sort"
	"time"

	"github.com/fleetops/tripledger/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The mileage chain is, per vehicle, the subsequence of active refueling trips
// ordered by end time. Each node's mileage depends only on itself and its
// immediate predecessor, so recomputation is a single ordered pass.

// refuelPredecessor returns the latest active refueling trip ending at or
// before t's start, excluding t itself.
func refuelPredecessor(trips []models.Trip, t *models.Trip) *models.Trip {
	var pred *models.Trip
	for i := range trips {
		p := &trips[i]
		if p.ID == t.ID || !p.IsRefueling {
			continue
		}
		if p.EndTime.After(t.StartTime) {
			continue
		}
		if pred == nil || p.EndTime.After(pred.EndTime) {
			pred = p
		}
	}
	return pred
}

// computeMileage derives tank-to-tank mileage for a refueling trip. A zero or
// missing fuel quantity yields nil rather than an error.
func computeMileage(t *models.Trip, pred *models.Trip) *float64 {
	if t.FuelLiters == nil || *t.FuelLiters == 0 {
		return nil
	}
	var distance float64
	if pred != nil {
		distance = t.EndKm - pred.EndKm
	} else {
		distance = t.EndKm - t.StartKm
	}
	m := distance / *t.FuelLiters
	return &m
}

func mileageEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// copyMileage copies a derived mileage for a correction record. nil stays nil
// so the audit log can tell an underivable mileage apart from a real 0.0.
func copyMileage(m *float64) *float64 {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}

func f64ptr(v float64) *float64 { return &v }

// runCascade applies an odometer correction: every active trip starting after
// the edited one is shifted by delta, then the refueling chain is recomputed
// in ascending time order from the edit point, or from the edited trip's old
// position at origStart when the edit moved it earlier. trips must already
// hold the edited trip's new values; it is mutated in place. Returns the IDs
// of every trip touched besides the edited one, plus the correction records,
// all sharing correlationID.
func runCascade(trips []models.Trip, editedID primitive.ObjectID, origStart time.Time, delta float64, correlationID string) (map[string]bool, []models.CorrectionRecord) {
	sort.Slice(trips, func(i, j int) bool { return trips[i].StartTime.Before(trips[j].StartTime) })

	editedIdx := -1
	for i := range trips {
		if trips[i].ID == editedID {
			editedIdx = i
			break
		}
	}
	touched := make(map[string]bool)
	var corrections []models.CorrectionRecord
	if editedIdx < 0 {
		return touched, corrections
	}

	if delta != 0 {
		for i := editedIdx + 1; i < len(trips); i++ {
			t := &trips[i]
			corrections = append(corrections,
				models.CorrectionRecord{
					TripID:        t.ID.Hex(),
					Field:         "start_km",
					OldValue:      f64ptr(t.StartKm),
					NewValue:      f64ptr(t.StartKm + delta),
					Cascade:       true,
					CorrelationID: correlationID,
				},
				models.CorrectionRecord{
					TripID:        t.ID.Hex(),
					Field:         "end_km",
					OldValue:      f64ptr(t.EndKm),
					NewValue:      f64ptr(t.EndKm + delta),
					Cascade:       true,
					CorrelationID: correlationID,
				})
			t.StartKm += delta
			t.EndKm += delta
			touched[t.ID.Hex()] = true
		}
	}

	// A time edit can move the trip past other refueling trips; everything
	// between its old position at origStart and its new one must be
	// revisited too, or a bypassed trip keeps a stale predecessor link.
	recomputeFrom := editedIdx
	for i := 0; i < editedIdx; i++ {
		if !trips[i].StartTime.Before(origStart) {
			recomputeFrom = i
			break
		}
	}

	// Recompute the chain in order. Each node depends on its predecessor's
	// already-updated value, so the pass is strictly sequential. Once a
	// node past both the edit point and the old position comes out
	// unchanged the remainder of the chain is stable and the pass stops.
	for i := recomputeFrom; i < len(trips); i++ {
		t := &trips[i]
		if !t.IsRefueling {
			continue
		}
		pred := refuelPredecessor(trips, t)
		newMileage := computeMileage(t, pred)
		prevID := ""
		if pred != nil {
			prevID = pred.ID.Hex()
		}
		if mileageEqual(t.Mileage, newMileage) && t.ChainPrevID == prevID {
			if i > editedIdx && !t.StartTime.Before(origStart) {
				break
			}
			continue
		}
		if t.ID != editedID {
			corrections = append(corrections, models.CorrectionRecord{
				TripID:        t.ID.Hex(),
				Field:         "mileage",
				OldValue:      copyMileage(t.Mileage),
				NewValue:      copyMileage(newMileage),
				Cascade:       true,
				CorrelationID: correlationID,
			})
			touched[t.ID.Hex()] = true
		}
		t.Mileage = newMileage
		t.ChainPrevID = prevID
	}

	return touched, corrections
}
