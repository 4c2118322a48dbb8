package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fleetops/tripledger/internal/db"
	"github.com/fleetops/tripledger/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Engine is the trip write pipeline: validate, mutate, recompute, score. Every
// write runs to completion as one atomic unit before the caller gets a result.
// Writes are serialized per vehicle; writes against different vehicles proceed
// in parallel.
type Engine struct {
	store     db.Ledger
	baseliner *Baseliner
	validator *Validator
	scorer    *Scorer
	cfg       Config

	locks sync.Map // vehicle id -> *sync.Mutex
}

// New wires an engine over the store.
func New(store db.Ledger, baseliner *Baseliner, cfg Config) *Engine {
	return &Engine{
		store:     store,
		baseliner: baseliner,
		validator: NewValidator(cfg),
		scorer:    NewScorer(cfg),
		cfg:       cfg,
	}
}

// Baseliner exposes the engine's baseliner for scheduled rebuilds.
func (e *Engine) Baseliner() *Baseliner {
	return e.baseliner
}

func (e *Engine) lockVehicle(vehicleID string) func() {
	v, _ := e.locks.LoadOrStore(vehicleID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// TripChanges carries the fields of an update request; nil fields are left
// untouched. The vehicle reference of a trip is immutable.
type TripChanges struct {
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	StartKm       *float64   `json:"start_km,omitempty"`
	EndKm         *float64   `json:"end_km,omitempty"`
	FuelLiters    *float64   `json:"fuel_liters,omitempty"`
	GrossWeightKg *float64   `json:"gross_weight_kg,omitempty"`
	DriverID      *string    `json:"driver_id,omitempty"`
	Purpose       *string    `json:"purpose,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (ch *TripChanges) applyTo(t *models.Trip) {
	if ch.StartTime != nil {
		t.StartTime = *ch.StartTime
	}
	if ch.EndTime != nil {
		t.EndTime = *ch.EndTime
	}
	if ch.StartKm != nil {
		t.StartKm = *ch.StartKm
	}
	if ch.EndKm != nil {
		t.EndKm = *ch.EndKm
	}
	if ch.FuelLiters != nil {
		v := *ch.FuelLiters
		t.FuelLiters = &v
	}
	if ch.GrossWeightKg != nil {
		t.GrossWeightKg = *ch.GrossWeightKg
	}
	if ch.DriverID != nil {
		t.DriverID = *ch.DriverID
	}
	if ch.Purpose != nil {
		t.Purpose = *ch.Purpose
	}
	if ch.Notes != nil {
		t.Notes = *ch.Notes
	}
}

// vehicleProfile reads the vehicle's capacity profile; a missing vehicle just
// disables the profile-dependent checks.
func (e *Engine) vehicleProfile(ctx context.Context, vehicleID string) *models.CapacityProfile {
	v, err := e.store.VehicleByID(ctx, vehicleID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).WithField("vehicle_id", vehicleID).Warn("Failed to load vehicle profile")
		}
		return nil
	}
	return &v.Profile
}

func (e *Engine) driverTrips(ctx context.Context, driverID string) ([]models.Trip, error) {
	if driverID == "" {
		return nil, nil
	}
	return e.store.ActiveTripsByDriver(ctx, driverID)
}

// scoreTrip recomputes the trip's quality score and flags in place.
func (e *Engine) scoreTrip(ctx context.Context, t *models.Trip, profile *models.CapacityProfile) error {
	exp, err := e.baseliner.Lookup(ctx, t.VehicleID, models.SeasonOf(t.StartTime), e.cfg.LoadCategoryOf(t.GrossWeightKg))
	if err != nil {
		return fmt.Errorf("baseline lookup for trip %s: %w", t.ID.Hex(), err)
	}
	t.QualityScore, t.QualityFlags = e.scorer.Score(t, profile, exp)
	return nil
}

// mileageWarnings emits the LowOrHighMileage warning when a freshly computed
// mileage falls outside the vehicle's plausibility band.
func mileageWarnings(t *models.Trip, profile *models.CapacityProfile) []models.Warning {
	if t.Mileage == nil || profile == nil || profile.MaxPlausibleKmL <= 0 {
		return nil
	}
	if *t.Mileage >= profile.MinPlausibleKmL && *t.Mileage <= profile.MaxPlausibleKmL {
		return nil
	}
	return []models.Warning{{
		Code:   models.WarnLowOrHighMileage,
		Detail: fmt.Sprintf("mileage %.2f km/l outside plausible band [%.2f, %.2f]", *t.Mileage, profile.MinPlausibleKmL, profile.MaxPlausibleKmL),
	}}
}

func auditEvents(tripID string, warnings []models.Warning) []models.AuditEvent {
	events := make([]models.AuditEvent, 0, len(warnings))
	for _, w := range warnings {
		events = append(events, models.AuditEvent{TripID: tripID, Code: w.Code, Detail: w.Detail})
	}
	return events
}

// refreshBaselines rebuilds the vehicle's baseline table after a write that
// changed its refueling history. Failures are advisory only.
func (e *Engine) refreshBaselines(ctx context.Context, vehicleID string) {
	if _, err := e.baseliner.Rebuild(ctx, vehicleID); err != nil {
		log.WithError(err).WithField("vehicle_id", vehicleID).Warn("Baseline rebuild failed")
	}
}

func writeStatus(warnings []models.Warning) models.WriteStatus {
	if len(warnings) > 0 {
		return models.StatusAcceptedWithWarnings
	}
	return models.StatusAccepted
}

// SubmitTrip runs the full pipeline for a new trip. A rejection is reported in
// the result, not as an error; errors are infrastructure failures.
func (e *Engine) SubmitTrip(ctx context.Context, trip models.Trip) (*models.WriteResult, error) {
	if trip.VehicleID == "" {
		return nil, ErrVehicleRequired
	}
	unlock := e.lockVehicle(trip.VehicleID)
	defer unlock()

	vehicleTrips, err := e.store.ActiveTripsByVehicle(ctx, trip.VehicleID)
	if err != nil {
		return nil, err
	}
	driverTrips, err := e.driverTrips(ctx, trip.DriverID)
	if err != nil {
		return nil, err
	}
	profile := e.vehicleProfile(ctx, trip.VehicleID)

	warnings, rej := e.validator.Validate(&trip, vehicleTrips, driverTrips, profile)
	if rej != nil {
		log.WithFields(log.Fields{
			"vehicle_id": trip.VehicleID,
			"reason":     rej.Reason,
		}).Info("Trip rejected")
		return &models.WriteResult{Status: models.StatusRejected, Reason: rej.Reason}, nil
	}

	trip.ID = primitive.NewObjectID()
	trip.Deleted = false
	if trip.IsRefueling {
		pred := refuelPredecessor(vehicleTrips, &trip)
		trip.Mileage = computeMileage(&trip, pred)
		if pred != nil {
			trip.ChainPrevID = pred.ID.Hex()
		}
	}
	warnings = append(warnings, mileageWarnings(&trip, profile)...)

	if err := e.scoreTrip(ctx, &trip, profile); err != nil {
		return nil, err
	}

	ws := db.WriteSet{Insert: &trip, Audits: auditEvents(trip.ID.Hex(), warnings)}
	if err := e.store.ApplyWrite(ctx, ws); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"trip_id":    trip.ID.Hex(),
		"vehicle_id": trip.VehicleID,
		"refueling":  trip.IsRefueling,
		"warnings":   len(warnings),
	}).Info("Trip accepted")

	if trip.IsRefueling {
		e.refreshBaselines(ctx, trip.VehicleID)
	}
	return &models.WriteResult{Status: writeStatus(warnings), TripID: trip.ID.Hex(), Warnings: warnings}, nil
}

// UpdateTrip applies field changes to an existing trip. An end-odometer change
// triggers the correction cascade: every later active trip of the vehicle is
// shifted by the delta and the refueling chain is recomputed from the edit
// point, all within the same atomic unit.
func (e *Engine) UpdateTrip(ctx context.Context, id string, changes TripChanges) (*models.WriteResult, error) {
	orig, err := e.store.TripByID(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock := e.lockVehicle(orig.VehicleID)
	defer unlock()

	// Reload under the vehicle lock; another write may have landed in between.
	orig, err = e.store.TripByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.Deleted {
		return nil, fmt.Errorf("trip %s is soft-deleted", id)
	}

	updated := orig.Clone()
	changes.applyTo(&updated)

	vehicleTrips, err := e.store.ActiveTripsByVehicle(ctx, orig.VehicleID)
	if err != nil {
		return nil, err
	}
	driverTrips, err := e.driverTrips(ctx, updated.DriverID)
	if err != nil {
		return nil, err
	}
	profile := e.vehicleProfile(ctx, orig.VehicleID)

	warnings, rej := e.validator.Validate(&updated, vehicleTrips, driverTrips, profile)
	if rej != nil {
		log.WithFields(log.Fields{
			"trip_id": id,
			"reason":  rej.Reason,
		}).Info("Trip update rejected")
		return &models.WriteResult{Status: models.StatusRejected, TripID: id, Reason: rej.Reason}, nil
	}

	// Working copy of the vehicle's active trips with the edit applied.
	working := make([]models.Trip, 0, len(vehicleTrips))
	for i := range vehicleTrips {
		if vehicleTrips[i].ID == updated.ID {
			working = append(working, updated)
		} else {
			working = append(working, vehicleTrips[i])
		}
	}

	endKmDelta := updated.EndKm - orig.EndKm
	correlationID := uuid.NewString()
	touched, corrections := runCascade(working, updated.ID, orig.StartTime, endKmDelta, correlationID)
	if endKmDelta != 0 {
		log.WithFields(log.Fields{
			"trip_id":        id,
			"delta_km":       endKmDelta,
			"shifted":        len(touched),
			"correlation_id": correlationID,
		}).Info("Odometer correction cascade")
	}

	var updates []models.Trip
	for i := range working {
		t := &working[i]
		if t.ID != updated.ID && !touched[t.ID.Hex()] {
			continue
		}
		if err := e.scoreTrip(ctx, t, profile); err != nil {
			return nil, err
		}
		updates = append(updates, *t)
		if t.ID == updated.ID {
			warnings = append(warnings, mileageWarnings(t, profile)...)
		}
	}

	ws := db.WriteSet{Updates: updates, Corrections: corrections, Audits: auditEvents(id, warnings)}
	if err := e.store.ApplyWrite(ctx, ws); err != nil {
		return nil, err
	}

	if updated.IsRefueling || endKmDelta != 0 {
		e.refreshBaselines(ctx, orig.VehicleID)
	}
	return &models.WriteResult{Status: writeStatus(warnings), TripID: id, Warnings: warnings}, nil
}

// DeleteTrip removes a trip. A refueling trip with an active non-refueling
// dependent (a trip starting after it and before the next refueling trip) is
// soft-deleted instead, keeping its historical mileage for display; the
// request still succeeds, reported as SoftDeleted.
func (e *Engine) DeleteTrip(ctx context.Context, id string) (*models.WriteResult, error) {
	orig, err := e.store.TripByID(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock := e.lockVehicle(orig.VehicleID)
	defer unlock()

	orig, err = e.store.TripByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !orig.IsRefueling || orig.Deleted {
		if err := e.store.ApplyWrite(ctx, db.WriteSet{DeleteID: id}); err != nil {
			return nil, err
		}
		log.WithField("trip_id", id).Info("Trip deleted")
		return &models.WriteResult{Status: models.StatusAccepted, TripID: id}, nil
	}

	trips, err := e.store.ActiveTripsByVehicle(ctx, orig.VehicleID)
	if err != nil {
		return nil, err
	}

	// The next refueling trip bounds the window in which dependents live.
	var nextRefuel *models.Trip
	for i := range trips {
		t := &trips[i]
		if !t.IsRefueling || t.ID == orig.ID || t.EndTime.Before(orig.EndTime) {
			continue
		}
		if nextRefuel == nil || t.EndTime.Before(nextRefuel.EndTime) {
			nextRefuel = t
		}
	}
	dependent := false
	for i := range trips {
		t := &trips[i]
		if t.IsRefueling || t.StartTime.Before(orig.EndTime) {
			continue
		}
		if nextRefuel == nil || t.StartTime.Before(nextRefuel.StartTime) {
			dependent = true
			break
		}
	}

	if dependent {
		soft := orig.Clone()
		soft.Deleted = true // historical mileage retained for display
		if err := e.store.ApplyWrite(ctx, db.WriteSet{Updates: []models.Trip{soft}}); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"trip_id":    id,
			"vehicle_id": orig.VehicleID,
		}).Info("Refueling trip soft-deleted")
		e.refreshBaselines(ctx, orig.VehicleID)
		return &models.WriteResult{Status: models.StatusSoftDeleted, TripID: id}, nil
	}

	// Hard delete: the following refueling trip, if any, chains to a new
	// predecessor and its mileage is re-derived.
	ws := db.WriteSet{DeleteID: id}
	if nextRefuel != nil {
		remaining := make([]models.Trip, 0, len(trips)-1)
		for i := range trips {
			if trips[i].ID != orig.ID {
				remaining = append(remaining, trips[i])
			}
		}
		relinked := nextRefuel.Clone()
		pred := refuelPredecessor(remaining, &relinked)
		newMileage := computeMileage(&relinked, pred)
		prevID := ""
		if pred != nil {
			prevID = pred.ID.Hex()
		}
		if !mileageEqual(relinked.Mileage, newMileage) || relinked.ChainPrevID != prevID {
			correlationID := uuid.NewString()
			ws.Corrections = append(ws.Corrections, models.CorrectionRecord{
				TripID:        relinked.ID.Hex(),
				Field:         "mileage",
				OldValue:      copyMileage(relinked.Mileage),
				NewValue:      copyMileage(newMileage),
				Cascade:       true,
				CorrelationID: correlationID,
			})
			relinked.Mileage = newMileage
			relinked.ChainPrevID = prevID
			profile := e.vehicleProfile(ctx, orig.VehicleID)
			if err := e.scoreTrip(ctx, &relinked, profile); err != nil {
				return nil, err
			}
			ws.Updates = append(ws.Updates, relinked)
		}
	}
	if err := e.store.ApplyWrite(ctx, ws); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"trip_id":    id,
		"vehicle_id": orig.VehicleID,
	}).Info("Refueling trip deleted")
	e.refreshBaselines(ctx, orig.VehicleID)
	return &models.WriteResult{Status: models.StatusAccepted, TripID: id}, nil
}

// RecomputeChain replays the vehicle's whole refueling chain in one ordered
// pass and persists any drifted mileage values. It is idempotent: a second
// pass with no intervening writes changes nothing.
func (e *Engine) RecomputeChain(ctx context.Context, vehicleID string) (int, error) {
	unlock := e.lockVehicle(vehicleID)
	defer unlock()

	trips, err := e.store.ActiveTripsByVehicle(ctx, vehicleID)
	if err != nil {
		return 0, err
	}
	profile := e.vehicleProfile(ctx, vehicleID)
	correlationID := uuid.NewString()

	var ws db.WriteSet
	for i := range trips {
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
			continue
		}
		ws.Corrections = append(ws.Corrections, models.CorrectionRecord{
			TripID:        t.ID.Hex(),
			Field:         "mileage",
			OldValue:      copyMileage(t.Mileage),
			NewValue:      copyMileage(newMileage),
			Cascade:       true,
			CorrelationID: correlationID,
		})
		t.Mileage = newMileage
		t.ChainPrevID = prevID
		if err := e.scoreTrip(ctx, t, profile); err != nil {
			return 0, err
		}
		ws.Updates = append(ws.Updates, *t)
	}
	if ws.Empty() {
		return 0, nil
	}
	if err := e.store.ApplyWrite(ctx, ws); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"vehicle_id": vehicleID,
		"repaired":   len(ws.Updates),
	}).Info("Refueling chain recomputed")
	e.refreshBaselines(ctx, vehicleID)
	return len(ws.Updates), nil
}
