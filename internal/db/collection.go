package db

import (
	"context"
	"errors"

	"github.com/fleetops/tripledger/internal/models"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// WriteSet bundles every mutation produced by one trip-write pipeline run.
// A store applies the whole set atomically: either all of it becomes visible
// or none of it does.
type WriteSet struct {
	Insert      *models.Trip              // new trip (ID pre-assigned by the caller)
	Updates     []models.Trip             // full replacements, matched by ID
	DeleteID    string                    // hard delete, hex ID
	Corrections []models.CorrectionRecord
	Audits      []models.AuditEvent
}

// Empty reports whether the set carries no mutations.
func (w *WriteSet) Empty() bool {
	return w.Insert == nil && len(w.Updates) == 0 && w.DeleteID == "" &&
		len(w.Corrections) == 0 && len(w.Audits) == 0
}

// Ledger is the storage interface the engine runs against. Trip queries
// return active (non-deleted) trips in ascending start-time order.
type Ledger interface {
	TripByID(ctx context.Context, id string) (*models.Trip, error)
	ActiveTripsByVehicle(ctx context.Context, vehicleID string) ([]models.Trip, error)
	ActiveTripsByDriver(ctx context.Context, driverID string) ([]models.Trip, error)
	VehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	ApplyWrite(ctx context.Context, ws WriteSet) error

	BaselinesByVehicle(ctx context.Context, vehicleID string) ([]models.Baseline, error)
	ReplaceBaselines(ctx context.Context, vehicleID string, baselines []models.Baseline) error
	CorrectionsByTrip(ctx context.Context, tripID string) ([]models.CorrectionRecord, error)
	AuditEventsByTrip(ctx context.Context, tripID string) ([]models.AuditEvent, error)
}
