package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fleetops/tripledger/internal/models"
)

// MemoryLedger is an in-process Ledger used by engine tests and the
// simulator's dry-run mode. Reads hand out copies, so callers never share
// state with the ledger. ApplyWrite validates the whole set before touching
// anything, keeping the same all-or-nothing contract as the Mongo ledger.
type MemoryLedger struct {
	mu          sync.RWMutex
	trips       map[string]models.Trip
	vehicles    map[string]models.Vehicle
	baselines   map[string][]models.Baseline
	corrections []models.CorrectionRecord
	audits      []models.AuditEvent
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		trips:     make(map[string]models.Trip),
		vehicles:  make(map[string]models.Vehicle),
		baselines: make(map[string][]models.Baseline),
	}
}

func copyTrip(t models.Trip) models.Trip {
	return t.Clone()
}

// AddVehicle seeds a vehicle profile.
func (s *MemoryLedger) AddVehicle(v models.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID.Hex()] = v
}

// TripByID finds a trip by its hex ID.
func (s *MemoryLedger) TripByID(ctx context.Context, id string) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyTrip(trip)
	return &out, nil
}

func (s *MemoryLedger) activeTrips(match func(*models.Trip) bool) []models.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Trip
	for _, trip := range s.trips {
		if trip.Deleted || !match(&trip) {
			continue
		}
		out = append(out, copyTrip(trip))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// ActiveTripsByVehicle returns the vehicle's active trips in start-time order.
func (s *MemoryLedger) ActiveTripsByVehicle(ctx context.Context, vehicleID string) ([]models.Trip, error) {
	return s.activeTrips(func(t *models.Trip) bool { return t.VehicleID == vehicleID }), nil
}

// ActiveTripsByDriver returns the driver's active trips in start-time order.
func (s *MemoryLedger) ActiveTripsByDriver(ctx context.Context, driverID string) ([]models.Trip, error) {
	return s.activeTrips(func(t *models.Trip) bool { return t.DriverID == driverID }), nil
}

// VehicleByID finds a vehicle by its hex ID.
func (s *MemoryLedger) VehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := v
	return &out, nil
}

// ApplyWrite applies all mutations of one pipeline run, or none of them.
func (s *MemoryLedger) ApplyWrite(ctx context.Context, ws WriteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before mutating so a failure leaves the ledger untouched.
	if ws.Insert != nil && ws.Insert.ID.IsZero() {
		return fmt.Errorf("insert without ID")
	}
	for _, trip := range ws.Updates {
		if _, ok := s.trips[trip.ID.Hex()]; !ok {
			return fmt.Errorf("update trip %s: %w", trip.ID.Hex(), ErrNotFound)
		}
	}
	if ws.DeleteID != "" {
		if _, ok := s.trips[ws.DeleteID]; !ok {
			return fmt.Errorf("delete trip %s: %w", ws.DeleteID, ErrNotFound)
		}
	}

	now := time.Now()
	if ws.Insert != nil {
		trip := copyTrip(*ws.Insert)
		trip.CreatedAt = now
		trip.UpdatedAt = now
		s.trips[trip.ID.Hex()] = trip
	}
	for _, trip := range ws.Updates {
		t := copyTrip(trip)
		t.UpdatedAt = now
		s.trips[t.ID.Hex()] = t
	}
	if ws.DeleteID != "" {
		delete(s.trips, ws.DeleteID)
	}
	for _, rec := range ws.Corrections {
		rec.CreatedAt = now
		s.corrections = append(s.corrections, rec)
	}
	for _, ev := range ws.Audits {
		ev.CreatedAt = now
		s.audits = append(s.audits, ev)
	}
	return nil
}

// BaselinesByVehicle returns the vehicle's baseline table.
func (s *MemoryLedger) BaselinesByVehicle(ctx context.Context, vehicleID string) ([]models.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Baseline(nil), s.baselines[vehicleID]...), nil
}

// ReplaceBaselines swaps the vehicle's baseline table.
func (s *MemoryLedger) ReplaceBaselines(ctx context.Context, vehicleID string, baselines []models.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[vehicleID] = append([]models.Baseline(nil), baselines...)
	return nil
}

// CorrectionsByTrip returns the correction audit log for one trip.
func (s *MemoryLedger) CorrectionsByTrip(ctx context.Context, tripID string) ([]models.CorrectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CorrectionRecord
	for _, rec := range s.corrections {
		if rec.TripID == tripID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AuditEventsByTrip returns the warning audit events for one trip.
func (s *MemoryLedger) AuditEventsByTrip(ctx context.Context, tripID string) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AuditEvent
	for _, ev := range s.audits {
		if ev.TripID == tripID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// TripCount reports the number of stored trips, active or not.
func (s *MemoryLedger) TripCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trips)
}
