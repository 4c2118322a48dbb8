package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fleetops/tripledger/internal/db"
	"github.com/fleetops/tripledger/internal/engine"
	"github.com/fleetops/tripledger/internal/models"
	log "github.com/sirupsen/logrus"
)

// TripHandler exposes the write pipeline and its derived fields over HTTP.
type TripHandler struct {
	engine *engine.Engine
	store  db.Ledger
}

// NewTripHandler creates a trip handler.
func NewTripHandler(eng *engine.Engine, store db.Ledger) *TripHandler {
	return &TripHandler{engine: eng, store: store}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func resultStatus(r *models.WriteResult) int {
	switch r.Status {
	case models.StatusRejected:
		return http.StatusUnprocessableEntity
	case models.StatusAccepted, models.StatusAcceptedWithWarnings, models.StatusSoftDeleted:
		return http.StatusOK
	default:
		return http.StatusOK
	}
}

// Trips handles POST /api/trips.
func (h *TripHandler) Trips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var trip models.Trip
	if err := json.Unmarshal(body, &trip); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if trip.VehicleID == "" {
		http.Error(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.engine.SubmitTrip(r.Context(), trip)
	if err != nil {
		log.WithError(err).Error("Trip submit failed")
		http.Error(w, "Failed to process trip", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resultStatus(result), result)
}

// Trip handles /api/trips/{id} and its subresources:
// PATCH /api/trips/{id}, DELETE /api/trips/{id},
// GET /api/trips/{id}/quality, GET /api/trips/{id}/corrections.
func (h *TripHandler) Trip(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/trips/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Trip ID is required", http.StatusBadRequest)
		return
	}
	id := parts[0]

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "quality":
			h.quality(w, r, id)
		case "corrections":
			h.corrections(w, r, id)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPatch:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TripHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	trip, err := h.store.TripByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Trip not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to load trip", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var changes engine.TripChanges
	if err := json.Unmarshal(body, &changes); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result, err := h.engine.UpdateTrip(r.Context(), id, changes)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Trip not found", http.StatusNotFound)
			return
		}
		log.WithError(err).WithField("trip_id", id).Error("Trip update failed")
		http.Error(w, "Failed to update trip", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resultStatus(result), result)
}

func (h *TripHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.engine.DeleteTrip(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Trip not found", http.StatusNotFound)
			return
		}
		log.WithError(err).WithField("trip_id", id).Error("Trip delete failed")
		http.Error(w, "Failed to delete trip", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resultStatus(result), result)
}

func (h *TripHandler) quality(w http.ResponseWriter, r *http.Request, id string) {
	trip, err := h.store.TripByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Trip not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to load trip", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trip_id":       trip.ID.Hex(),
		"mileage":       trip.Mileage,
		"quality_score": trip.QualityScore,
		"quality_flags": trip.QualityFlags,
	})
}

func (h *TripHandler) corrections(w http.ResponseWriter, r *http.Request, id string) {
	records, err := h.store.CorrectionsByTrip(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load corrections", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.CorrectionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
