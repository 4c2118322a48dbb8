package handlers

import (
	"net/http"
	"strings"

	"github.com/fleetops/tripledger/internal/engine"
	"github.com/fleetops/tripledger/internal/models"
	log "github.com/sirupsen/logrus"
)

// VehicleHandler exposes per-vehicle derived data: the baseline table and the
// chain maintenance operations.
type VehicleHandler struct {
	engine *engine.Engine
}

// NewVehicleHandler creates a vehicle handler.
func NewVehicleHandler(eng *engine.Engine) *VehicleHandler {
	return &VehicleHandler{engine: eng}
}

// Vehicle handles /api/vehicles/{id}/baselines (GET, POST rebuild) and
// POST /api/vehicles/{id}/recompute.
func (h *VehicleHandler) Vehicle(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	id := parts[0]

	switch parts[1] {
	case "baselines":
		switch r.Method {
		case http.MethodGet:
			h.baselines(w, r, id)
		case http.MethodPost:
			h.rebuild(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "recompute":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.recompute(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *VehicleHandler) baselines(w http.ResponseWriter, r *http.Request, id string) {
	baselines, err := h.engine.Baseliner().Table(r.Context(), id)
	if err != nil {
		log.WithError(err).WithField("vehicle_id", id).Error("Baseline table load failed")
		http.Error(w, "Failed to load baselines", http.StatusInternalServerError)
		return
	}
	if baselines == nil {
		baselines = []models.Baseline{}
	}
	writeJSON(w, http.StatusOK, baselines)
}

func (h *VehicleHandler) rebuild(w http.ResponseWriter, r *http.Request, id string) {
	baselines, err := h.engine.Baseliner().Rebuild(r.Context(), id)
	if err != nil {
		log.WithError(err).WithField("vehicle_id", id).Error("Baseline rebuild failed")
		http.Error(w, "Failed to rebuild baselines", http.StatusInternalServerError)
		return
	}
	if baselines == nil {
		baselines = []models.Baseline{}
	}
	writeJSON(w, http.StatusOK, baselines)
}

func (h *VehicleHandler) recompute(w http.ResponseWriter, r *http.Request, id string) {
	changed, err := h.engine.RecomputeChain(r.Context(), id)
	if err != nil {
		log.WithError(err).WithField("vehicle_id", id).Error("Chain recompute failed")
		http.Error(w, "Failed to recompute chain", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"repaired": changed})
}
