package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetops/tripledger/internal/db"
	"github.com/fleetops/tripledger/internal/engine"
	"github.com/fleetops/tripledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*TripHandler, *VehicleHandler, *db.MemoryLedger) {
	store := db.NewMemoryLedger()
	cfg := engine.DefaultConfig()
	eng := engine.New(store, engine.NewBaseliner(store, nil, cfg), cfg)
	return NewTripHandler(eng, store), NewVehicleHandler(eng), store
}

func postTrip(t *testing.T, h *TripHandler, trip map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(trip)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewBuffer(data))
	w := httptest.NewRecorder()
	h.Trips(w, req)
	return w
}

func validTrip(vehicleID string, hourOffset int, startKm, endKm float64) map[string]interface{} {
	base := time.Date(2025, time.May, 10, 8, 0, 0, 0, time.UTC).Add(time.Duration(hourOffset) * time.Hour)
	return map[string]interface{}{
		"vehicle_id": vehicleID,
		"driver_id":  "drv-1",
		"start_time": base.Format(time.RFC3339),
		"end_time":   base.Add(2 * time.Hour).Format(time.RFC3339),
		"start_km":   startKm,
		"end_km":     endKm,
		"purpose":    "delivery",
	}
}

func TestTripsPostAccepted(t *testing.T) {
	h, _, _ := newTestHandler()
	w := postTrip(t, h, validTrip("v1", 0, 100, 200))
	require.Equal(t, http.StatusOK, w.Code)

	var result models.WriteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.StatusAccepted, result.Status)
	assert.NotEmpty(t, result.TripID)
}

func TestTripsPostInvalidJSON(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewBufferString("{bad json"))
	w := httptest.NewRecorder()
	h.Trips(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTripsPostMissingVehicle(t *testing.T) {
	h, _, _ := newTestHandler()
	trip := validTrip("", 0, 100, 200)
	w := postTrip(t, h, trip)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTripsPostRejectedIsUnprocessable(t *testing.T) {
	h, _, _ := newTestHandler()
	require.Equal(t, http.StatusOK, postTrip(t, h, validTrip("v1", 0, 100, 200)).Code)

	// Same window again: overlap.
	w := postTrip(t, h, validTrip("v1", 0, 200, 300))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var result models.WriteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.StatusRejected, result.Status)
	assert.Equal(t, models.ReasonTimeOverlap, result.Reason)
}

func TestTripsMethodNotAllowed(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
	w := httptest.NewRecorder()
	h.Trips(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTripPatchAndQuality(t *testing.T) {
	h, _, _ := newTestHandler()
	w := postTrip(t, h, validTrip("v1", 0, 100, 200))
	require.Equal(t, http.StatusOK, w.Code)
	var created models.WriteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	patch, _ := json.Marshal(map[string]interface{}{"end_km": 250})
	req := httptest.NewRequest(http.MethodPatch, "/api/trips/"+created.TripID, bytes.NewBuffer(patch))
	w = httptest.NewRecorder()
	h.Trip(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/trips/%s/quality", created.TripID), nil)
	w = httptest.NewRecorder()
	h.Trip(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var quality struct {
		TripID       string   `json:"trip_id"`
		QualityScore float64  `json:"quality_score"`
		QualityFlags []string `json:"quality_flags"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quality))
	assert.Equal(t, created.TripID, quality.TripID)
	assert.GreaterOrEqual(t, quality.QualityScore, 0.0)
	assert.LessOrEqual(t, quality.QualityScore, 100.0)
}

func TestTripDeleteAndNotFound(t *testing.T) {
	h, _, store := newTestHandler()
	w := postTrip(t, h, validTrip("v1", 0, 100, 200))
	require.Equal(t, http.StatusOK, w.Code)
	var created models.WriteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodDelete, "/api/trips/"+created.TripID, nil)
	w = httptest.NewRecorder()
	h.Trip(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.TripCount())

	req = httptest.NewRequest(http.MethodDelete, "/api/trips/"+created.TripID, nil)
	w = httptest.NewRecorder()
	h.Trip(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTripCorrectionsEmptyList(t *testing.T) {
	h, _, _ := newTestHandler()
	w := postTrip(t, h, validTrip("v1", 0, 100, 200))
	var created models.WriteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/trips/%s/corrections", created.TripID), nil)
	rec := httptest.NewRecorder()
	h.Trip(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestVehicleBaselinesAndRecompute(t *testing.T) {
	h, vh, _ := newTestHandler()
	// Seed a refueling trip so the vehicle has chain state.
	trip := validTrip("v1", 0, 100, 500)
	trip["is_refueling"] = true
	trip["fuel_liters"] = 40
	require.Equal(t, http.StatusOK, postTrip(t, h, trip).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles/v1/baselines", nil)
	w := httptest.NewRecorder()
	vh.Vehicle(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/vehicles/v1/recompute", nil)
	w = httptest.NewRecorder()
	vh.Vehicle(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"repaired":0}`, w.Body.String())
}
