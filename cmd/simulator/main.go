package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Trip mirrors the engine's wire format for a trip submission.
type Trip struct {
	VehicleID     string    `json:"vehicle_id"`
	DriverID      string    `json:"driver_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	StartKm       float64   `json:"start_km"`
	EndKm         float64   `json:"end_km"`
	IsRefueling   bool      `json:"is_refueling"`
	FuelLiters    *float64  `json:"fuel_liters,omitempty"`
	GrossWeightKg float64   `json:"gross_weight_kg"`
	Purpose       string    `json:"purpose"`
}

// vehicleState tracks the rolling odometer and clock for one simulated vehicle.
type vehicleState struct {
	VehicleID string
	DriverID  string
	Odometer  float64
	Clock     time.Time
	SinceFuel float64 // km since last refuel
}

var purposes = []string{"business", "delivery", "personal"}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// nextTrip advances the vehicle one plausible trip. Roughly one in twelve
// submissions is deliberately broken to exercise the validator.
func nextTrip(v *vehicleState) Trip {
	distance := 40 + rand.Float64()*260
	duration := time.Duration(1+rand.Intn(8)) * time.Hour
	idle := time.Duration(1+rand.Intn(12)) * time.Hour

	trip := Trip{
		VehicleID:     v.VehicleID,
		DriverID:      v.DriverID,
		StartTime:     v.Clock.Add(idle),
		EndTime:       v.Clock.Add(idle).Add(duration),
		StartKm:       v.Odometer,
		EndKm:         v.Odometer + distance,
		GrossWeightKg: float64(rand.Intn(5000)),
		Purpose:       purposes[rand.Intn(len(purposes))],
	}

	v.SinceFuel += distance
	if v.SinceFuel > 400 {
		liters := v.SinceFuel / (8 + rand.Float64()*4) // 8-12 km/l
		trip.IsRefueling = true
		trip.FuelLiters = &liters
		v.SinceFuel = 0
	}

	switch rand.Intn(12) {
	case 0:
		trip.StartKm -= 30 // negative continuity gap
	case 1:
		trip.EndTime = trip.StartTime.Add(-time.Hour) // inverted dates
	case 2:
		trip.StartKm += 80 // large gap, accepted with warning
		trip.EndKm += 80
	}

	v.Odometer = trip.EndKm
	v.Clock = trip.EndTime
	return trip
}

func submit(apiURL string, trip Trip) error {
	data, err := json.Marshal(trip)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(apiURL+"/api/trips", "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		TripID string `json:"trip_id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	log.WithFields(log.Fields{
		"vehicle_id": trip.VehicleID,
		"status":     result.Status,
		"reason":     result.Reason,
		"refueling":  trip.IsRefueling,
	}).Info("Submitted trip")
	return nil
}

func main() {
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	numVehicles := envInt("NUM_VEHICLES", 5)
	interval := time.Duration(envInt("INTERVAL_MS", 2000)) * time.Millisecond

	vehicles := make([]*vehicleState, numVehicles)
	start := time.Now().AddDate(0, -6, 0)
	for i := range vehicles {
		vehicles[i] = &vehicleState{
			VehicleID: fmt.Sprintf("veh-%03d", i+1),
			DriverID:  fmt.Sprintf("drv-%03d", i+1),
			Odometer:  float64(20000 + rand.Intn(80000)),
			Clock:     start,
		}
	}

	log.WithFields(log.Fields{
		"api_url":  apiURL,
		"vehicles": numVehicles,
	}).Info("Trip simulator started")

	for {
		v := vehicles[rand.Intn(len(vehicles))]
		if err := submit(apiURL, nextTrip(v)); err != nil {
			log.WithError(err).Warn("Trip submission failed")
		}
		time.Sleep(interval)
	}
}
