package engine

import (
	"context"
	"time"

	"github.com/fleetops/tripledger/internal/db"
	"github.com/fleetops/tripledger/internal/models"
	log "github.com/sirupsen/logrus"
)

// BaselineCache is the optional read-through cache in front of the baseline
// table. A nil cache disables caching entirely.
type BaselineCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Expectation is the looked-up mileage expectation for one trip.
type Expectation struct {
	Mean       float64
	Confidence float64
	Found      bool
}

// Anomalous reports whether a computed mileage deviates from the expectation
// by more than the given ratio. Confidence is reported alongside the flag but
// never suppresses it.
func (e Expectation) Anomalous(mileage, ratio float64) bool {
	if !e.Found || e.Mean == 0 {
		return false
	}
	dev := (mileage - e.Mean) / e.Mean
	if dev < 0 {
		dev = -dev
	}
	return dev > ratio
}

// Baseliner maintains the per-vehicle, season/load-segmented mileage
// baselines. Baselines are rebuilt on demand from the active refueling trips
// and cached; trip writes read the possibly stale cached table, which is
// acceptable because anomaly detection is advisory.
type Baseliner struct {
	store db.Ledger
	cache BaselineCache
	cfg   Config
}

// NewBaseliner wires a baseliner over the store, with an optional cache.
func NewBaseliner(store db.Ledger, cache BaselineCache, cfg Config) *Baseliner {
	return &Baseliner{store: store, cache: cache, cfg: cfg}
}

func cacheKey(vehicleID string) string {
	return "baseline:" + vehicleID
}

// Rebuild recomputes the vehicle's baseline table from its active refueling
// trips, persists it, and refreshes the cache. Buckets below the minimum
// sample count are not published.
func (b *Baseliner) Rebuild(ctx context.Context, vehicleID string) ([]models.Baseline, error) {
	trips, err := b.store.ActiveTripsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[[2]string]*bucket)
	for i := range trips {
		t := &trips[i]
		if !t.IsRefueling || t.Mileage == nil {
			continue
		}
		key := [2]string{string(models.SeasonOf(t.StartTime)), string(b.cfg.LoadCategoryOf(t.GrossWeightKg))}
		bk := buckets[key]
		if bk == nil {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.sum += *t.Mileage
		bk.count++
	}

	now := time.Now()
	var baselines []models.Baseline
	for key, bk := range buckets {
		if bk.count < b.cfg.MinSamples {
			continue
		}
		confidence := float64(bk.count) / float64(b.cfg.TargetSamples)
		if confidence > 1 {
			confidence = 1
		}
		baselines = append(baselines, models.Baseline{
			VehicleID:   vehicleID,
			Season:      models.Season(key[0]),
			Load:        models.LoadCategory(key[1]),
			MeanMileage: bk.sum / float64(bk.count),
			SampleCount: bk.count,
			Confidence:  confidence,
			ComputedAt:  now,
		})
	}

	if err := b.store.ReplaceBaselines(ctx, vehicleID, baselines); err != nil {
		return nil, err
	}
	if b.cache != nil {
		var err error
		if len(baselines) == 0 {
			err = b.cache.Delete(ctx, cacheKey(vehicleID))
		} else {
			err = b.cache.Set(ctx, cacheKey(vehicleID), baselines, b.cfg.BaselineTTL)
		}
		if err != nil {
			log.WithError(err).WithField("vehicle_id", vehicleID).Warn("Failed to refresh baseline cache")
		}
	}
	return baselines, nil
}

// Table returns the vehicle's baseline table, from cache when fresh.
func (b *Baseliner) Table(ctx context.Context, vehicleID string) ([]models.Baseline, error) {
	if b.cache != nil {
		var cached []models.Baseline
		hit, err := b.cache.Get(ctx, cacheKey(vehicleID), &cached)
		if err != nil {
			log.WithError(err).WithField("vehicle_id", vehicleID).Warn("Baseline cache read failed")
		} else if hit {
			return cached, nil
		}
	}
	baselines, err := b.store.BaselinesByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if len(baselines) == 0 {
		return b.Rebuild(ctx, vehicleID)
	}
	if b.cache != nil {
		if err := b.cache.Set(ctx, cacheKey(vehicleID), baselines, b.cfg.BaselineTTL); err != nil {
			log.WithError(err).WithField("vehicle_id", vehicleID).Warn("Failed to cache baseline table")
		}
	}
	return baselines, nil
}

// Lookup returns the expectation for a trip: its bucket's baseline when one is
// published, otherwise the vehicle's overall average mileage across all active
// refueling trips.
func (b *Baseliner) Lookup(ctx context.Context, vehicleID string, season models.Season, load models.LoadCategory) (Expectation, error) {
	baselines, err := b.Table(ctx, vehicleID)
	if err != nil {
		return Expectation{}, err
	}
	for _, bl := range baselines {
		if bl.Season == season && bl.Load == load {
			return Expectation{Mean: bl.MeanMileage, Confidence: bl.Confidence, Found: true}, nil
		}
	}

	// Fallback: overall average across the vehicle's active refueling trips.
	trips, err := b.store.ActiveTripsByVehicle(ctx, vehicleID)
	if err != nil {
		return Expectation{}, err
	}
	var sum float64
	var count int
	for i := range trips {
		t := &trips[i]
		if t.IsRefueling && t.Mileage != nil {
			sum += *t.Mileage
			count++
		}
	}
	if count == 0 {
		return Expectation{}, nil
	}
	confidence := float64(count) / float64(b.cfg.TargetSamples)
	if confidence > 1 {
		confidence = 1
	}
	return Expectation{Mean: sum / float64(count), Confidence: confidence, Found: true}, nil
}
