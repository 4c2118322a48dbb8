package engine

import (
	"time"

	"github.com/fleetops/tripledger/internal/models"
)

// Config holds the engine's tunable thresholds.
type Config struct {
	GapWarnKm     float64       // odometer gap above which a write is accepted with a warning
	AnomalyRatio  float64       // relative mileage deviation that raises the anomaly flag
	MinSamples    int           // bucket sample count below which no baseline is published
	TargetSamples int           // sample count at which baseline confidence reaches 1.0
	LoadMediumKg  float64       // gross weight at or above which load is "medium"
	LoadHeavyKg   float64       // gross weight at or above which load is "heavy"
	BaselineTTL   time.Duration // baseline cache entry lifetime
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		GapWarnKm:     50,
		AnomalyRatio:  0.15,
		MinSamples:    5,
		TargetSamples: 20,
		LoadMediumKg:  1000,
		LoadHeavyKg:   3000,
		BaselineTTL:   5 * time.Minute,
	}
}

// LoadCategoryOf buckets a gross weight against the configured thresholds.
func (c Config) LoadCategoryOf(grossWeightKg float64) models.LoadCategory {
	switch {
	case grossWeightKg >= c.LoadHeavyKg:
		return models.LoadHeavy
	case grossWeightKg >= c.LoadMediumKg:
		return models.LoadMedium
	default:
		return models.LoadLight
	}
}
