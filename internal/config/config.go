package config

import (
	"os"
	"strconv"
	"time"

	"github.com/fleetops/tripledger/internal/engine"
)

// Config is the process configuration, read from environment variables with
// sensible defaults. A .env file, when present, is loaded by the entrypoint
// before this runs.
type Config struct {
	MongoDatabase string
	Port          string
	MQTTBroker    string // empty disables the MQTT ingest
	Engine        engine.Config
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// Load reads the configuration from the environment.
func Load() Config {
	defaults := engine.DefaultConfig()
	return Config{
		MongoDatabase: getEnv("MONGO_DATABASE", "tripledger"),
		Port:          getEnv("PORT", "8080"),
		MQTTBroker:    os.Getenv("MQTT_BROKER"),
		Engine: engine.Config{
			GapWarnKm:     getEnvFloat("GAP_WARN_KM", defaults.GapWarnKm),
			AnomalyRatio:  getEnvFloat("ANOMALY_RATIO", defaults.AnomalyRatio),
			MinSamples:    getEnvInt("BASELINE_MIN_SAMPLES", defaults.MinSamples),
			TargetSamples: getEnvInt("BASELINE_TARGET_SAMPLES", defaults.TargetSamples),
			LoadMediumKg:  getEnvFloat("LOAD_MEDIUM_KG", defaults.LoadMediumKg),
			LoadHeavyKg:   getEnvFloat("LOAD_HEAVY_KG", defaults.LoadHeavyKg),
			BaselineTTL:   getEnvDuration("BASELINE_CACHE_TTL", defaults.BaselineTTL),
		},
	}
}
