package main

import (
	"net/http"

	"github.com/fleetops/tripledger/internal/cache"
	"github.com/fleetops/tripledger/internal/config"
	"github.com/fleetops/tripledger/internal/db"
	"github.com/fleetops/tripledger/internal/engine"
	"github.com/fleetops/tripledger/internal/handlers"
	"github.com/fleetops/tripledger/internal/ingest"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment")
	}
	cfg := config.Load()

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	log.Info("Connected to MongoDB")
	store := db.NewMongoLedger(client, cfg.MongoDatabase)

	baselineCache, err := cache.Connect()
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, baseline caching disabled")
		baselineCache = &cache.Cache{}
	}

	eng := engine.New(store, engine.NewBaseliner(store, baselineCache, cfg.Engine), cfg.Engine)

	if cfg.MQTTBroker != "" {
		sub, err := ingest.NewSubscriber(cfg.MQTTBroker, eng)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		if err := sub.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start trip ingest")
		}
		defer sub.Stop()
	}

	tripHandler := handlers.NewTripHandler(eng, store)
	vehicleHandler := handlers.NewVehicleHandler(eng)
	http.HandleFunc("/api/trips", tripHandler.Trips)
	http.HandleFunc("/api/trips/", tripHandler.Trip)
	http.HandleFunc("/api/vehicles/", vehicleHandler.Vehicle)

	log.WithField("port", cfg.Port).Info("HTTP server listening")
	log.Fatal(http.ListenAndServe(":"+cfg.Port, nil))
}
