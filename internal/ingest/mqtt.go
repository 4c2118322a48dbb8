package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fleetops/tripledger/internal/engine"
	"github.com/fleetops/tripledger/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	submitTopic     = "fleet/trips/submit"
	resultTopicFmt  = "fleet/trips/result/%s"
	handlerDeadline = 30 * time.Second
)

// Submission is the wire form of a trip write arriving from a vehicle
// terminal. RequestID routes the result back to the sender.
type Submission struct {
	RequestID string      `json:"request_id"`
	Trip      models.Trip `json:"trip"`
}

// Subscriber feeds MQTT trip submissions into the engine and publishes the
// typed write result back per request.
type Subscriber struct {
	client mqtt.Client
	engine *engine.Engine
}

// NewSubscriber connects to the broker and returns a subscriber ready to start.
func NewSubscriber(broker string, eng *engine.Engine) (*Subscriber, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("tripledger-ingest").
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.WithField("broker", broker).Info("Connected to MQTT broker")
	return &Subscriber{client: client, engine: eng}, nil
}

// Start subscribes to the submit topic. Each message runs the full write
// pipeline; malformed payloads are logged and dropped, never retried.
func (s *Subscriber) Start() error {
	token := s.client.Subscribe(submitTopic, 1, s.handle)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe: %w", token.Error())
	}
	log.WithField("topic", submitTopic).Info("Trip ingest subscribed")
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
}

func (s *Subscriber) handle(client mqtt.Client, msg mqtt.Message) {
	var sub Submission
	if err := json.Unmarshal(msg.Payload(), &sub); err != nil {
		log.WithError(err).Warn("Dropping malformed trip submission")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerDeadline)
	defer cancel()

	envelope := struct {
		RequestID string              `json:"request_id"`
		Error     string              `json:"error,omitempty"`
		Result    *models.WriteResult `json:"result,omitempty"`
	}{RequestID: sub.RequestID}

	result, err := s.engine.SubmitTrip(ctx, sub.Trip)
	if err != nil {
		log.WithError(err).WithField("request_id", sub.RequestID).Error("Trip submission failed")
		envelope.Error = err.Error()
	} else {
		envelope.Result = result
	}

	if sub.RequestID == "" {
		return
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.WithError(err).Error("Failed to marshal write result")
		return
	}
	topic := fmt.Sprintf(resultTopicFmt, sub.RequestID)
	if token := s.client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).WithField("topic", topic).Error("Failed to publish write result")
	}
}
