package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/coldtruck/coldtruck-backend/internal/models"
)

// Event types
const (
	EventTripStarted  = "trip.started"
	EventTripFinished = "trip.finished"
	EventTripCanceled = "trip.canceled"
)

var eventStatus = map[string]models.TripStatus{
	EventTripStarted:  models.TripStatusOnTrip,
	EventTripFinished: models.TripStatusFinished,
	EventTripCanceled: models.TripStatusCanceled,
}

// TripEvent is published after a trip transition commits
type TripEvent struct {
	Type       string            `json:"type"`
	TripID     uint              `json:"tripId"`
	Status     models.TripStatus `json:"status"`
	DriverID   uint              `json:"IDDriver,omitempty"`
	TruckID    uint              `json:"IDTruck,omitempty"`
	BoxID      *uint             `json:"IDBox,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewTripEvent describes the state trip is in after eventType took effect
func NewTripEvent(eventType string, trip *models.Trip, at time.Time) TripEvent {
	return TripEvent{
		Type:       eventType,
		TripID:     trip.ID,
		Status:     eventStatus[eventType],
		DriverID:   trip.DriverID,
		TruckID:    trip.TruckID,
		BoxID:      trip.BoxID,
		OccurredAt: at.UTC(),
	}
}

// EventPublisher delivers trip events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event TripEvent) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TripEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

// KafkaPublisher writes events to a Kafka topic keyed by trip id, so all
// events of one trip land on the same partition in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a synchronous producer to brokers
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Retry.Backoff = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Net.DialTimeout = 10 * time.Second
	config.Net.WriteTimeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event TripEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(event.TripID), 10)),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("send %s event for trip %d: %w", event.Type, event.TripID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
