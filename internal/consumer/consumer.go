// Package consumer turns bus deliveries into tracker dispatches.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"trackersync/internal/tracker"
	"trackersync/pkg/models"
)

// Dispatcher is satisfied by *tracker.Dispatcher[models.TrackEvent].
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, ref models.EventTrackUser, event models.TrackEvent) tracker.Result
}

// Consumer decodes track events and hands them to its dispatchers in order.
type Consumer struct {
	dispatchers []Dispatcher
	log         zerolog.Logger
}

// New creates a Consumer.
func New(log zerolog.Logger, dispatchers ...Dispatcher) *Consumer {
	return &Consumer{dispatchers: dispatchers, log: log}
}

// HandleMessage processes one delivery. Only malformed messages return an
// error; dispatch failures are contained by the dispatchers and the message
// is acked.
func (c *Consumer) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {
	event, err := Decode(delivery)
	if err != nil {
		c.log.Error().Err(err).Str("correlation_id", delivery.CorrelationId).Msg("rejecting message")
		return err
	}

	log := c.log.With().
		Str("event_id", event.EventID).
		Str("event", event.Name).
		Str("correlation_id", event.CorrelationID).
		Logger()
	ctx = log.WithContext(ctx)

	for _, d := range c.dispatchers {
		res := d.Dispatch(ctx, event.User, event)
		log.Debug().
			Str("tracker", d.Name()).
			Str("outcome", res.Outcome.String()).
			Msg("dispatch settled")
	}
	return nil
}

// Decode parses and validates a track event delivery.
func Decode(delivery amqp.Delivery) (models.TrackEvent, error) {
	var event models.TrackEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return event, fmt.Errorf("unmarshal track event: %w", err)
	}
	if event.EventID == "" {
		return event, fmt.Errorf("track event without event_id")
	}
	if len(event.EventID) > models.MaxIDLen {
		return event, fmt.Errorf("event_id longer than %d characters", models.MaxIDLen)
	}
	if !models.ValidEventName(event.Name) {
		return event, fmt.Errorf("invalid event name %q", event.Name)
	}
	if event.CorrelationID == "" {
		event.CorrelationID = delivery.CorrelationId
	}
	if len(event.CorrelationID) > models.MaxIDLen {
		return event, fmt.Errorf("correlation_id longer than %d characters", models.MaxIDLen)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = delivery.Timestamp
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event, nil
}
