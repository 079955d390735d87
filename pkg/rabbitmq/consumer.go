package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ConsumerConfig holds configuration for setting up a consumer.
type ConsumerConfig struct {
	QueueName    string
	DLQName      string
	RoutingKeys  []string
	ConsumerName string
}

// QueueNames returns the main queue and DLQ names for a named consumer.
func QueueNames(consumer string) (queue, dlq string) {
	queue = consumer + ".track.events"
	return queue, "dlq." + queue
}

// MessageHandler processes a delivered message.
// Return nil to ack, return error to nack (message goes to the DLQ).
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// SetupConsumer declares the queues (main + DLQ), binds them, and consumes
// until ctx is cancelled or the channel closes.
func SetupConsumer(ctx context.Context, conn *Connection, cfg ConsumerConfig, handler MessageHandler, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareExchange(ch); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.DLQName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq %s: %w", cfg.DLQName, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "", // default exchange
		"x-dead-letter-routing-key": cfg.DLQName,
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	for _, key := range cfg.RoutingKeys {
		if err := ch.QueueBind(cfg.QueueName, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", cfg.QueueName, key, err)
		}
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		cfg.QueueName,
		cfg.ConsumerName,
		false, // auto-ack = false (manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.QueueName, err)
	}

	log = log.With().Str("consumer", cfg.ConsumerName).Logger()
	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Warn().Msg("delivery channel closed")
					return
				}
				process(ctx, msg, handler, log)
			}
		}
	}()

	log.Info().Str("queue", cfg.QueueName).Msg("consumer started")
	return nil
}

// process runs the handler and settles the delivery. Failed messages are not
// requeued, so the broker dead-letters them.
func process(ctx context.Context, msg amqp.Delivery, handler MessageHandler, log zerolog.Logger) {
	log.Debug().
		Str("routing_key", msg.RoutingKey).
		Str("correlation_id", msg.CorrelationId).
		Msg("received message")

	if err := handler(ctx, msg); err != nil {
		log.Error().Err(err).
			Str("routing_key", msg.RoutingKey).
			Str("correlation_id", msg.CorrelationId).
			Msg("error processing message, nacking to dlq")
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}
