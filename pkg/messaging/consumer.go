package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qerbie/qerbie-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how many times a failing event is redelivered before it is dead-lettered
const MaxRetries = 3

const retryHeader = "x-retry-count"

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger

	// republish sends a failed message back to the queue with a bumped retry header
	republish func(ctx context.Context, queue string, msg amqp.Publishing) error
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if err := rmq.DeclareWorkQueue(queueName); err != nil {
		return nil, err
	}

	c := &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}
	c.republish = func(ctx context.Context, queue string, msg amqp.Publishing) error {
		return rmq.Channel().PublishWithContext(ctx, "", queue, false, false, msg)
	}
	return c, nil
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareTopic(exchange); err != nil {
		return err
	}
	if err := c.rmq.Bind(c.queueName, exchange, routingKeyPattern); err != nil {
		return err
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// EventTypes returns the registered event types
func (c *Consumer) EventTypes() []string {
	types := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		types = append(types, t)
	}
	return types
}

// Start starts consuming messages from the queue
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("message channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		// Reject without requeue for malformed messages
		_ = msg.Reject(false)
		return
	}

	// Add correlation ID to context
	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		_ = msg.Ack(false)
		return
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	if err := handler(ctx, &event); err != nil {
		retryCount := getRetryCount(msg)

		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Int("retry_count", retryCount).
			Msg("failed to process event")

		if retryCount >= MaxRetries {
			c.logger.Warn().
				Str("event_id", event.ID).
				Int("retry_count", retryCount).
				Msg("max retries exceeded, sending to DLQ")
			_ = msg.Reject(false)
			return
		}

		headers := amqp.Table{}
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers[retryHeader] = int32(retryCount + 1)

		if err := c.republish(ctx, c.queueName, amqp.Publishing{
			ContentType:   msg.ContentType,
			DeliveryMode:  amqp.Persistent,
			MessageId:     msg.MessageId,
			CorrelationId: msg.CorrelationId,
			Timestamp:     msg.Timestamp,
			Headers:       headers,
			Body:          msg.Body,
		}); err != nil {
			// Could not schedule the retry ourselves; let the broker requeue it
			c.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to republish event for retry")
			_ = msg.Nack(false, true)
			return
		}

		_ = msg.Ack(false)
		return
	}

	_ = msg.Ack(false)
}

func getRetryCount(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}

	switch v := msg.Headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}

	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
