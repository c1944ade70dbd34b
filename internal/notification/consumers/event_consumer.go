package consumers

import (
	"context"

	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

// QueueName is the durable queue the worker reads domain events from
const QueueName = "qerbie-worker.notifications"

// Handlers reacts to the events that produce customer messages
type Handlers interface {
	TicketCalled(ctx context.Context, event *messaging.Event) error
	OrderStatusChanged(ctx context.Context, event *messaging.Event) error
	RequestDecided(ctx context.Context, event *messaging.Event) error
	SlotBooked(ctx context.Context, event *messaging.Event) error
}

// Routes maps each consumed event type to its handler
func Routes(h Handlers) map[string]messaging.MessageHandler {
	return map[string]messaging.MessageHandler{
		messaging.EventTicketCalled:       h.TicketCalled,
		messaging.EventOrderStatusChanged: h.OrderStatusChanged,
		messaging.EventRequestDecided:     h.RequestDecided,
		messaging.EventSlotBooked:         h.SlotBooked,
	}
}

// EventConsumer feeds domain events to the notifier
type EventConsumer struct {
	consumer *messaging.Consumer
	logger   *logger.Logger
}

// NewEventConsumer declares the queue, binds it for every handled event type and registers the handlers
func NewEventConsumer(rmq *messaging.RabbitMQ, h Handlers, log *logger.Logger) (*EventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueName, log)
	if err != nil {
		return nil, err
	}

	for eventType, handler := range Routes(h) {
		if err := consumer.Subscribe(messaging.ExchangeEvents, eventType); err != nil {
			return nil, err
		}
		consumer.RegisterHandler(eventType, handler)
	}

	return &EventConsumer{consumer: consumer, logger: log}, nil
}

// Start starts consuming messages
func (c *EventConsumer) Start(ctx context.Context) error {
	c.logger.Info().Strs("events", c.consumer.EventTypes()).Msg("starting notification consumer")
	return c.consumer.Start(ctx)
}
