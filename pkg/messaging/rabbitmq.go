package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ owns the broker connection and the single channel publishers and consumers share
type RabbitMQ struct {
	cfg    *config.RabbitMQConfig
	logger *logger.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// HealthStatus is the broker part of the /health payload
type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// New connects to the broker, retrying up to cfg.MaxRetries times
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{cfg: cfg, logger: log}
	if err := r.dial(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// dial opens connection and channel, waiting ReconnectDelay between attempts.
// Callers that share r must hold mu.
func (r *RabbitMQ) dial(ctx context.Context) error {
	attempts := r.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = r.open(); err == nil {
			r.logger.Info().Int("attempt", i).Msg("connected to RabbitMQ")
			return nil
		}
		r.logger.Warn().Err(err).Int("attempt", i).Int("max_attempts", attempts).Msg("RabbitMQ not reachable")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}
	return fmt.Errorf("connect to RabbitMQ after %d attempts: %w", attempts, err)
}

func (r *RabbitMQ) open() error {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("set prefetch: %w", err)
	}
	r.conn, r.channel = conn, ch
	return nil
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Connection returns the current connection
func (r *RabbitMQ) Connection() *amqp.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

// Close closes channel and connection; WatchConnection stops reconnecting afterwards
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports whether the connection is open
func (r *RabbitMQ) Health() HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return HealthStatus{Status: "down", Error: "connection closed"}
	}
	return HealthStatus{Status: "up"}
}

func declareTopic(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

// DeclareTopic declares a durable topic exchange such as qerbie.events
func (r *RabbitMQ) DeclareTopic(name string) error {
	if err := declareTopic(r.Channel(), name); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

// DeadLetterQueueName is where messages rejected from queue end up
func DeadLetterQueueName(queue string) string {
	return "dlq." + queue
}

// DeclareWorkQueue declares a durable queue together with its dead letter queue.
// Rejected messages are routed through the dead letter exchange with the queue name
// as routing key, so each work queue keeps its own dlq.
func (r *RabbitMQ) DeclareWorkQueue(name string) error {
	ch := r.Channel()

	if err := declareTopic(ch, ExchangeDeadLetter); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeDeadLetter, err)
	}
	dlq := DeadLetterQueueName(name)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, name, ExchangeDeadLetter, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", dlq, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": name,
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// Bind routes messages matching pattern from exchange into queue
func (r *RabbitMQ) Bind(queue, exchange, pattern string) error {
	if err := r.Channel().QueueBind(queue, pattern, exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s (%s): %w", queue, exchange, pattern, err)
	}
	return nil
}

// WatchConnection reconnects when the broker closes the connection, until ctx is done.
// onReconnect runs after every successful reconnect so callers can redeclare topology and consumers.
func (r *RabbitMQ) WatchConnection(ctx context.Context, onReconnect func() error) {
	for {
		closed := r.Connection().NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-ctx.Done():
			return
		case amqpErr := <-closed:
			if r.isClosed() {
				return
			}
			r.logger.Warn().Interface("reason", amqpErr).Msg("RabbitMQ connection lost")
		}

		if err := r.Reconnect(ctx); err != nil {
			r.logger.Error().Err(err).Msg("giving up on RabbitMQ reconnect")
			return
		}
		if onReconnect != nil {
			if err := onReconnect(); err != nil {
				r.logger.Error().Err(err).Msg("failed to restore RabbitMQ topology")
			}
		}
	}
}

// Reconnect replaces a lost connection
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connection is permanently closed")
	}
	return r.dial(ctx)
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}
