package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medflow/stockledger/pkg/config"
	"github.com/medflow/stockledger/pkg/logger"
)

// DeadLetterExchange receives messages a consumer rejected.
const DeadLetterExchange = "dlx.events"

// ErrNotConnected is returned while the connection is being re-established.
var ErrNotConnected = errors.New("rabbitmq: not connected")

// RabbitMQ owns one connection and channel. When the broker drops the
// channel it reconnects in the background; ready is closed while connected.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	ready   chan struct{}
	config  *config.RabbitMQConfig
	logger  *logger.Logger
	mu      sync.RWMutex
	closed  bool
}

// New connects to RabbitMQ, retrying up to cfg.MaxRetries times.
func New(ctx context.Context, cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		ready:  make(chan struct{}),
		config: cfg,
		logger: log.WithComponent("rabbitmq"),
	}

	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err = rmq.connect(); err == nil {
			return rmq, nil
		}
		rmq.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("RabbitMQ not reachable")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ReconnectDelay):
		}
	}
	return nil, err
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.mu.Lock()
	r.conn, r.channel = conn, ch
	close(r.ready)
	r.mu.Unlock()

	go r.watch(conn, ch.NotifyClose(make(chan *amqp.Error, 1)))

	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

// watch waits for the channel to close. A close without error came from
// Close; anything else triggers a reconnect loop.
func (r *RabbitMQ) watch(conn *amqp.Connection, closes <-chan *amqp.Error) {
	reason, ok := <-closes
	if !ok || reason == nil {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.channel = nil
	r.ready = make(chan struct{})
	r.mu.Unlock()

	_ = conn.Close()
	r.logger.Error().Err(reason).Msg("RabbitMQ channel lost, reconnecting")

	for {
		time.Sleep(r.config.ReconnectDelay)
		if r.isClosed() {
			return
		}
		err := r.connect()
		if err == nil {
			return
		}
		r.logger.Warn().Err(err).Msg("RabbitMQ reconnect failed")
	}
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// WaitReady blocks until a connection is available or ctx is done
func (r *RabbitMQ) WaitReady(ctx context.Context) error {
	r.mu.RLock()
	ready := r.ready
	r.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// currentChannel returns the open channel, or ErrNotConnected while
// reconnecting
func (r *RabbitMQ) currentChannel() (*amqp.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.channel == nil {
		return nil, ErrNotConnected
	}
	return r.channel, nil
}

// Close closes the RabbitMQ connection and stops reconnecting
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health returns the health status of RabbitMQ
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status": "up",
	}

	if r.channel == nil || r.conn == nil || r.conn.IsClosed() {
		status["status"] = "down"
		status["error"] = "not connected"
	}

	return status
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	ch, err := r.currentChannel()
	if err != nil {
		return err
	}
	return ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// DeclareQueue declares a durable queue that dead-letters into DeadLetterExchange
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	ch, err := r.currentChannel()
	if err != nil {
		return amqp.Queue{}, err
	}
	return ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	})
}

// DeclareDeadLetterQueue declares the dead letter exchange and the
// service's catch-all queue "dlq.<serviceName>".
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	ch, err := r.currentChannel()
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	queueName := "dlq." + serviceName
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(queueName, "#", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	return nil
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	ch, err := r.currentChannel()
	if err != nil {
		return err
	}
	return ch.QueueBind(queueName, routingKey, exchange, false, nil)
}
