// Package bus wraps the RabbitMQ plumbing shared by all services: a durable
// fanout exchange with one durable queue per service, persistent messages,
// manual acks and sequential dispatch.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/NicolaiBoKunkel/e-commerce-project/internal/events"
)

const (
	// EventsExchange is the broadcast channel every service binds to.
	EventsExchange = "order.events"

	dialRetryInterval = 5 * time.Second
	publishTimeout    = 3 * time.Second
	handlerRetryDelay = time.Second
)

// QueueName returns the durable queue a service binds to the events exchange.
func QueueName(serviceName string) string {
	return serviceName + ".order.events"
}

// Dial keeps retrying until the broker accepts the connection. The broker and
// its dependents start concurrently in a distributed deployment, so failing
// fast on startup would just crash-loop every service.
func Dial(ctx context.Context, url string, logger *log.Logger) (*amqp.Connection, error) {
	for {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Printf("connect to RabbitMQ: %v (retrying in %s)", err, dialRetryInterval)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial rabbitmq: %w", ctx.Err())
		case <-time.After(dialRetryInterval):
		}
	}
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"fanout",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

// Publisher publishes envelopes to the events exchange.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// Publish delivers the envelope to every currently-bound queue. Messages are
// persistent so they survive a broker restart.
func (p *Publisher) Publish(ctx context.Context, env events.Envelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("refusing to publish invalid envelope: %w", err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.Type, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Handler processes one decoded envelope. A non-nil error nacks the delivery
// for redelivery; nil acks it.
type Handler func(ctx context.Context, env events.Envelope) error

// Subscribe binds a named durable queue to the events exchange and dispatches
// deliveries to handler one at a time, in delivery order. The message is
// acked only after handler returns nil, so a crash mid-processing causes
// redelivery. Bodies that fail to decode are logged and acked: dropping a
// malformed message keeps the queue live instead of redelivering it forever.
func Subscribe(ctx context.Context, conn *amqp.Connection, queueName string, handler Handler, logger *log.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	if err := ch.QueueBind(queueName, "", EventsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queueName, err)
	}

	// One in-flight delivery per subscription.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		queueName,
		queueName, // consumer tag
		false,     // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Printf("stopping consumer for %s", queueName)
				_ = ch.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Printf("delivery channel closed for %s", queueName)
					return
				}

				env, err := events.Decode(msg.Body)
				if err != nil {
					logger.Printf("dropping malformed message on %s: %v", queueName, err)
					_ = msg.Ack(false)
					continue
				}

				if err := handler(ctx, env); err != nil {
					logger.Printf("handle %s on %s: %v", env.Type, queueName, err)
					time.Sleep(handlerRetryDelay)
					_ = msg.Nack(false, true) // requeue for redelivery
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()

	return nil
}
