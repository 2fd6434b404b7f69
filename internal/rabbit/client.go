package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Broker is what producers and the reconciler need from the message bus.
type Broker interface {
	Publish(ctx context.Context, message []byte, delay time.Duration) error
	Consume(handler func([]byte) error) error
	Close()
}

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	log      *zerolog.Logger
}

// NewRabbit declares a durable x-delayed-message exchange bound to one durable queue.
// The broker must have the delayed message exchange plugin enabled.
func NewRabbit(url, exchange, queue string, log *zerolog.Logger) (*Client, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	client := &Client{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		queue:    queue,
		log:      log,
	}

	args := amqp.Table{"x-delayed-type": "direct"}
	if err := ch.ExchangeDeclare(
		exchange,
		"x-delayed-message",
		true,
		false,
		false,
		false,
		args,
	); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(
		queue,
		"",
		exchange,
		false,
		nil,
	); err != nil {
		client.Close()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	log.Info().Str("exchange", exchange).Str("queue", queue).Msg("RabbitMQ initialized")
	return client, nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.log.Info().Msg("RabbitMQ connection closed")
}

func (c *Client) Publish(ctx context.Context, message []byte, delay time.Duration) error {
	headers := amqp.Table{}
	if delay > 0 {
		headers["x-delay"] = int32(delay / time.Millisecond)
	}

	err := c.channel.PublishWithContext(
		ctx,
		c.exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
	if err != nil {
		c.log.Error().Err(err).Str("exchange", c.exchange).Msg("failed to publish message to RabbitMQ")
		return fmt.Errorf("publish: %w", err)
	}

	c.log.Debug().Str("exchange", c.exchange).Dur("delay", delay).Msg("message published")
	return nil
}

// Consume delivers every message to handler on a separate goroutine. A handler
// error requeues the message.
func (c *Client) Consume(handler func([]byte) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				c.log.Warn().Err(err).Msg("failed to process message, requeueing")
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	c.log.Info().Str("queue", c.queue).Msg("started consuming")
	return nil
}
