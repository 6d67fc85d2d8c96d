package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Defaults used when Config leaves the topology empty.
const (
	DefaultExchange   = "inventory.events"
	DefaultQueue      = "inventory_audit"
	DefaultBindingKey = "product.*"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	log     *zap.Logger
	mu      sync.Mutex // amqp.Channel is not safe for concurrent publishing
}

// Config holds RabbitMQ connection details and topology.
type Config struct {
	URL        string
	Exchange   string
	Queue      string
	BindingKey string
}

func (c *Config) applyDefaults() {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.BindingKey == "" {
		c.BindingKey = DefaultBindingKey
	}
}

// NewClient connects to RabbitMQ, declares the topic exchange and binds the audit queue to it.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	cfg.applyDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.Info("rabbitmq client connected",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue))

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		log:     log,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.BindingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewPublishing marshals payload into a persistent JSON message.
func NewPublishing(payload any) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event to JSON: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}, nil
}

// Publish sends payload to the events exchange under routingKey.
func (c *Client) Publish(routingKey string, payload any) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}

	msg, err := NewPublishing(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = c.channel.Publish(
		c.cfg.Exchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.log.Debug("event published", zap.String("routing_key", routingKey))
	return nil
}

// Consume starts a goroutine delivering messages of the audit queue to handler.
// A handler error nacks the message without requeue so a poison message cannot loop.
func (c *Client) Consume(handler func(msg amqp.Delivery) error) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.cfg.Queue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg); err != nil {
				c.log.Warn("event handling failed",
					zap.Uint64("delivery_tag", msg.DeliveryTag),
					zap.Error(err))
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.log.Error("nack failed", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.log.Error("ack failed", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
			}
		}
		c.log.Info("event consumer stopped", zap.String("queue", c.cfg.Queue))
	}()

	return nil
}
