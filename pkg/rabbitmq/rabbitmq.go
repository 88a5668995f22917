package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	amqp "github.com/streadway/amqp"
	"go.uber.org/multierr"
)

// DefaultQueue is the durable queue carrying fulfillment jobs.
const DefaultQueue = "fulfillment_queue"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	mu      sync.Mutex // serializes publishes on the shared channel
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Queue    string
	Prefetch int
}

// Job is the body of a fulfillment message. Only the order id travels; the
// consumer reloads the order from the ledger.
type Job struct {
	OrderID    string    `json:"order_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobHandler processes one fulfillment job.
type JobHandler func(ctx context.Context, orderID string) error

// NewClient connects to RabbitMQ, opens a channel and declares the job queue.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err == nil {
		err = ch.Qos(cfg.Prefetch, 0, false)
	}
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", cfg.Queue, err)
	}

	log.Info().Str("queue", cfg.Queue).Msg("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
	}, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var err error
	if c.channel != nil {
		err = multierr.Append(err, c.channel.Close())
	}
	if c.conn != nil {
		err = multierr.Append(err, c.conn.Close())
	}
	if err != nil {
		return fmt.Errorf("closing RabbitMQ client: %w", err)
	}
	return nil
}

// Enqueue publishes a persistent fulfillment job for orderID.
func (c *Client) Enqueue(_ context.Context, orderID string) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}
	body, err := encodeJob(orderID, time.Now().UTC())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    orderID,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish fulfillment job for %s: %w", orderID, err)
	}
	return nil
}

// ConsumeFulfillment delivers jobs to handle until ctx is done or the channel
// closes. Failed jobs are dropped without requeue; the ledger keeps the order
// approved and the sweeper enqueues it again.
func (c *Client) ConsumeFulfillment(ctx context.Context, handle JobHandler) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Info().Str("queue", c.queue).Msg("waiting for fulfillment jobs")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("RabbitMQ delivery channel closed")
			}
			c.handle(ctx, msg, handle)
		}
	}
}

func (c *Client) handle(ctx context.Context, msg amqp.Delivery, handle JobHandler) {
	job, err := decodeJob(msg.Body)
	if err == nil {
		err = handle(ctx, job.OrderID)
	}
	if err != nil {
		log.Error().Err(err).Uint64("delivery_tag", msg.DeliveryTag).Str("order_id", job.OrderID).Msg("fulfillment job failed")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Error().Err(nackErr).Uint64("delivery_tag", msg.DeliveryTag).Msg("error nacking message")
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		log.Error().Err(ackErr).Uint64("delivery_tag", msg.DeliveryTag).Msg("error acking message")
	}
}

func encodeJob(orderID string, at time.Time) ([]byte, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	body, err := json.Marshal(Job{OrderID: orderID, EnqueuedAt: at})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fulfillment job: %w", err)
	}
	return body, nil
}

func decodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("invalid fulfillment job: %w", err)
	}
	if job.OrderID == "" {
		return Job{}, errors.New("invalid fulfillment job: missing order_id")
	}
	return job, nil
}
