package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"feedpulse/internal/publisher"
)

// Processor runs the enrichment pipeline for one post.
type Processor interface {
	Process(ctx context.Context, postID int64) error
}

type Config struct {
	URL        string
	QueueName  string
	Prefetch   int
	RunTimeout time.Duration
}

// Consumer drains the enrichment queue and feeds each request to the
// processor. A failed post is not requeued: re-enrichment is an explicit
// external action, so a bad post cannot wedge the queue.
type Consumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	runTimeout time.Duration
	processor  Processor
	logger     *slog.Logger
}

func New(cfg Config, processor Processor, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	logger.Info("connected to rabbitmq", "queue", q.Name, "prefetch", cfg.Prefetch)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queueName:  q.Name,
		runTimeout: cfg.RunTimeout,
		processor:  processor,
		logger:     logger,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consumer started", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped")
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var msg publisher.EnrichmentMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message, dropping", "error", err)
		_ = delivery.Nack(false, false)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	if err := c.processor.Process(runCtx, msg.PostID); err != nil {
		c.logger.Error("enrichment failed", "post_id", msg.PostID, "error", err)
		_ = delivery.Nack(false, false)
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack delivery", "post_id", msg.PostID, "error", err)
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
