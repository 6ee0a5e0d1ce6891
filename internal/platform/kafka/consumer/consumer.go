package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one broker record as seen by handlers.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes a single message. Returning nil commits the offset (the
// message is settled, successfully or terminally); returning an error leaves
// the offset uncommitted so the message is delivered again.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Config for a consumer group member.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	// RetryBackoff and MaxAttempts bound in-process reprocessing of one
	// delivery before the error escapes Run and the supervisor takes over.
	RetryBackoff time.Duration
	MaxAttempts  int
}

// Consumer is a single-topic consumer group member with manual commits.
// Records are handed to the handler one at a time, so per-partition ordering
// and back-pressure come from the poll loop itself.
type Consumer struct {
	client  *kgo.Client
	cfg     Config
	handler Handler
	logger  *slog.Logger
}

// New connects to the broker and joins the consumer group. Auto-commit is
// disabled: the offset only advances when the handler settles a message.
func New(ctx context.Context, cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 3 * time.Second
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	logger.Info("kafka consumer connected",
		"topic", cfg.Topic,
		"group", cfg.GroupID,
	)
	return &Consumer{client: client, cfg: cfg, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled. A cancellation mid-message lets the
// in-flight handler finish; only new fetches are abandoned.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if errors.Is(fe.Err, context.Canceled) {
					return nil
				}
				c.logger.Error("fetch error",
					"topic", fe.Topic,
					"partition", fe.Partition,
					"error", fe.Err,
				)
			}
			return fmt.Errorf("fetch failed: %w", errs[0].Err)
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			if err := c.process(ctx, rec); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				// Draining: the in-flight record was settled above,
				// stop before admitting the next one.
				return nil
			}
		}
	}
}

// process runs the handler for one record, retrying retriable failures with a
// fixed backoff up to MaxAttempts, then commits on success. Exhausting the
// budget surfaces the error to the caller instead of silently dropping the
// message.
func (c *Consumer) process(ctx context.Context, rec *kgo.Record) error {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		lastErr = c.handler.Handle(ctx, msg)
		if lastErr == nil {
			// The commit must survive a drain signal that arrived while
			// the handler was running, or the message would be redelivered
			// after a clean shutdown.
			commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := c.client.CommitRecords(commitCtx, rec)
			cancel()
			if err != nil {
				return fmt.Errorf("commit offset %d: %w", rec.Offset, err)
			}
			return nil
		}

		c.logger.Warn("message processing failed, will retry",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"error", lastErr,
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("interrupted retrying offset %d: %w", rec.Offset, lastErr)
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
	return fmt.Errorf("gave up on offset %d after %d attempts: %w", rec.Offset, c.cfg.MaxAttempts, lastErr)
}

// Close leaves the consumer group.
func (c *Consumer) Close() {
	c.client.Close()
	c.logger.Info("kafka consumer disconnected")
}
