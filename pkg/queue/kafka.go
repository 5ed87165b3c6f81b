package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vidtube/vidtube/pkg/logger"
)

type KafkaProducer struct {
	writer *kafka.Writer
}

type KafkaConsumer struct {
	reader messageReader
	retry  RetryPolicy
	logger *logger.Logger
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RetryPolicy bounds how often a failing handler is retried in process before
// the consumer gives up on the message. Backoff doubles after every attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &KafkaProducer{writer: writer}
}

func NewKafkaConsumer(brokers []string, topic, groupID string, retry RetryPolicy, log *logger.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 1 * time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &KafkaConsumer{reader: reader, retry: retry, logger: log}
}

// Publish marshals value as JSON. Messages with the same key land on the same
// partition, so events for one video or user stay ordered.
func (p *KafkaProducer) Publish(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Subscribe blocks until ctx is done or a message cannot be handled. An offset
// is committed only after the handler succeeds or reports a permanent
// failure. A message that still fails after every retry stops the consumer
// with its offset uncommitted, so the group redelivers it on the next start.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler func(context.Context, Message) error) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		fields := map[string]interface{}{
			"topic":     message.Topic,
			"partition": message.Partition,
			"offset":    message.Offset,
		}

		if !json.Valid(message.Value) {
			c.logger.WithFields(fields).Warn("Skipping message that is not valid JSON")
		} else if err := c.handle(ctx, message, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !IsPermanent(err) {
				return fmt.Errorf("failed to handle message at offset %d of %s: %w", message.Offset, message.Topic, err)
			}
			c.logger.WithError(err).WithFields(fields).Error("Dropping message that cannot be processed")
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit offset %d of %s: %w", message.Offset, message.Topic, err)
		}
	}
}

// handle runs handler until it succeeds, fails permanently or runs out of
// attempts.
func (c *KafkaConsumer) handle(ctx context.Context, message kafka.Message, handler func(context.Context, Message) error) error {
	msg := Message{
		Key:   string(message.Key),
		Value: json.RawMessage(message.Value),
		Topic: message.Topic,
	}

	backoff := c.retry.Backoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil || IsPermanent(err) || attempt >= c.retry.MaxAttempts {
			return err
		}

		c.logger.WithError(err).WithFields(map[string]interface{}{
			"topic":   message.Topic,
			"offset":  message.Offset,
			"attempt": attempt,
		}).Warn("Failed to handle message, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type Message struct {
	Key   string
	Value json.RawMessage
	Topic string
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that retrying cannot fix. The consumer
// commits such a message and moves on.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
