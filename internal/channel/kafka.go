// internal/channel/kafka.go
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes to a single topic. The hash balancer keeps every
// message of one key on one partition.
type KafkaProducer struct {
	writer   *kafka.Writer
	settings KafkaSettings
	dialer   *kafka.Dialer
}

// NewKafkaProducer builds a producer; no connection is made until the first Publish or Ping.
func NewKafkaProducer(s KafkaSettings) (*KafkaProducer, error) {
	transport, err := s.transport()
	if err != nil {
		return nil, fmt.Errorf("failed to build kafka transport: %w", err)
	}
	dialer, err := s.dialer()
	if err != nil {
		return nil, fmt.Errorf("failed to build kafka dialer: %w", err)
	}
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(s.Brokers...),
			Topic:        s.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			Transport:    transport,
		},
		settings: s,
		dialer:   dialer,
	}, nil
}

// Publish writes one message and waits for the brokers to acknowledge it.
func (p *KafkaProducer) Publish(ctx context.Context, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", p.settings.Topic, err)
	}
	return nil
}

// Ping dials the first reachable broker and confirms the topic has partitions.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	return pingTopic(ctx, p.dialer, p.settings)
}

// Close flushes pending writes.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads a topic as a member of a consumer group.
type KafkaConsumer struct {
	reader   *kafka.Reader
	settings KafkaSettings
	dialer   *kafka.Dialer
	logger   *slog.Logger
}

// NewKafkaConsumer joins s.GroupID on s.Topic.
func NewKafkaConsumer(s KafkaSettings, logger *slog.Logger) (*KafkaConsumer, error) {
	if s.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer requires a group id")
	}
	dialer, err := s.dialer()
	if err != nil {
		return nil, fmt.Errorf("failed to build kafka dialer: %w", err)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.Brokers,
		GroupID:     s.GroupID,
		Topic:       s.Topic,
		Dialer:      dialer,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &KafkaConsumer{reader: reader, settings: s, dialer: dialer, logger: logger}, nil
}

// Ping dials the first reachable broker and confirms the topic has partitions.
func (c *KafkaConsumer) Ping(ctx context.Context) error {
	return pingTopic(ctx, c.dialer, c.settings)
}

// Consume fetches, handles and commits one message at a time. The offset is
// committed whether or not the handler succeeded; a crash before the commit
// causes redelivery.
func (c *KafkaConsumer) Consume(ctx context.Context, handler Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrClosed
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		msg := Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       string(m.Key),
			Value:     m.Value,
			Time:      m.Time,
		}
		if err := handler(ctx, msg); err != nil {
			c.logger.Error("Message handler failed",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "key", msg.Key, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit offset %d on partition %d: %w", m.Offset, m.Partition, err)
		}
	}
}

// Close leaves the consumer group.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func pingTopic(ctx context.Context, dialer *kafka.Dialer, s KafkaSettings) error {
	var errs []error
	for _, broker := range s.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		partitions, err := conn.ReadPartitions(s.Topic)
		_ = conn.Close()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(partitions) == 0 {
			errs = append(errs, fmt.Errorf("topic %s has no partitions", s.Topic))
			continue
		}
		return nil
	}
	return fmt.Errorf("no kafka broker reachable: %w", errors.Join(errs...))
}
