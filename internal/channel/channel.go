// Package channel carries purchase intents from the ingress API to the
// fulfillment worker over a keyed, partitioned, at-least-once log.
package channel

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned when publishing to, or consuming from, a closed channel.
var ErrClosed = errors.New("channel closed")

// Message is one record delivered by a Consumer.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Time      time.Time
}

// Handler processes one delivered message. A returned error is logged by the
// consumer; the message is still committed and is not retried.
type Handler func(ctx context.Context, msg Message) error

// Producer publishes keyed messages. Messages sharing a key land on the same
// partition and are delivered in publish order.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
	// Ping verifies that the channel is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Consumer delivers messages of its group to handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	// Ping verifies that the channel is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Config selects the topic and consumer group and points at the connection properties.
type Config struct {
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	PropertiesFile string   `mapstructure:"properties_file"`
	Brokers        []string `mapstructure:"brokers"` // Used when the properties file has no bootstrap.servers
}
