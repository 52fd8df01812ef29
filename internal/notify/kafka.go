package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/CosmoTheDev/hubwatch/internal/config"
)

const kafkaWriteTimeout = 10 * time.Second

// messageWriter is the part of *kafka.Writer the channel uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel publishes each item as a JSON message keyed by its identity
// key, so every update to the same component lands on one partition.
type KafkaChannel struct {
	cfg    config.KafkaConfig
	writer messageWriter
}

// NewKafka creates a KafkaChannel from cfg. No connection is made until the
// first Send.
func NewKafka(cfg config.KafkaConfig) *KafkaChannel {
	k := &KafkaChannel{cfg: cfg}
	if k.IsConfigured() {
		k.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: kafkaWriteTimeout,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		}
	}
	return k
}

func (k *KafkaChannel) Name() string       { return "kafka" }
func (k *KafkaChannel) IsConfigured() bool { return len(k.cfg.Brokers) > 0 && k.cfg.Topic != "" }

func (k *KafkaChannel) Send(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt.Item)
	if err != nil {
		return fmt.Errorf("kafka: marshal item: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
			{Key: "severity", Value: []byte(evt.Severity)},
		},
		Time: evt.At,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write to %s: %w", k.cfg.Topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaChannel) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
