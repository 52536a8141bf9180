package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/IBM/sarama"
)

// NewSyncProducer connects a Kafka producer that waits for every in-sync replica.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("notify: kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaPublisher writes messages to a topic keyed by recipient, so one supplier's
// notifications stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher wraps a producer.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends msg and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(msg.UserID, 10)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(msg.Kind)},
			{Key: []byte("message_id"), Value: []byte(msg.ID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: publish %s: %w", msg.ID, err)
	}
	return nil
}

// Close releases the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher writes messages to the log. It stands in for Kafka when no brokers are set.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs msg.
func (p LogPublisher) Publish(ctx context.Context, msg Message) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		slog.String("id", msg.ID.String()),
		slog.Int64("user_id", msg.UserID),
		slog.String("kind", msg.Kind),
		slog.String("body", msg.Body))
	return nil
}
