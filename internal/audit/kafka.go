package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON to a Kafka topic, keyed by subject so
// one subject's events stay ordered within a partition.
type KafkaSink struct {
	w       MessageWriter
	log     *zap.Logger
	timeout time.Duration
}

// NewKafkaWriter builds the writer used by KafkaSink in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaSink(w MessageWriter, l *zap.Logger) *KafkaSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &KafkaSink{
		w:       w,
		log:     l.With(zap.String("component", "audit.kafka")),
		timeout: 5 * time.Second,
	}
}

func (s *KafkaSink) Emit(ctx context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		s.log.Error("audit marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(e.Subject),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.log.Warn("audit publish failed", zap.String("event_type", e.EventType), zap.Error(err))
	}
}

func (s *KafkaSink) Close() error { return s.w.Close() }
