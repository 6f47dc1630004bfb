package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaProducer forwards domain events to a Kafka topic, best-effort.
// Publish failures are logged and never block the caller's request.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaProducer creates a producer. With no brokers or topic the
// producer is a no-op.
func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return &KafkaProducer{logger: logger}
	}
	return &KafkaProducer{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Forward subscribes the producer to every ticket event type on the
// dispatcher.
func (p *KafkaProducer) Forward(dispatcher Dispatcher) {
	if p.writer == nil {
		return
	}
	for _, eventType := range []EventType{EventTicketCreated, EventTicketStatusChanged, EventTicketMessageAdded} {
		dispatcher.Subscribe(eventType, p.handle)
	}
}

func (p *KafkaProducer) handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("kafka: marshal event", zap.Error(err))
		return nil
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.Type), Value: body}); err != nil {
		p.logger.Warn("kafka: write event", zap.Error(err), zap.String("type", string(event.Type)))
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
