package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MessageWriter is the part of kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes customer change notifications
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a producer backed by a kafka.Writer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

// NewProducerWithWriter creates a producer over any writer
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// CustomerEvent is the payload of every message on the customer events topic
type CustomerEvent struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	CustomerIDs []int64         `json:"customer_ids"`
	PrimaryID   int64           `json:"primary_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	TraceParent string          `json:"trace_parent,omitempty"`
	Trigger     string          `json:"trigger,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// key routes every event about the same primary or first customer to one partition
func (e *CustomerEvent) key() []byte {
	id := e.PrimaryID
	if id == 0 && len(e.CustomerIDs) > 0 {
		id = e.CustomerIDs[0]
	}
	return []byte(strconv.FormatInt(id, 10))
}

func (p *Producer) message(event *CustomerEvent) (kafka.Message, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   event.key(),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(SchemaVersion)},
		},
	}, nil
}

// SchemaVersion is stamped on every message header
const SchemaVersion = "1.0"

// PublishCustomerEvent publishes one event
func (p *Producer) PublishCustomerEvent(ctx context.Context, event *CustomerEvent) error {
	return p.PublishCustomerEvents(ctx, event)
}

// PublishCustomerEvents publishes events in a single batch
func (p *Producer) PublishCustomerEvents(ctx context.Context, events ...*CustomerEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishCustomerEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := p.message(event)
		if err != nil {
			metrics.RecordKafkaPublish(event.EventType, "error")
			return err
		}
		messages = append(messages, msg)
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		for _, event := range events {
			metrics.RecordKafkaPublish(event.EventType, "error")
		}
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"topic":      p.topic,
			"batch_size": len(events),
		}).Error("Failed to publish customer events")
		return err
	}

	for _, event := range events {
		metrics.RecordKafkaPublish(event.EventType, "success")
	}
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":      p.topic,
		"batch_size": len(events),
	}).Debug("Published customer events")

	return nil
}
