package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/events"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type WriterConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// ClickPublisher is a click sink that forwards events to a topic, keyed by
// link ID so one link's clicks stay ordered within a partition.
type ClickPublisher struct {
	writer messageWriter
	topic  string
}

func NewClickPublisher(cfg WriterConfig) *ClickPublisher {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}

	return &ClickPublisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			BatchTimeout:           cfg.BatchTimeout,
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: cfg.Topic,
	}
}

func (p *ClickPublisher) Save(ctx context.Context, ev events.ClickRecorded) error {
	key := strconv.FormatUint(ev.LinkID, 10)

	ctx, span := otel.Tracer("click-publisher").Start(
		ctx,
		"kafka.publish.click_recorded",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.operation", "publish"),
			attribute.String("messaging.kafka.message_key", key),
		),
	)
	defer span.End()

	payload, err := json.Marshal(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal click event failed")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:     []byte(key),
		Value:   payload,
		Time:    ev.OccurredAt,
		Headers: injectHeaders(ctx, events.ClickRecordedType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kafka publish failed")
		return err
	}
	return nil
}

func (p *ClickPublisher) Close() error {
	return p.writer.Close()
}
