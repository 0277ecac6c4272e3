package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/events"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/IgorGrieder/minimizurl/internal/processing/clicks"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	MaxWait time.Duration
}

type ConsumerOptions struct {
	OperationTimeout time.Duration
	Backoff          time.Duration
}

// ClickConsumer drains the click topic into a sink, committing each offset
// only after the sink accepted the event.
type ClickConsumer struct {
	reader  messageReader
	sink    clicks.Sink
	opTTL   time.Duration
	backoff time.Duration
}

func NewClickConsumer(cfg ReaderConfig, sink clicks.Sink, opts ConsumerOptions) *ClickConsumer {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafkago.FirstOffset,
	})
	return newClickConsumer(reader, sink, opts)
}

func newClickConsumer(reader messageReader, sink clicks.Sink, opts ConsumerOptions) *ClickConsumer {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 5 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &ClickConsumer{
		reader:  reader,
		sink:    sink,
		opTTL:   opts.OperationTimeout,
		backoff: opts.Backoff,
	}
}

// Run blocks until ctx is cancelled.
func (c *ClickConsumer) Run(ctx context.Context) error {
	tracer := otel.Tracer("click-consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("failed to fetch kafka message", zap.Error(err))
			c.sleep(ctx)
			continue
		}

		msgCtx, span := tracer.Start(
			extractHeaders(ctx, msg.Headers),
			"kafka.consume.click_recorded",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.String("messaging.operation", "process"),
				attribute.Int("messaging.kafka.partition", msg.Partition),
				attribute.Int64("messaging.kafka.offset", msg.Offset),
			),
		)

		if err := c.handle(msgCtx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "process click event failed")
			logger.Error("failed to process click event",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			span.End()
			c.sleep(ctx)
			continue
		}

		if err := c.reader.CommitMessages(msgCtx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit kafka offset failed")
			logger.Error("failed to commit kafka offset",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
			)
		}
		span.End()
	}
}

func (c *ClickConsumer) Close() error {
	return c.reader.Close()
}

// handle returns nil for messages that can never succeed so they are
// committed and skipped instead of blocking the partition.
func (c *ClickConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	if t := headerValue(msg.Headers, eventTypeHeader); t != "" && t != events.ClickRecordedType {
		logger.Debug("skipping unrelated event", zap.String("event_type", t))
		return nil
	}

	var ev events.ClickRecorded
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		logger.Warn("invalid click event payload, skipping",
			zap.Error(err),
			zap.ByteString("payload", msg.Value),
		)
		return nil
	}
	if ev.EventID == "" || ev.LinkID == 0 {
		logger.Warn("click event missing identity, skipping", zap.Int64("offset", msg.Offset))
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = msg.Time.UTC()
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTTL)
	defer cancel()
	return c.sink.Save(opCtx, ev)
}

func (c *ClickConsumer) sleep(ctx context.Context) {
	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
	}
}
