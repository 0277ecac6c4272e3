package kafka

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const eventTypeHeader = "event-type"

func injectHeaders(ctx context.Context, eventType string) []kafkago.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafkago.Header, 0, len(carrier)+1)
	headers = append(headers, kafkago.Header{Key: eventTypeHeader, Value: []byte(eventType)})
	for _, key := range carrier.Keys() {
		headers = append(headers, kafkago.Header{Key: key, Value: []byte(carrier.Get(key))})
	}
	return headers
}

func extractHeaders(parent context.Context, headers []kafkago.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h.Key))
		if key == "" || key == eventTypeHeader {
			continue
		}
		carrier.Set(key, string(h.Value))
	}
	return otel.GetTextMapPropagator().Extract(parent, carrier)
}

func headerValue(headers []kafkago.Header, key string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}
