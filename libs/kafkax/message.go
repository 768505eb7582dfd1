package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// NewEventMessage builds a message carrying event_id/event_type headers and the trace context of ctx.
func NewEventMessage(ctx context.Context, topic string, key string, meta EventMeta, payload []byte) kafka.Message {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(meta.EventID)},
			{Key: "event_type", Value: []byte(meta.EventType)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	return msg
}
