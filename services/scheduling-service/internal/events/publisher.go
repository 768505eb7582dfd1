package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/roomplanner/libs/kafkax"
	otelx "github.com/md-rashed-zaman/roomplanner/libs/otel"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/metrics"
	"github.com/segmentio/kafka-go"
)

const SuggestionsComputedType = "scheduling.suggestions.computed.v1"

// SuggestionsComputed is emitted after a successful meeting suggestion query.
type SuggestionsComputed struct {
	EventID     string    `json:"event_id"`
	AttendeeIDs []string  `json:"attendee_ids"`
	Date        string    `json:"date"`
	MinMinutes  int       `json:"min_minutes"`
	Suggestions int       `json:"suggestions"`
	ComputedAt  time.Time `json:"computed_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type queued struct {
	evt         SuggestionsComputed
	traceparent string
	tracestate  string
}

type Config struct {
	Brokers   string
	Topic     string
	QueueSize int
	// WriteTimeout bounds a single Kafka write.
	WriteTimeout time.Duration
}

// Publisher delivers events to Kafka from a bounded in-memory queue. Delivery is best effort:
// a full queue drops the event and write failures are logged, never surfaced to the caller.
// A Publisher without brokers accepts and discards everything.
type Publisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	queue        chan queued
}

func NewPublisher(logger *slog.Logger, m *metrics.Metrics, cfg Config) *Publisher {
	var w messageWriter
	if brokers := kafkax.SplitBrokers(cfg.Brokers); len(brokers) > 0 {
		w = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	return newPublisher(w, logger, m, cfg)
}

func newPublisher(w messageWriter, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = SuggestionsComputedType
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		writer:       w,
		topic:        cfg.Topic,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
		metrics:      m,
	}
	if w != nil {
		p.queue = make(chan queued, cfg.QueueSize)
	}
	return p
}

func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Enqueue never blocks.
func (p *Publisher) Enqueue(ctx context.Context, evt SuggestionsComputed) {
	if !p.Enabled() {
		return
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	select {
	case p.queue <- queued{evt: evt, traceparent: traceparent, tracestate: tracestate}:
	default:
		p.metrics.ObserveEvent(SuggestionsComputedType, "dropped")
		p.logger.Warn("event queue full, dropping event", "event_id", evt.EventID)
	}
}

// Run drains the queue until ctx is done, then flushes what is left and closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Warn("event publisher disabled (no kafka brokers configured)")
		return
	}
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("kafka writer close failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case q := <-p.queue:
			p.publish(context.Background(), q)
		}
	}
}

func (p *Publisher) flush() {
	for {
		select {
		case q := <-p.queue:
			p.publish(context.Background(), q)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, q queued) {
	payload, err := json.Marshal(q.evt)
	if err != nil {
		p.metrics.ObserveEvent(SuggestionsComputedType, "failed")
		p.logger.Error("event encode failed", "event_id", q.evt.EventID, "err", err)
		return
	}

	msgCtx := otelx.ContextWithTraceContext(ctx, q.traceparent, q.tracestate)
	msg := kafkax.NewEventMessage(msgCtx, p.topic, q.evt.EventID, kafkax.EventMeta{
		EventID:   q.evt.EventID,
		EventType: SuggestionsComputedType,
	}, payload)

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.metrics.ObserveEvent(SuggestionsComputedType, "failed")
		p.logger.Error("event publish failed", "event_id", q.evt.EventID, "topic", p.topic, "err", err)
		return
	}
	p.metrics.ObserveEvent(SuggestionsComputedType, "published")
}
