package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/signal-site/relay/internal/messaging/nats"
	"github.com/signal-site/relay/internal/metrics"
)

// JetStreamQueue writes records to NATS JetStream for centralized
// reconciliation. Safe for use across multiple relay instances.
type JetStreamQueue struct {
	js      *nats.JetStreamClient
	stream  jetstream.Stream
	written uint64
}

// NewJetStreamQueue creates a DLQ backed by NATS JetStream.
func NewJetStreamQueue(ctx context.Context, js *nats.JetStreamClient) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, nats.RelayDLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	slog.Info("DLQ stream ready", slog.String("stream", nats.RelayDLQStream.Name))

	return &JetStreamQueue{js: js, stream: stream}, nil
}

// Write publishes a record to the DLQ stream.
func (q *JetStreamQueue) Write(ctx context.Context, rec Record) error {
	if q == nil {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dlq record: %w", err)
	}

	// Subject format: relay.dlq.<reason>
	subject := fmt.Sprintf("relay.dlq.%s", rec.Reason)

	if _, err := q.js.PublishSync(ctx, subject, data); err != nil {
		return fmt.Errorf("publish dlq record: %w", err)
	}

	atomic.AddUint64(&q.written, 1)
	metrics.DLQWrites.WithLabelValues(rec.Reason).Inc()
	slog.Warn("wrote manual-fulfillment record",
		slog.String("reason", rec.Reason),
		slog.String("event_id", rec.EventID),
	)

	return nil
}

// Stats returns DLQ metrics from JetStream.
func (q *JetStreamQueue) Stats(ctx context.Context) (map[string]interface{}, error) {
	info, err := q.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("dlq stream info: %w", err)
	}

	return map[string]interface{}{
		"written_local":  atomic.LoadUint64(&q.written),
		"total_messages": info.State.Msgs,
		"total_bytes":    info.State.Bytes,
		"first_seq":      info.State.FirstSeq,
		"last_seq":       info.State.LastSeq,
	}, nil
}

// List returns up to limit records from the DLQ stream.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	// Ephemeral consumer just for reading
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: "relay.dlq.>",
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var records []Record
	for msg := range msgs.Messages() {
		var rec Record
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			slog.Error("failed to parse DLQ message", slog.String("error", err.Error()))
			continue
		}
		records = append(records, rec)
	}

	if msgs.Error() != nil {
		slog.Warn("DLQ fetch completed with error", slog.String("error", msgs.Error().Error()))
	}

	return records, nil
}

// Purge removes all records from the DLQ stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	return nil
}
