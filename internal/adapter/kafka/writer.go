package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Writer produces messages to a single Kafka topic. The same producer backs
// the dead-letter topic (PublishRejected) and the mock-data generator
// (PublishMetrics).
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishRejected forwards rejected source records, headers included, in a
// single WriteMessages call. It implements pipeline.DeadLetterSink.
func (w *Writer) PublishRejected(ctx context.Context, records []domain.RejectedRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i, rec := range records {
		msgs[i] = rejectedToMessage(rec)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rejected records: %w", len(records), err)
	}
	w.logger.Debug("rejected records published", "count", len(records), "topic", w.writer.Topic)
	return nil
}

// PublishMetrics serializes and publishes monthly metric records keyed by
// district code, so one district's months land on one partition in order.
func (w *Writer) PublishMetrics(ctx context.Context, metrics []domain.MonthlyMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(metrics))
	for i := range metrics {
		msg, err := serializeToMessage(metrics[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a MonthlyMetric into a Kafka message.
func serializeToMessage(m domain.MonthlyMetric) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize monthly metric: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.DistrictCode),
		Value: data,
		Time:  m.IngestedAt,
		Headers: []kafkago.Header{
			{Key: "district_code", Value: []byte(m.DistrictCode)},
			{Key: "month", Value: []byte(m.Month.String())},
			{Key: "ingested_at", Value: []byte(m.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}

// rejectedToMessage emits headers in key order so the output is stable.
func rejectedToMessage(rec domain.RejectedRecord) kafkago.Message {
	keys := make([]string, 0, len(rec.Headers))
	for k := range rec.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(rec.Headers[k])})
	}
	return kafkago.Message{Key: rec.Key, Value: rec.Value, Headers: headers}
}
