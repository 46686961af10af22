// Package kafka publishes coverage reports to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/pivot-coverage-service/internal/config"
	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces coverage reports to the configured topic.
// It implements study.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes a report keyed by study id, so all reports of a study
// land on one partition in order.
func (w *Writer) Publish(ctx context.Context, report domain.CoverageReport) error {
	msg, err := serializeToMessage(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish coverage report: %w", err)
	}
	w.logger.Debug("coverage report published", "study", report.StudyID, "role", report.Role)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CoverageReport into a Kafka message.
func serializeToMessage(report domain.CoverageReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize coverage report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.StudyID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "role", Value: []byte(report.Role)},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
