package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/config"
	"github.com/couchcryptid/air-quality-analysis/internal/interpretation"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the Writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes classified observations to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer  messageWriter
	topic   string
	logger  *slog.Logger
	timeout time.Duration
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: cfg.KafkaTopic, logger: logger, timeout: cfg.PublishTimeout}
}

// message is the JSON value of one published record.
type message struct {
	RunID     string             `json:"run_id"`
	Timestamp time.Time          `json:"timestamp"`
	Column    string             `json:"column"`
	Value     float64            `json:"value"`
	Category  string             `json:"category"`
	Values    map[string]float64 `json:"values"`
}

// Publish sends every observation in a single WriteMessages call. A failed
// write is returned as is; the run reports it as a sink error. Rows whose
// classified value is missing are skipped.
func (w *Writer) Publish(ctx context.Context, runID string, observations []interpretation.ClassifiedObservation) error {
	msgs := make([]kafkago.Message, 0, len(observations))
	for i := range observations {
		if math.IsNaN(observations[i].Value) {
			continue
		}
		msg, err := serializeToMessage(runID, observations[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d observations: %w", len(msgs), err)
	}
	w.logger.Info("observations published", "topic", w.topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an observation into a Kafka message keyed by its
// timestamp so repeated runs over the same data land on the same partition.
func serializeToMessage(runID string, obs interpretation.ClassifiedObservation) (kafkago.Message, error) {
	ts := obs.Observation.Timestamp.UTC()
	data, err := json.Marshal(message{
		RunID:     runID,
		Timestamp: ts,
		Column:    obs.Column,
		Value:     obs.Value,
		Category:  obs.Category.String(),
		Values:    obs.Observation.Values,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation %d: %w", obs.Observation.Index, err)
	}
	return kafkago.Message{
		Key:   []byte(ts.Format(time.RFC3339)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(obs.Category.String())},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
