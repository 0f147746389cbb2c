// Package kafka publishes daily risk snapshots to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/heatwatch/heat-risk-pipeline/internal/config"
	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
)

// Publisher produces one message per barangay assessment to the configured
// topic. It implements pipeline.SnapshotPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured snapshot topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishSnapshot serializes and publishes every assessment in a single
// WriteMessages call for efficiency.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Assessments) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Assessments))
	for i, a := range snap.Assessments {
		msg, err := serializeAssessment(snap.Date, a)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", snap.Date, err)
	}
	p.logger.Info("snapshot published", "date", snap.Date, "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// assessmentMessage is the wire form of one barangay's classification.
type assessmentMessage struct {
	BarangayID string `json:"barangay_id"`
	Date       string `json:"date"`
	RiskLevel  int    `json:"risk_level"`
	Cluster    int    `json:"cluster"`
}

// serializeAssessment marshals an assessment into a Kafka message keyed by
// barangay id so a compacted topic keeps each barangay's latest level.
func serializeAssessment(date string, a domain.RiskAssessment) (kafkago.Message, error) {
	data, err := json.Marshal(assessmentMessage{
		BarangayID: a.BarangayID,
		Date:       date,
		RiskLevel:  a.RiskLevel,
		Cluster:    a.Cluster,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.BarangayID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "date", Value: []byte(date)},
			{Key: "risk_level", Value: []byte(fmt.Sprint(a.RiskLevel))},
		},
	}, nil
}
