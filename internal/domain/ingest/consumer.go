// Package ingest feeds bedside-device vitals into the patient record. Devices
// publish JSON samples on careboard/patients/<patient-id>/vitals.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/domain/vitals"
)

const DefaultTopic = "careboard/patients/+/vitals"

const handleTimeout = 10 * time.Second

// Sink accepts device samples for a patient.
type Sink interface {
	IngestVitals(ctx context.Context, patientID uuid.UUID, sample vitals.Sample) (*patient.VitalsResult, error)
}

// PatientIDFromTopic extracts the id segment from .../patients/<id>/vitals.
func PatientIDFromTopic(topic string) (uuid.UUID, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-1] != "vitals" || parts[len(parts)-3] != "patients" {
		return uuid.Nil, fmt.Errorf("unexpected vitals topic %q", topic)
	}
	id, err := uuid.Parse(parts[len(parts)-2])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid patient id in topic %q: %w", topic, err)
	}
	return id, nil
}

// devicePayload is the wire shape; identifiers come from the topic, never the body.
type devicePayload struct {
	Timestamp       *time.Time `json:"timestamp"`
	HeartRate       *int       `json:"heart_rate"`
	SystolicBP      int        `json:"systolic_bp"`
	DiastolicBP     int        `json:"diastolic_bp"`
	SpO2            *int       `json:"spo2"`
	RespiratoryRate int        `json:"respiratory_rate"`
	Temperature     *float64   `json:"temperature"`
}

func DecodeSample(payload []byte) (vitals.Sample, error) {
	var p devicePayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&p); err != nil {
		return vitals.Sample{}, fmt.Errorf("decode vitals payload: %w", err)
	}
	switch {
	case p.HeartRate == nil:
		return vitals.Sample{}, fmt.Errorf("heart_rate is required")
	case p.SpO2 == nil:
		return vitals.Sample{}, fmt.Errorf("spo2 is required")
	case p.Temperature == nil:
		return vitals.Sample{}, fmt.Errorf("temperature is required")
	}
	s := vitals.Sample{
		HeartRate:       *p.HeartRate,
		SystolicBP:      p.SystolicBP,
		DiastolicBP:     p.DiastolicBP,
		SpO2:            *p.SpO2,
		RespiratoryRate: p.RespiratoryRate,
		Temperature:     *p.Temperature,
	}
	if p.Timestamp != nil {
		s.Timestamp = p.Timestamp.UTC()
	}
	return s, nil
}

// Consumer turns raw device messages into vitals submissions.
type Consumer struct {
	sink   Sink
	logger zerolog.Logger
}

func NewConsumer(sink Sink, logger zerolog.Logger) *Consumer {
	return &Consumer{sink: sink, logger: logger.With().Str("component", "ingest").Logger()}
}

// Handle processes one message. Samples for patients that are not under
// live monitoring are dropped without error.
func (c *Consumer) Handle(ctx context.Context, topic string, payload []byte) error {
	id, err := PatientIDFromTopic(topic)
	if err != nil {
		return err
	}
	sample, err := DecodeSample(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	res, err := c.sink.IngestVitals(ctx, id, sample)
	switch {
	case errors.Is(err, patient.ErrNotMonitored), errors.Is(err, patient.ErrDischarged):
		c.logger.Debug().Str("patient_id", id.String()).Err(err).Msg("device sample skipped")
		return nil
	case err != nil:
		return fmt.Errorf("ingest vitals for %s: %w", id, err)
	}

	c.logger.Info().
		Str("patient_id", id.String()).
		Str("status", string(res.Status)).
		Msg("device vitals recorded")
	return nil
}
