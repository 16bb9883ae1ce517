package patient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

// ErrNotMonitored rejects device readings for task-based patients.
var ErrNotMonitored = errors.New("patient is not under live monitoring")

// SummaryVitalsWindow caps how many recent samples feed a summary.
const SummaryVitalsWindow = 10

// VitalsResult is returned after a sample is stored and assessed.
type VitalsResult struct {
	Vital    *vitals.Sample `json:"vital"`
	Analysis *Analysis      `json:"analysis"`
	Status   vitals.Level   `json:"status"`
}

// RecordVitals stores a manually charted sample for a visible patient.
func (s *Service) RecordVitals(ctx context.Context, patientID uuid.UUID, sample vitals.Sample) (*VitalsResult, error) {
	p, err := s.Authorize(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if sample.Source == "" {
		sample.Source = "manual"
	}
	return s.recordVitals(ctx, p, sample)
}

// IngestVitals stores a device sample. It bypasses visibility and accepts
// only active live-monitoring patients.
func (s *Service) IngestVitals(ctx context.Context, patientID uuid.UUID, sample vitals.Sample) (*VitalsResult, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Active && !p.Monitored() {
		return nil, ErrNotMonitored
	}
	sample.Source = "device"
	return s.recordVitals(ctx, p, sample)
}

func (s *Service) recordVitals(ctx context.Context, p *Patient, sample vitals.Sample) (*VitalsResult, error) {
	if !p.Active {
		return nil, ErrDischarged
	}
	if err := vitals.Validate(sample); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sample.ID = uuid.New()
	sample.PatientID = p.ID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}

	analysis := s.analyze(ctx, p, &sample)
	p.Status = analysis.RiskLevel
	p.UpdatedAt = now
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.AddVitals(ctx, &sample); err != nil {
			return fmt.Errorf("add vitals: %w", err)
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.record(ctx, "Recorded vitals", p.Name)
	})
	if err != nil {
		return nil, err
	}
	res := &VitalsResult{Vital: &sample, Analysis: analysis, Status: p.Status}
	s.publish(p.ID, "vitals.recorded", res)
	return res, nil
}

func (s *Service) analyze(ctx context.Context, p *Patient, sample *vitals.Sample) *Analysis {
	if s.analyzer == nil {
		return FallbackAnalysis(sample)
	}
	a, err := s.analyzer.AnalyzeVitals(ctx, p, sample)
	if err != nil || a == nil {
		s.logger.Warn().Err(err).Str("patient_id", p.RecordID()).Msg("vitals analysis failed, using threshold rules")
		return FallbackAnalysis(sample)
	}
	level, ok := vitals.ParseLevel(string(a.RiskLevel))
	if !ok {
		s.logger.Warn().Str("risk_level", string(a.RiskLevel)).Str("patient_id", p.RecordID()).Msg("analyzer returned unknown risk level")
		return FallbackAnalysis(sample)
	}
	a.RiskLevel = level
	if a.Flags == nil {
		a.Flags = vitals.Flags(*sample)
	}
	return a
}

// ListVitals returns a visible patient's samples, oldest first.
func (s *Service) ListVitals(ctx context.Context, patientID uuid.UUID) ([]*vitals.Sample, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListVitals(ctx, patientID)
}

// -- summaries --

// GenerateSummary writes and stores a fresh chart summary.
func (s *Service) GenerateSummary(ctx context.Context, patientID uuid.UUID) (*StoredSummary, error) {
	p, err := s.Authorize(ctx, patientID)
	if err != nil {
		return nil, err
	}
	c, err := s.chart(ctx, p, true)
	if err != nil {
		return nil, err
	}
	if n := len(c.Vitals); n > SummaryVitalsWindow {
		c.Vitals = c.Vitals[n-SummaryVitalsWindow:]
	}

	sum := s.summarize(ctx, c)
	stored := &StoredSummary{
		ID:          uuid.New(),
		PatientID:   p.ID,
		Summary:     *sum,
		GeneratedAt: s.now().UTC(),
	}
	if err := s.repo.AddSummary(ctx, stored); err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}
	if err := s.record(ctx, "Generated AI summary", p.Name); err != nil {
		return nil, err
	}
	s.publish(p.ID, "summary.generated", stored)
	return stored, nil
}

// LatestSummary returns nil, nil when no summary has been generated.
func (s *Service) LatestSummary(ctx context.Context, patientID uuid.UUID) (*StoredSummary, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.LatestSummary(ctx, patientID)
}

func (s *Service) summarize(ctx context.Context, c *Chart) *Summary {
	if s.summarizer == nil {
		return FallbackSummary(c)
	}
	sum, err := s.summarizer.Summarize(ctx, c)
	if err != nil || sum == nil {
		s.logger.Warn().Err(err).Str("patient_id", c.RecordID()).Msg("summary generation failed")
		return FallbackSummary(c)
	}
	return sum
}

func (s *Service) summarizeDischarge(ctx context.Context, c *Chart) *DischargeSummary {
	if s.summarizer == nil {
		return FallbackDischargeSummary(c)
	}
	sum, err := s.summarizer.SummarizeDischarge(ctx, c)
	if err != nil || sum == nil {
		s.logger.Warn().Err(err).Str("patient_id", c.RecordID()).Msg("discharge summary generation failed")
		return FallbackDischargeSummary(c)
	}
	return sum
}

// -- discharge --

// LengthOfStay counts started days between admission and discharge.
func LengthOfStay(admitted, discharged time.Time) int {
	d := discharged.Sub(admitted)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// Discharge closes the admission and stores the discharge report.
func (s *Service) Discharge(ctx context.Context, patientID uuid.UUID) (*DischargeReport, error) {
	p, err := s.writable(ctx, patientID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p.DischargeTime = &now

	c, err := s.chart(ctx, p, false)
	if err != nil {
		return nil, err
	}

	report := &DischargeReport{
		PatientID:          p.ID,
		PatientName:        p.Name,
		Age:                p.Age,
		Gender:             p.Gender,
		Room:               p.Room,
		AdmissionTime:      p.AdmissionTime,
		DischargeTime:      now,
		LengthOfStay:       LengthOfStay(p.AdmissionTime, now),
		Diagnosis:          p.Diagnosis,
		Condition:          p.Condition,
		FinalStatus:        p.Status,
		CareMode:           p.CareMode,
		VitalsSummary:      vitals.Summarize(c.Vitals),
		Medications:        make([]MedicationLine, 0, len(c.Medications)),
		InstructionsTotal:  len(c.Instructions),
		TasksTotal:         len(c.Tasks),
		ReportsUploaded:    len(c.Reports),
		AIDischargeSummary: *s.summarizeDischarge(ctx, c),
		GeneratedAt:        now,
	}
	for _, m := range c.Medications {
		report.Medications = append(report.Medications, MedicationLine{
			Name: m.Name, Dosage: m.Dosage, Frequency: m.Frequency, Route: m.Route,
		})
	}
	for _, in := range c.Instructions {
		if in.Completed {
			report.InstructionsCompleted++
		}
	}
	for _, t := range c.Tasks {
		if t.Status == TaskCompleted {
			report.TasksCompleted++
		}
	}

	p.Active = false
	p.UpdatedAt = now
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.AddDischargeReport(ctx, report); err != nil {
			return fmt.Errorf("store discharge report: %w", err)
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.record(ctx, "Discharged patient", p.Name)
	})
	if err != nil {
		return nil, err
	}
	s.publish(p.ID, "patient.discharged", report)
	return report, nil
}

func (s *Service) DischargeReport(ctx context.Context, patientID uuid.UUID) (*DischargeReport, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.LatestDischargeReport(ctx, patientID)
}
