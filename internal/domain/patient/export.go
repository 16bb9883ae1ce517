package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/platform/export"
)

// ExportDischargeXLSX renders the latest discharge report of a visible
// patient as a two-sheet workbook.
func (s *Service) ExportDischargeXLSX(ctx context.Context, patientID uuid.UUID) ([]byte, *DischargeReport, error) {
	r, err := s.DischargeReport(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	b, err := DischargeXLSX(r)
	return b, r, err
}

func DischargeXLSX(r *DischargeReport) ([]byte, error) {
	diagnosis := "Not specified"
	if r.Diagnosis != nil && *r.Diagnosis != "" {
		diagnosis = *r.Diagnosis
	}
	ai := r.AIDischargeSummary
	overview := [][]interface{}{
		{"Patient", r.PatientName},
		{"Age", r.Age},
		{"Gender", r.Gender},
		{"Room", r.Room},
		{"Admitted", r.AdmissionTime.UTC().Format(timeLayout)},
		{"Discharged", r.DischargeTime.UTC().Format(timeLayout)},
		{"Length of stay (days)", r.LengthOfStay},
		{"Diagnosis", diagnosis},
		{"Condition", r.Condition},
		{"Final status", strings.ToUpper(string(r.FinalStatus))},
		{"Vitals recorded", r.VitalsSummary.TotalReadings},
		{"Instructions completed", r.InstructionsCompleted},
		{"Instructions total", r.InstructionsTotal},
		{"Tasks completed", r.TasksCompleted},
		{"Tasks total", r.TasksTotal},
		{"Reports uploaded", r.ReportsUploaded},
		{"Summary", ai.Summary},
		{"Clinical course", ai.ClinicalCourse},
		{"Final diagnosis", ai.FinalDiagnosis},
		{"Medications at discharge", ai.MedicationsAtDischarge},
		{"Follow-up", strings.Join(ai.FollowUpRecommendations, "; ")},
	}

	meds := make([][]interface{}, 0, len(r.Medications))
	for _, m := range r.Medications {
		meds = append(meds, []interface{}{m.Name, m.Dosage, m.Frequency, m.Route})
	}

	return export.XLSX(
		export.Table{
			Sheet:   "Discharge",
			Headers: []string{"Field", "Value"},
			Rows:    overview,
			Widths:  []float64{26, 80},
		},
		export.Table{
			Sheet:   "Medications",
			Headers: []string{"Name", "Dosage", "Frequency", "Route"},
			Rows:    meds,
			Widths:  []float64{28, 16, 18, 14},
		},
	)
}
