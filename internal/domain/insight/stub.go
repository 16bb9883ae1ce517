package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/domain/vitals"
)

// Stub answers without any network call. Its outputs depend only on the
// chart, so it is safe for demos and tests.
type Stub struct{}

func (Stub) AnalyzeVitals(_ context.Context, _ *patient.Patient, s *vitals.Sample) (*patient.Analysis, error) {
	return &patient.Analysis{
		RiskLevel:      vitals.Classify(*s),
		Analysis:       "API Key missing. This is a simulated AI response.",
		Recommendation: "Configure API key for real-time analysis.",
		Flags:          vitals.Flags(*s),
	}, nil
}

func (Stub) Summarize(_ context.Context, c *patient.Chart) (*patient.Summary, error) {
	return &patient.Summary{
		Overview: fmt.Sprintf("%s is a %d-year-old %s with %s.", c.Name, c.Age, strings.ToLower(c.Gender), c.Condition),
		KeyPoints: []string{
			"Patient status: " + string(c.Status),
			"Care mode: " + string(c.CareMode),
			fmt.Sprintf("%d active medications", len(activeMeds(c.Medications))),
		},
		RecentChanges:   []string{"Mock data - configure API key for real analysis"},
		Recommendations: []string{"Configure Gemini API key for AI-powered insights"},
	}, nil
}

func (Stub) SummarizeDischarge(_ context.Context, c *patient.Chart) (*patient.DischargeSummary, error) {
	fb := patient.FallbackDischargeSummary(c)
	names := make([]string, len(c.Medications))
	for i, m := range c.Medications {
		names[i] = m.Name
	}
	meds := strings.Join(names, ", ")
	if meds == "" {
		meds = "None"
	}
	return &patient.DischargeSummary{
		Summary:                 fb.Summary,
		ClinicalCourse:          "API key required for detailed discharge summary",
		FinalDiagnosis:          fb.FinalDiagnosis,
		MedicationsAtDischarge:  meds,
		FollowUpRecommendations: []string{"Configure API key for AI-generated recommendations"},
	}, nil
}

func activeMeds(meds []*patient.Medication) []*patient.Medication {
	out := make([]*patient.Medication, 0, len(meds))
	for _, m := range meds {
		if m.Status == "" || m.Status == "active" {
			out = append(out, m)
		}
	}
	return out
}
