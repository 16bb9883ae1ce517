package patient

import (
	"fmt"
	"strings"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

// FallbackAnalysis classifies s with the local threshold rules.
func FallbackAnalysis(s *vitals.Sample) *Analysis {
	flags := vitals.Flags(*s)
	a := &Analysis{
		RiskLevel:      vitals.Classify(*s),
		Analysis:       "Automated analysis unavailable. Classified by threshold rules.",
		Recommendation: "Check vitals manually.",
		Flags:          flags,
	}
	if len(flags) > 0 {
		msgs := make([]string, len(flags))
		for i, f := range flags {
			msgs[i] = f.Message
		}
		a.Analysis += " Abnormal: " + strings.Join(msgs, "; ") + "."
	}
	return a
}

// FallbackSummary is used when the summarizer fails.
func FallbackSummary(c *Chart) *Summary {
	return &Summary{
		Overview: fmt.Sprintf("Unable to generate AI summary. %s is currently %s with %s.",
			c.Name, c.Status, c.Condition),
		KeyPoints: []string{
			"Care mode: " + string(c.CareMode),
			"Current status: " + string(c.Status),
		},
		RecentChanges:   []string{},
		Recommendations: []string{"AI service temporarily unavailable"},
	}
}

// FallbackDischargeSummary is used when the discharge summarizer fails.
// c.DischargeTime must be set.
func FallbackDischargeSummary(c *Chart) *DischargeSummary {
	var discharged string
	if c.DischargeTime != nil {
		discharged = c.DischargeTime.UTC().Format(timeLayout)
	}
	return &DischargeSummary{
		Summary: fmt.Sprintf("Discharge summary for %s. Patient was admitted on %s and discharged on %s.",
			c.Name, c.AdmissionTime.UTC().Format(timeLayout), discharged),
		ClinicalCourse:          "AI service temporarily unavailable",
		FinalDiagnosis:          FinalDiagnosis(c.Patient),
		MedicationsAtDischarge:  medicationList(c.Medications),
		FollowUpRecommendations: []string{"Follow up with primary care physician"},
	}
}

// FinalDiagnosis returns the recorded diagnosis or "Not specified".
func FinalDiagnosis(p *Patient) string {
	if p.Diagnosis == nil || *p.Diagnosis == "" {
		return "Not specified"
	}
	return *p.Diagnosis
}

func medicationList(meds []*Medication) string {
	if len(meds) == 0 {
		return "None"
	}
	parts := make([]string, len(meds))
	for i, m := range meds {
		parts[i] = m.Name + " " + m.Dosage
	}
	return strings.Join(parts, ", ")
}
