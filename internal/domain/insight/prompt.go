// Package insight produces risk assessments and narrative summaries for
// patient charts, either from the Gemini API or from a deterministic stub.
package insight

import (
	"fmt"
	"strings"
	"time"

	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/domain/vitals"
)

const findingsExcerpt = 200

func careModeLabel(m patient.CareMode) string {
	if m == patient.CareLiveMonitoring {
		return "Continuous Monitoring"
	}
	return "Task-Based Care"
}

func chartContext(c *patient.Chart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient Information:\n- Name: %s\n- Age: %d\n- Gender: %s\n- Condition: %s\n- Room: %s\n- Care Mode: %s\n- Current Status: %s\n- Admission Time: %s\n",
		c.Name, c.Age, c.Gender, c.Condition, c.Room, careModeLabel(c.CareMode), c.Status,
		c.AdmissionTime.UTC().Format(time.RFC3339))
	if c.Diagnosis != nil && *c.Diagnosis != "" {
		fmt.Fprintf(&b, "\nDiagnosis: %s\n", *c.Diagnosis)
	}

	if v := c.LatestVitals(); v != nil {
		fmt.Fprintf(&b, "\nLatest Vitals (%s):\n%s", v.Timestamp.UTC().Format(time.RFC3339), vitalsLines(v))
	}

	if len(c.Medications) > 0 {
		fmt.Fprintf(&b, "\nActive Medications (%d):\n", len(c.Medications))
		for _, m := range c.Medications {
			fmt.Fprintf(&b, "- %s: %s, %s, %s", m.Name, m.Dosage, m.Frequency, m.Route)
			if m.Timing != nil && *m.Timing != "" {
				fmt.Fprintf(&b, " (%s)", *m.Timing)
			}
			b.WriteByte('\n')
		}
	}

	if len(c.Instructions) > 0 {
		fmt.Fprintf(&b, "\nDoctor Instructions (%d):\n", len(c.Instructions))
		for _, in := range c.Instructions {
			fmt.Fprintf(&b, "- [%s] %s", strings.ToUpper(in.Priority), in.Text)
			if in.DueTime != nil && *in.DueTime != "" {
				fmt.Fprintf(&b, " (Due: %s)", *in.DueTime)
			}
			b.WriteByte('\n')
		}
	}

	if len(c.Tasks) > 0 {
		pending, completed := taskCounts(c.Tasks)
		fmt.Fprintf(&b, "\nNurse Tasks: %d pending, %d completed\n", pending, completed)
	}

	if len(c.Reports) > 0 {
		fmt.Fprintf(&b, "\nUploaded Reports (%d):\n", len(c.Reports))
		for _, r := range c.Reports {
			fmt.Fprintf(&b, "- %s (%s)\n", r.FileName, r.ReportType)
			if r.Findings != nil && *r.Findings != "" {
				f := *r.Findings
				if len(f) > findingsExcerpt {
					f = f[:findingsExcerpt]
				}
				fmt.Fprintf(&b, "  Findings: %s\n", f)
			}
		}
	}
	return b.String()
}

func vitalsLines(v *vitals.Sample) string {
	return fmt.Sprintf("- Heart Rate: %d bpm\n- Blood Pressure: %d/%d mmHg\n- SpO2: %d%%\n- Respiratory Rate: %d /min\n- Temperature: %v C\n",
		v.HeartRate, v.SystolicBP, v.DiastolicBP, v.SpO2, v.RespiratoryRate, v.Temperature)
}

func taskCounts(tasks []*patient.Task) (pending, completed int) {
	for _, t := range tasks {
		if t.Status == patient.TaskCompleted {
			completed++
		} else {
			pending++
		}
	}
	return pending, completed
}

func summaryPrompt(c *patient.Chart) string {
	return `You are a clinical assistant helping healthcare professionals understand a patient's current status.
Generate a concise, human-readable summary of this patient's condition.

` + chartContext(c) + `
Provide a structured summary with:
1. A brief overview paragraph (2-3 sentences) describing the patient's current status
2. Key points to note (3-5 bullet points about important clinical information)
3. Recent changes or trends, if the vitals or completed tasks show any
4. Care considerations about care coordination, not prescriptive recommendations

Be descriptive and assistive, not diagnostic or prescriptive. This is reference information only.`
}

func dischargePrompt(c *patient.Chart) string {
	var b strings.Builder
	var discharged string
	if c.DischargeTime != nil {
		discharged = c.DischargeTime.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "PATIENT DISCHARGE SUMMARY\n\nPatient Information:\n- Name: %s\n- Age: %d\n- Gender: %s\n- Room: %s\n- Admission Date: %s\n- Discharge Date: %s\n",
		c.Name, c.Age, c.Gender, c.Room, c.AdmissionTime.UTC().Format(time.RFC3339), discharged)
	if c.DischargeTime != nil {
		fmt.Fprintf(&b, "- Length of Stay: %d days\n", patient.LengthOfStay(c.AdmissionTime, *c.DischargeTime))
	}
	fmt.Fprintf(&b, "- Care Mode: %s\n- Final Status: %s\n\nDiagnosis: %s\nCondition: %s\n",
		c.CareMode, c.Status, patient.FinalDiagnosis(c.Patient), c.Condition)

	if n := len(c.Vitals); n > 0 {
		first, last := c.Vitals[0], c.Vitals[n-1]
		fmt.Fprintf(&b, "\nVitals Summary:\n- Total readings: %d\n- First reading: HR %d, BP %d/%d, SpO2 %d%%\n- Last reading: HR %d, BP %d/%d, SpO2 %d%%\n",
			n, first.HeartRate, first.SystolicBP, first.DiastolicBP, first.SpO2,
			last.HeartRate, last.SystolicBP, last.DiastolicBP, last.SpO2)
	}
	if len(c.Medications) > 0 {
		fmt.Fprintf(&b, "\nMedications Administered (%d):\n", len(c.Medications))
		for _, m := range c.Medications {
			fmt.Fprintf(&b, "- %s: %s, %s, %s\n", m.Name, m.Dosage, m.Frequency, m.Route)
		}
	}
	if len(c.Instructions) > 0 {
		fmt.Fprintf(&b, "\nDoctor Instructions (%d):\n", len(c.Instructions))
		for _, in := range c.Instructions {
			state := "Pending"
			if in.Completed {
				state = "Completed"
			}
			fmt.Fprintf(&b, "- %s [%s]\n", in.Text, state)
		}
	}
	if len(c.Tasks) > 0 {
		_, completed := taskCounts(c.Tasks)
		fmt.Fprintf(&b, "\nNurse Tasks: %d/%d completed\n", completed, len(c.Tasks))
	}

	return `Generate a comprehensive discharge summary for this patient.

` + b.String() + `
Provide a structured discharge summary with:
1. A clinical course summary describing the hospital stay
2. Final diagnosis and condition at discharge
3. Medications at discharge
4. Follow-up recommendations

Summarize the care provided from the data above. Do not make new medical recommendations.`
}

func vitalsPrompt(p *patient.Patient, s *vitals.Sample) string {
	return fmt.Sprintf(`Analyze the following patient vitals and provide a risk assessment.

Patient Context:
Age: %d
Gender: %s
Condition: %s

Current Vitals:
%s
Determine if the patient is stable, attention (needs observation), or critical (immediate action).
Provide a short clinical analysis and a recommendation for the nurse.`, p.Age, p.Gender, p.Condition, vitalsLines(s))
}
