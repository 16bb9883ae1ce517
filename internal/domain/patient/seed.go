package patient

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

// SeedCounts reports what Seed inserted.
type SeedCounts struct {
	Patients     int `json:"patients"`
	Vitals       int `json:"vitals"`
	Medications  int `json:"medications"`
	Instructions int `json:"instructions"`
	Tasks        int `json:"tasks"`
	Messages     int `json:"messages"`
	Reports      int `json:"reports"`
}

type demoPatient struct {
	name, gender, room, condition, diagnosis, notes string
	age                                             int
	mode                                            CareMode
	status                                          vitals.Level
	admittedDaysAgo                                 int
}

var demoPatients = []demoPatient{
	{"John Doe", "Male", "101", "Post-operative recovery", "Appendectomy",
		"Patient recovering well from surgery", 45, CareLiveMonitoring, vitals.Stable, 2},
	{"Sarah Smith", "Female", "203", "Diabetes management", "Type 2 Diabetes Mellitus",
		"Blood sugar monitoring required", 62, CareTaskBased, vitals.Attention, 5},
	{"Maria Garcia", "Female", "305", "Pneumonia treatment", "Community-acquired pneumonia",
		"Responding well to antibiotics", 38, CareLiveMonitoring, vitals.Stable, 3},
}

type demoMed struct {
	patient                           int
	name, dosage, route, freq, timing string
}

var demoMeds = []demoMed{
	{0, "Ibuprofen", "400mg", "oral", "3x daily", "after meals"},
	{0, "Amoxicillin", "500mg", "oral", "2x daily", ""},
	{1, "Metformin", "850mg", "oral", "2x daily", "with meals"},
	{1, "Insulin Glargine", "20 units", "injection", "1x daily", "bedtime"},
	{2, "Azithromycin", "500mg", "IV", "1x daily", ""},
	{2, "Albuterol", "2 puffs", "inhaled", "as needed", ""},
}

type demoNote struct {
	patient        int
	text, priority string
	due            string
}

var demoInstructions = []demoNote{
	{0, "Monitor surgical site for infection", "high", ""},
	{0, "Encourage ambulation 3x daily", "medium", ""},
	{1, "Check blood glucose before meals", "high", "Before each meal"},
	{1, "Administer insulin at bedtime", "high", "10:00 PM"},
	{2, "Monitor oxygen saturation", "high", "Every 4 hours"},
	{2, "Chest physiotherapy 2x daily", "medium", "9:00 AM, 5:00 PM"},
}

var demoTasks = []struct {
	patient        int
	text, priority string
	done           bool
}{
	{0, "Change surgical dressing", "high", true},
	{0, "Assist with ambulation", "medium", false},
	{1, "Blood glucose check", "high", true},
	{1, "Administer evening insulin", "high", false},
	{2, "Administer IV antibiotics", "high", true},
	{2, "Chest physiotherapy session", "medium", false},
}

var demoMessages = []struct {
	patient          int
	role, name, text string
}{
	{0, "doctor", "Dr. Smith", "Patient is recovering well. Continue current treatment plan."},
	{0, "nurse", "Nurse Johnson", "Noted. Surgical site looks clean, no signs of infection."},
	{1, "nurse", "Nurse Johnson", "Blood sugar levels have been elevated this morning."},
	{1, "doctor", "Dr. Smith", "Increase insulin dose by 2 units. Monitor closely."},
	{2, "doctor", "Dr. Smith", "Patient responding well to antibiotics. Continue current regimen."},
	{2, "nurse", "Nurse Johnson", "SpO2 levels improving. Patient breathing easier."},
}

var demoReports = []struct {
	patient              int
	name, kind, findings string
}{
	{0, "Pre-op Blood Work", "BLOOD_TEST", "All values within normal range"},
	{1, "HbA1c Test Results", "LAB_REPORT", "HbA1c: 7.8% - indicates need for better glucose control"},
	{2, "Chest X-Ray", "XRAY", "Bilateral infiltrates consistent with pneumonia"},
}

const seedVitalsPerPatient = 5

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Seed writes the demo ward straight into repo. Vitals jitter comes from rnd
// so callers can make the output reproducible.
func Seed(ctx context.Context, repo Repository, now time.Time, rnd *rand.Rand) (SeedCounts, error) {
	var n SeedCounts
	now = now.UTC()
	ids := make([]uuid.UUID, len(demoPatients))

	for i, d := range demoPatients {
		p := &Patient{
			ID:            uuid.New(),
			Name:          d.name,
			Age:           d.age,
			Gender:        d.gender,
			Room:          d.room,
			Condition:     d.condition,
			Diagnosis:     optional(d.diagnosis),
			CareMode:      d.mode,
			Status:        d.status,
			AdmissionTime: now.Add(-time.Duration(d.admittedDaysAgo) * 24 * time.Hour),
			Active:        true,
			Notes:         optional(d.notes),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repo.Create(ctx, p); err != nil {
			return n, fmt.Errorf("seed patient %s: %w", d.name, err)
		}
		ids[i] = p.ID
		n.Patients++

		if !p.Monitored() {
			continue
		}
		for k := 0; k < seedVitalsPerPatient; k++ {
			s := &vitals.Sample{
				ID:              uuid.New(),
				PatientID:       p.ID,
				Timestamp:       now.Add(-time.Duration(seedVitalsPerPatient-1-k) * time.Hour),
				HeartRate:       70 + rnd.Intn(20),
				SystolicBP:      110 + rnd.Intn(20),
				DiastolicBP:     70 + rnd.Intn(15),
				SpO2:            95 + rnd.Intn(5),
				RespiratoryRate: 14 + rnd.Intn(6),
				Temperature:     36.5 + rnd.Float64()*1.5,
				Source:          "manual",
			}
			if err := repo.AddVitals(ctx, s); err != nil {
				return n, fmt.Errorf("seed vitals: %w", err)
			}
			n.Vitals++
		}
	}

	for _, m := range demoMeds {
		err := repo.AddMedication(ctx, &Medication{
			ID: uuid.New(), PatientID: ids[m.patient], Name: m.name, Dosage: m.dosage,
			Route: m.route, Frequency: m.freq, Timing: optional(m.timing),
			StartTime: now, Status: "active", CreatedAt: now,
		})
		if err != nil {
			return n, fmt.Errorf("seed medication: %w", err)
		}
		n.Medications++
	}

	for i, in := range demoInstructions {
		err := repo.AddInstruction(ctx, &Instruction{
			ID: uuid.New(), PatientID: ids[in.patient], Text: in.text, Priority: in.priority,
			DueTime: optional(in.due), CreatedBy: "Dr. Smith",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			return n, fmt.Errorf("seed instruction: %w", err)
		}
		n.Instructions++
	}

	for _, t := range demoTasks {
		task := &Task{
			ID: uuid.New(), PatientID: ids[t.patient], Text: t.text, Priority: t.priority,
			Status: TaskPending, CreatedAt: now.Add(-2 * time.Hour),
		}
		if err := repo.AddTask(ctx, task); err != nil {
			return n, fmt.Errorf("seed task: %w", err)
		}
		if t.done {
			if _, err := repo.CompleteTask(ctx, task.ID, "Nurse Johnson", now.Add(-time.Hour)); err != nil {
				return n, fmt.Errorf("seed task completion: %w", err)
			}
		}
		n.Tasks++
	}

	for i, m := range demoMessages {
		err := repo.AddMessage(ctx, &Message{
			ID: uuid.New(), PatientID: ids[m.patient], SenderRole: m.role, SenderName: m.name,
			Text: m.text, Timestamp: now.Add(-time.Duration(len(demoMessages)-i) * time.Hour),
		})
		if err != nil {
			return n, fmt.Errorf("seed message: %w", err)
		}
		n.Messages++
	}

	for _, r := range demoReports {
		err := repo.AddReport(ctx, &Report{
			ID: uuid.New(), PatientID: ids[r.patient], FileName: r.name, ReportType: r.kind,
			Findings: optional(r.findings), UploadedAt: now,
		})
		if err != nil {
			return n, fmt.Errorf("seed report: %w", err)
		}
		n.Reports++
	}

	return n, nil
}
