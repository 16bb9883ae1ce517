package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

type CareMode string

const (
	CareLiveMonitoring CareMode = "live_monitoring"
	CareTaskBased      CareMode = "task_based"
)

func (m CareMode) Valid() bool {
	return m == CareLiveMonitoring || m == CareTaskBased
}

// Patient is the stored directory record. JSON uses the storage field names.
type Patient struct {
	ID            uuid.UUID    `json:"patient_id"`
	Seq           int64        `json:"seq"`
	Name          string       `json:"name"`
	Age           int          `json:"age"`
	Gender        string       `json:"gender"`
	Room          string       `json:"room"`
	Condition     string       `json:"condition"`
	Diagnosis     *string      `json:"diagnosis"`
	CareMode      CareMode     `json:"care_mode"`
	Status        vitals.Level `json:"status"`
	AdmissionTime time.Time    `json:"admission_time"`
	DischargeTime *time.Time   `json:"discharge_time"`
	Active        bool         `json:"active"`
	Notes         *string      `json:"notes"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// RecordID identifies the record to the visibility scoper.
func (p *Patient) RecordID() string { return p.ID.String() }

func (p *Patient) Monitored() bool { return p.CareMode == CareLiveMonitoring }

type Medication struct {
	ID        uuid.UUID  `json:"medication_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage"`
	Route     string     `json:"route"`
	Frequency string     `json:"frequency"`
	Timing    *string    `json:"timing"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

type Instruction struct {
	ID          uuid.UUID  `json:"instruction_id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	Text        string     `json:"instruction_text"`
	Priority    string     `json:"priority"`
	DueTime     *string    `json:"due_time"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
)

type Task struct {
	ID                  uuid.UUID  `json:"task_id"`
	PatientID           uuid.UUID  `json:"patient_id"`
	Text                string     `json:"task_text"`
	Priority            string     `json:"priority"`
	DueTime             *string    `json:"due_time"`
	LinkedInstructionID *uuid.UUID `json:"linked_instruction_id"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at"`
	CompletedBy         *string    `json:"completed_by"`
}

type Message struct {
	ID         uuid.UUID `json:"message_id"`
	PatientID  uuid.UUID `json:"patient_id"`
	SenderRole string    `json:"sender_role"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"message_text"`
	Timestamp  time.Time `json:"timestamp"`
}

type Report struct {
	ID            uuid.UUID `json:"report_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	FileName      string    `json:"file_name"`
	ReportType    string    `json:"report_type"`
	ExtractedText *string   `json:"extracted_text"`
	Findings      *string   `json:"findings"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// Summary is the generated overview of a patient's chart.
type Summary struct {
	Overview        string   `json:"overview"`
	KeyPoints       []string `json:"keyPoints"`
	RecentChanges   []string `json:"recentChanges"`
	Recommendations []string `json:"recommendations"`
}

type StoredSummary struct {
	ID        uuid.UUID `json:"summary_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Summary
	GeneratedAt time.Time `json:"generated_at"`
}

// Analysis is the risk assessment of one vitals sample.
type Analysis struct {
	RiskLevel      vitals.Level  `json:"riskLevel"`
	Analysis       string        `json:"analysis"`
	Recommendation string        `json:"recommendation"`
	Flags          []vitals.Flag `json:"flags,omitempty"`
}

type DischargeSummary struct {
	Summary                 string   `json:"summary"`
	ClinicalCourse          string   `json:"clinicalCourse"`
	FinalDiagnosis          string   `json:"finalDiagnosis"`
	MedicationsAtDischarge  string   `json:"medicationsAtDischarge"`
	FollowUpRecommendations []string `json:"followUpRecommendations"`
}

type MedicationLine struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Route     string `json:"route"`
}

type DischargeReport struct {
	PatientID             uuid.UUID        `json:"patient_id"`
	PatientName           string           `json:"patient_name"`
	Age                   int              `json:"age"`
	Gender                string           `json:"gender"`
	Room                  string           `json:"room"`
	AdmissionTime         time.Time        `json:"admission_time"`
	DischargeTime         time.Time        `json:"discharge_time"`
	LengthOfStay          int              `json:"length_of_stay"`
	Diagnosis             *string          `json:"diagnosis"`
	Condition             string           `json:"condition"`
	FinalStatus           vitals.Level     `json:"final_status"`
	CareMode              CareMode         `json:"care_mode"`
	VitalsSummary         vitals.Summary   `json:"vitals_summary"`
	Medications           []MedicationLine `json:"medications"`
	InstructionsCompleted int              `json:"instructions_completed"`
	InstructionsTotal     int              `json:"instructions_total"`
	TasksCompleted        int              `json:"tasks_completed"`
	TasksTotal            int              `json:"tasks_total"`
	ReportsUploaded       int              `json:"reports_uploaded"`
	AIDischargeSummary    DischargeSummary `json:"ai_discharge_summary"`
	GeneratedAt           time.Time        `json:"generated_at"`
}

// Chart is a patient with everything recorded against them.
type Chart struct {
	*Patient
	Vitals       []*vitals.Sample `json:"vitals"`
	Medications  []*Medication    `json:"medications"`
	Instructions []*Instruction   `json:"instructions"`
	Tasks        []*Task          `json:"tasks"`
	Messages     []*Message       `json:"messages"`
	Reports      []*Report        `json:"reports"`
	AISummary    *StoredSummary   `json:"aiSummary"`
}

// LatestVitals returns the newest sample, or nil.
func (c *Chart) LatestVitals() *vitals.Sample {
	if len(c.Vitals) == 0 {
		return nil
	}
	return c.Vitals[len(c.Vitals)-1]
}
