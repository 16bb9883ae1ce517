package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

var (
	ErrNotFound             = errors.New("patient not found")
	ErrItemNotFound         = errors.New("record not found")
	ErrDischarged           = errors.New("patient has been discharged")
	ErrNotVisible           = errors.New("patient is not assigned to your account")
	ErrNoDischargeReport    = errors.New("discharge report not found")
	ErrTaskAlreadyCompleted = errors.New("task is already completed")
)

// Repository stores the directory and every record hanging off a patient.
// Writes are last-write-wins; there is no optimistic locking.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// ListActive returns admitted patients, newest admission first.
	ListActive(ctx context.Context) ([]*Patient, error)
	// ListDischarged returns discharged patients, newest discharge first.
	ListDischarged(ctx context.Context) ([]*Patient, error)
	// Version changes whenever a patient is created or updated.
	Version(ctx context.Context) (uint64, error)

	AddVitals(ctx context.Context, s *vitals.Sample) error
	// ListVitals returns samples oldest first.
	ListVitals(ctx context.Context, patientID uuid.UUID) ([]*vitals.Sample, error)

	AddMedication(ctx context.Context, m *Medication) error
	GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error)
	DeleteMedication(ctx context.Context, id uuid.UUID) error
	ListMedications(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error)

	AddInstruction(ctx context.Context, in *Instruction) error
	GetInstruction(ctx context.Context, id uuid.UUID) (*Instruction, error)
	DeleteInstruction(ctx context.Context, id uuid.UUID) error
	CompleteInstruction(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListInstructions returns newest first.
	ListInstructions(ctx context.Context, patientID uuid.UUID) ([]*Instruction, error)

	AddTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)
	CompleteTask(ctx context.Context, id uuid.UUID, by string, at time.Time) (*Task, error)
	// ListTasks returns newest first.
	ListTasks(ctx context.Context, patientID uuid.UUID) ([]*Task, error)

	AddMessage(ctx context.Context, m *Message) error
	// ListMessages returns oldest first.
	ListMessages(ctx context.Context, patientID uuid.UUID) ([]*Message, error)

	AddReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
	DeleteReport(ctx context.Context, id uuid.UUID) error
	// ListReports returns newest upload first.
	ListReports(ctx context.Context, patientID uuid.UUID) ([]*Report, error)

	AddSummary(ctx context.Context, s *StoredSummary) error
	// LatestSummary returns nil, nil when none was generated.
	LatestSummary(ctx context.Context, patientID uuid.UUID) (*StoredSummary, error)

	AddDischargeReport(ctx context.Context, r *DischargeReport) error
	LatestDischargeReport(ctx context.Context, patientID uuid.UUID) (*DischargeReport, error)
}
