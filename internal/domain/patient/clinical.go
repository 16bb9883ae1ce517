package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

var validPriorities = map[string]bool{"high": true, "medium": true, "low": true}

func normalizePriority(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "medium", nil
	}
	if !validPriorities[p] {
		return "", fmt.Errorf("invalid priority: %s", p)
	}
	return p, nil
}

// -- medications --

type MedicationInput struct {
	Name      string  `json:"name"`
	Dosage    string  `json:"dosage"`
	Route     string  `json:"route"`
	Frequency string  `json:"frequency"`
	Timing    *string `json:"timing"`
}

func (s *Service) AddMedication(ctx context.Context, patientID uuid.UUID, in MedicationInput) (*Medication, error) {
	p, err := s.writable(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if strings.TrimSpace(in.Dosage) == "" {
		return nil, fmt.Errorf("dosage is required")
	}
	now := s.now().UTC()
	m := &Medication{
		ID:        uuid.New(),
		PatientID: p.ID,
		Name:      strings.TrimSpace(in.Name),
		Dosage:    in.Dosage,
		Route:     in.Route,
		Frequency: in.Frequency,
		Timing:    in.Timing,
		StartTime: now,
		Status:    "active",
		CreatedAt: now,
	}
	if err := s.repo.AddMedication(ctx, m); err != nil {
		return nil, fmt.Errorf("add medication: %w", err)
	}
	if err := s.record(ctx, "Added medication", p.Name+": "+m.Name); err != nil {
		return nil, err
	}
	s.publish(p.ID, "medication.added", m)
	return m, nil
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListMedications(ctx, patientID, activeOnly)
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.GetMedication(ctx, id)
	if err != nil {
		return err
	}
	p, err := s.Authorize(ctx, m.PatientID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMedication(ctx, id); err != nil {
		return err
	}
	if err := s.record(ctx, "Removed medication", p.Name+": "+m.Name); err != nil {
		return err
	}
	s.publish(p.ID, "medication.removed", m)
	return nil
}

// -- instructions --

type InstructionInput struct {
	Text      string  `json:"instruction_text"`
	Priority  string  `json:"priority"`
	DueTime   *string `json:"due_time"`
	CreatedBy string  `json:"created_by"`
}

func (s *Service) AddInstruction(ctx context.Context, patientID uuid.UUID, in InstructionInput) (*Instruction, error) {
	p, err := s.writable(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("instruction_text is required")
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	createdBy := strings.TrimSpace(in.CreatedBy)
	if createdBy == "" {
		createdBy = actorName(ctx)
	}
	inst := &Instruction{
		ID:        uuid.New(),
		PatientID: p.ID,
		Text:      strings.TrimSpace(in.Text),
		Priority:  priority,
		DueTime:   in.DueTime,
		CreatedBy: createdBy,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AddInstruction(ctx, inst); err != nil {
		return nil, fmt.Errorf("add instruction: %w", err)
	}
	if err := s.record(ctx, "Added instruction", p.Name); err != nil {
		return nil, err
	}
	s.publish(p.ID, "instruction.added", inst)
	return inst, nil
}

func (s *Service) ListInstructions(ctx context.Context, patientID uuid.UUID) ([]*Instruction, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListInstructions(ctx, patientID)
}

func (s *Service) DeleteInstruction(ctx context.Context, id uuid.UUID) error {
	inst, err := s.repo.GetInstruction(ctx, id)
	if err != nil {
		return err
	}
	p, err := s.Authorize(ctx, inst.PatientID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteInstruction(ctx, id); err != nil {
		return err
	}
	if err := s.record(ctx, "Removed instruction", p.Name); err != nil {
		return err
	}
	s.publish(p.ID, "instruction.removed", inst)
	return nil
}

// -- tasks --

type TaskInput struct {
	Text                string     `json:"task_text"`
	Priority            string     `json:"priority"`
	DueTime             *string    `json:"due_time"`
	LinkedInstructionID *uuid.UUID `json:"linked_instruction_id"`
}

func (s *Service) AddTask(ctx context.Context, patientID uuid.UUID, in TaskInput) (*Task, error) {
	p, err := s.writable(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("task_text is required")
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	if in.LinkedInstructionID != nil {
		inst, err := s.repo.GetInstruction(ctx, *in.LinkedInstructionID)
		if err != nil {
			return nil, fmt.Errorf("linked instruction: %w", err)
		}
		if inst.PatientID != p.ID {
			return nil, fmt.Errorf("linked instruction belongs to another patient")
		}
	}
	t := &Task{
		ID:                  uuid.New(),
		PatientID:           p.ID,
		Text:                strings.TrimSpace(in.Text),
		Priority:            priority,
		DueTime:             in.DueTime,
		LinkedInstructionID: in.LinkedInstructionID,
		Status:              TaskPending,
		CreatedAt:           s.now().UTC(),
	}
	if err := s.repo.AddTask(ctx, t); err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	if err := s.record(ctx, "Added task", p.Name); err != nil {
		return nil, err
	}
	s.publish(p.ID, "task.added", t)
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, patientID uuid.UUID) ([]*Task, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, patientID)
}

// CompleteTask marks a task done. Completing a task linked to an
// instruction also completes the instruction.
func (s *Service) CompleteTask(ctx context.Context, id uuid.UUID, completedBy string) (*Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.Authorize(ctx, t.PatientID)
	if err != nil {
		return nil, err
	}
	if t.Status == TaskCompleted {
		return nil, ErrTaskAlreadyCompleted
	}
	by := strings.TrimSpace(completedBy)
	if by == "" {
		by = actorName(ctx)
	}
	now := s.now().UTC()
	var done *Task
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if done, err = s.repo.CompleteTask(ctx, id, by, now); err != nil {
			return err
		}
		if t.LinkedInstructionID != nil {
			if err := s.repo.CompleteInstruction(ctx, *t.LinkedInstructionID, now); err != nil && !errors.Is(err, ErrItemNotFound) {
				return err
			}
		}
		return s.record(ctx, "Completed task", p.Name)
	})
	if err != nil {
		return nil, err
	}
	s.publish(p.ID, "task.completed", done)
	return done, nil
}

// -- messages --

type MessageInput struct {
	Text string `json:"message_text"`
}

// PostMessage appends to the patient's care thread. Sender is taken from
// the signed-in principal.
func (s *Service) PostMessage(ctx context.Context, patientID uuid.UUID, in MessageInput) (*Message, error) {
	p, err := s.Authorize(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("message_text is required")
	}
	pr, _ := auth.PrincipalFromContext(ctx)
	m := &Message{
		ID:         uuid.New(),
		PatientID:  p.ID,
		SenderRole: pr.Role,
		SenderName: pr.Name,
		Text:       strings.TrimSpace(in.Text),
		Timestamp:  s.now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	s.publish(p.ID, "message.posted", m)
	return m, nil
}

func (s *Service) ListMessages(ctx context.Context, patientID uuid.UUID) ([]*Message, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, patientID)
}

// -- reports --

type ReportInput struct {
	FileName      string  `json:"file_name"`
	ReportType    string  `json:"report_type"`
	ExtractedText *string `json:"extracted_text"`
	Findings      *string `json:"findings"`
}

func (s *Service) AddReport(ctx context.Context, patientID uuid.UUID, in ReportInput) (*Report, error) {
	p, err := s.Authorize(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("file_name is required")
	}
	if in.ReportType == "" {
		in.ReportType = "other"
	}
	r := &Report{
		ID:            uuid.New(),
		PatientID:     p.ID,
		FileName:      strings.TrimSpace(in.FileName),
		ReportType:    in.ReportType,
		ExtractedText: in.ExtractedText,
		Findings:      in.Findings,
		UploadedAt:    s.now().UTC(),
	}
	if err := s.repo.AddReport(ctx, r); err != nil {
		return nil, fmt.Errorf("add report: %w", err)
	}
	if err := s.record(ctx, "Uploaded report", p.Name+": "+r.FileName); err != nil {
		return nil, err
	}
	s.publish(p.ID, "report.uploaded", r)
	return r, nil
}

func (s *Service) ListReports(ctx context.Context, patientID uuid.UUID) ([]*Report, error) {
	if _, err := s.Authorize(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListReports(ctx, patientID)
}

func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	r, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return err
	}
	p, err := s.Authorize(ctx, r.PatientID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteReport(ctx, id); err != nil {
		return err
	}
	if err := s.record(ctx, "Removed report", p.Name+": "+r.FileName); err != nil {
		return err
	}
	s.publish(p.ID, "report.removed", r)
	return nil
}

// writable authorizes the patient and rejects discharged charts.
func (s *Service) writable(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.Authorize(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrDischarged
	}
	return p, nil
}
