package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/domain/vitals"
	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/internal/platform/db"
)

const timeLayout = time.RFC3339

// Analyzer assesses a new vitals sample.
type Analyzer interface {
	AnalyzeVitals(ctx context.Context, p *Patient, s *vitals.Sample) (*Analysis, error)
}

// Summarizer writes narrative summaries of a chart.
type Summarizer interface {
	Summarize(ctx context.Context, c *Chart) (*Summary, error)
	SummarizeDischarge(ctx context.Context, c *Chart) (*DischargeSummary, error)
}

// Visibility narrows the directory to what a principal may see.
type Visibility interface {
	Visible(ctx context.Context, p auth.Principal, version uint64, records []*Patient) ([]*Patient, error)
}

// Assigner links a newly admitted patient to the staff member who admitted it.
type Assigner interface {
	AddAssignment(ctx context.Context, uid, patientID string) error
}

// Publisher fans events out to live subscribers.
type Publisher interface {
	Publish(topic string, v interface{})
}

// Event is pushed to the "dashboard" and "patient/<id>" topics.
type Event struct {
	Type      string      `json:"type"`
	PatientID string      `json:"patientId"`
	Data      interface{} `json:"data"`
	At        time.Time   `json:"at"`
}

func PatientTopic(id uuid.UUID) string { return "patient/" + id.String() }

const DashboardTopic = "dashboard"

type Service struct {
	repo       Repository
	audit      audit.Recorder
	logger     zerolog.Logger
	analyzer   Analyzer
	summarizer Summarizer
	visibility Visibility
	assigner   Assigner
	events     Publisher
	tx         db.Transactor
	now        func() time.Time
}

func NewService(repo Repository, recorder audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, audit: recorder, logger: logger, tx: db.UndoTransactor{}, now: time.Now}
}

// SetTransactor replaces the in-memory transactor used for multi-step writes.
func (s *Service) SetTransactor(tx db.Transactor) { s.tx = tx }

// SetAnalyzer attaches the vitals analyzer. Without one every sample is
// classified by the threshold rules.
func (s *Service) SetAnalyzer(a Analyzer) { s.analyzer = a }

// SetSummarizer attaches the summary generator. Without one the templated
// fallbacks are returned.
func (s *Service) SetSummarizer(sum Summarizer) { s.summarizer = sum }

// SetVisibility attaches the per-principal filter. Without one every
// authenticated principal sees the whole directory.
func (s *Service) SetVisibility(v Visibility) { s.visibility = v }

func (s *Service) SetAssigner(a Assigner) { s.assigner = a }

func (s *Service) SetPublisher(p Publisher) { s.events = p }

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// -- directory and visibility --

// Directory returns active then discharged patients and the directory
// version they were read at.
func (s *Service) Directory(ctx context.Context) ([]*Patient, uint64, error) {
	version, err := s.repo.Version(ctx)
	if err != nil {
		return nil, 0, err
	}
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, 0, err
	}
	discharged, err := s.repo.ListDischarged(ctx)
	if err != nil {
		return nil, 0, err
	}
	return append(active, discharged...), version, nil
}

// Visible returns the records the principal on ctx may see.
func (s *Service) Visible(ctx context.Context) ([]*Patient, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrNotVisible
	}
	dir, version, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	if s.visibility == nil {
		return dir, nil
	}
	return s.visibility.Visible(ctx, p, version, dir)
}

// Authorize loads patient id if the principal on ctx may see it.
func (s *Service) Authorize(ctx context.Context, id uuid.UUID) (*Patient, error) {
	pt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.Visible(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range visible {
		if v.ID == id {
			return pt, nil
		}
	}
	return nil, ErrNotVisible
}

func (s *Service) ListActive(ctx context.Context) ([]*Patient, error) {
	return s.filterVisible(ctx, true)
}

func (s *Service) ListDischarged(ctx context.Context) ([]*Patient, error) {
	return s.filterVisible(ctx, false)
}

func (s *Service) filterVisible(ctx context.Context, active bool) ([]*Patient, error) {
	visible, err := s.Visible(ctx)
	if err != nil {
		return nil, err
	}
	out := []*Patient{}
	for _, p := range visible {
		if p.Active == active {
			out = append(out, p)
		}
	}
	return out, nil
}

// LevelCounts tallies patients per status level.
type LevelCounts struct {
	Stable    int `json:"stable"`
	Attention int `json:"attention"`
	Critical  int `json:"critical"`
}

type Dashboard struct {
	Patients    []View      `json:"patients"`
	Counts      LevelCounts `json:"counts"`
	Total       int         `json:"total"`
	AverageRisk int         `json:"averageRisk"`
}

// Dashboard aggregates the visible active patients with their vitals history.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	patients, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Patients: make([]View, 0, len(patients)), Total: len(patients)}
	riskSum := 0
	for _, p := range patients {
		history, err := s.repo.ListVitals(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		d.Patients = append(d.Patients, ToView(p, history))
		switch p.Status {
		case vitals.Stable:
			d.Counts.Stable++
		case vitals.Attention:
			d.Counts.Attention++
		case vitals.Critical:
			d.Counts.Critical++
		}
		riskSum += p.Status.Percent()
	}
	if len(patients) > 0 {
		d.AverageRisk = riskSum / len(patients)
	}
	return d, nil
}

// View returns the dashboard shape of one visible patient.
func (s *Service) View(ctx context.Context, id uuid.UUID) (*View, error) {
	p, err := s.Authorize(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListVitals(ctx, id)
	if err != nil {
		return nil, err
	}
	v := ToView(p, history)
	return &v, nil
}

// Chart returns the full record for a visible patient.
func (s *Service) Chart(ctx context.Context, id uuid.UUID) (*Chart, error) {
	p, err := s.Authorize(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.chart(ctx, p, true)
}

func (s *Service) chart(ctx context.Context, p *Patient, activeMedsOnly bool) (*Chart, error) {
	c := &Chart{Patient: p}
	var err error
	if c.Vitals, err = s.repo.ListVitals(ctx, p.ID); err != nil {
		return nil, err
	}
	if c.Medications, err = s.repo.ListMedications(ctx, p.ID, activeMedsOnly); err != nil {
		return nil, err
	}
	if c.Instructions, err = s.repo.ListInstructions(ctx, p.ID); err != nil {
		return nil, err
	}
	if c.Tasks, err = s.repo.ListTasks(ctx, p.ID); err != nil {
		return nil, err
	}
	if c.Messages, err = s.repo.ListMessages(ctx, p.ID); err != nil {
		return nil, err
	}
	if c.Reports, err = s.repo.ListReports(ctx, p.ID); err != nil {
		return nil, err
	}
	if c.AISummary, err = s.repo.LatestSummary(ctx, p.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// -- admission and edits --

type CreateInput struct {
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Gender    string   `json:"gender"`
	Room      string   `json:"room"`
	Condition string   `json:"condition"`
	Diagnosis *string  `json:"diagnosis"`
	CareMode  CareMode `json:"care_mode"`
	Notes     *string  `json:"notes"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Patient, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if in.Age < 0 || in.Age > 150 {
		return nil, fmt.Errorf("invalid age: %d", in.Age)
	}
	if in.CareMode == "" {
		in.CareMode = CareTaskBased
	}
	if !in.CareMode.Valid() {
		return nil, fmt.Errorf("invalid care_mode: %s", in.CareMode)
	}

	now := s.now().UTC()
	p := &Patient{
		ID:            uuid.New(),
		Name:          in.Name,
		Age:           in.Age,
		Gender:        in.Gender,
		Room:          in.Room,
		Condition:     in.Condition,
		Diagnosis:     in.Diagnosis,
		CareMode:      in.CareMode,
		Status:        vitals.Stable,
		AdmissionTime: now,
		Active:        true,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		return s.record(ctx, "Admitted patient", p.Name)
	})
	if err != nil {
		return nil, err
	}

	if pr, ok := auth.PrincipalFromContext(ctx); ok && pr.Role != auth.RoleAdmin && s.assigner != nil {
		if err := s.assigner.AddAssignment(ctx, pr.UID, p.RecordID()); err != nil {
			s.logger.Warn().Err(err).Str("uid", pr.UID).Str("patient_id", p.RecordID()).Msg("could not assign admitting clinician")
		}
	}
	s.publish(p.ID, "patient.admitted", p)
	return p, nil
}

type UpdateInput struct {
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Gender    string   `json:"gender"`
	Room      string   `json:"room"`
	Condition string   `json:"condition"`
	Diagnosis *string  `json:"diagnosis"`
	Status    string   `json:"status"`
	CareMode  CareMode `json:"care_mode"`
	Notes     *string  `json:"notes"`
}

// Update overwrites the editable fields. Concurrent updates are
// last-write-wins.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Patient, error) {
	p, err := s.Authorize(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if in.Age < 0 || in.Age > 150 {
		return nil, fmt.Errorf("invalid age: %d", in.Age)
	}
	if in.Status != "" {
		level, ok := vitals.ParseLevel(in.Status)
		if !ok {
			return nil, fmt.Errorf("invalid status: %s", in.Status)
		}
		p.Status = level
	}
	if in.CareMode != "" {
		if !in.CareMode.Valid() {
			return nil, fmt.Errorf("invalid care_mode: %s", in.CareMode)
		}
		p.CareMode = in.CareMode
	}

	p.Name = in.Name
	p.Age = in.Age
	p.Gender = in.Gender
	p.Room = in.Room
	p.Condition = in.Condition
	p.Diagnosis = in.Diagnosis
	p.Notes = in.Notes
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.record(ctx, "Updated patient", p.Name); err != nil {
		return nil, err
	}
	s.publish(p.ID, "patient.updated", p)
	return p, nil
}

// -- helpers --

func (s *Service) record(ctx context.Context, action, target string) error {
	_, err := s.audit.Record(ctx, audit.Event{
		Actor:  audit.ActorFromContext(ctx),
		Action: action,
		Target: target,
	})
	return err
}

func (s *Service) publish(id uuid.UUID, typ string, data interface{}) {
	if s.events == nil {
		return
	}
	ev := Event{Type: typ, PatientID: id.String(), Data: data, At: s.now().UTC()}
	s.events.Publish(PatientTopic(id), ev)
	s.events.Publish(DashboardTopic, ev)
}

func actorName(ctx context.Context) string {
	return audit.ActorFromContext(ctx).Name
}
