package patient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/domain/access"
	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/domain/identity"
	"github.com/vitalguard/careboard/internal/domain/vitals"
	"github.com/vitalguard/careboard/internal/platform/auth"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []Event
}

func (p *recordingPublisher) Publish(topic string, v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if ev, ok := v.(Event); ok {
		p.events = append(p.events, ev)
	}
}

type fixture struct {
	svc   *Service
	trail *audit.Trail
	users *identity.Service
	pub   *recordingPublisher
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: t0, pub: &recordingPublisher{}}
	clock := func() time.Time { return f.now }
	f.trail = audit.NewTrail(audit.NewMemoryRepo(), zerolog.Nop()).WithClock(clock)
	f.users = identity.NewService(identity.NewMemoryStore())
	f.svc = NewService(NewMemoryRepo(), f.trail, zerolog.Nop()).WithClock(clock)
	f.svc.SetVisibility(access.NewGate[*Patient](f.users))
	f.svc.SetAssigner(f.users)
	f.svc.SetPublisher(f.pub)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func asAdmin() context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UID: "ADM-0001", Name: "Ada", Role: auth.RoleAdmin})
}

func (f *fixture) signup(t *testing.T, name, email, role string) context.Context {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Signup(ctx, identity.SignupInput{Name: name, Email: email, Role: role})
	require.NoError(t, err)
	if identity.NeedsApproval(role) {
		u, err = f.users.Approve(ctx, email, role)
		require.NoError(t, err)
	}
	return auth.WithPrincipal(ctx, u.Principal())
}

func (f *fixture) admit(t *testing.T, ctx context.Context, name string, mode CareMode) *Patient {
	t.Helper()
	p, err := f.svc.Create(ctx, CreateInput{Name: name, Age: 60, Gender: "Female", Room: "101", Condition: "Observation", CareMode: mode})
	require.NoError(t, err)
	f.advance(time.Minute)
	return p
}

func TestCreate_Defaults(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(asAdmin(), CreateInput{Name: "  Rosa Diaz ", Age: 44})
	require.NoError(t, err)

	assert.Equal(t, "Rosa Diaz", p.Name)
	assert.Equal(t, CareTaskBased, p.CareMode)
	assert.Equal(t, vitals.Stable, p.Status)
	assert.True(t, p.Active)
	assert.Equal(t, t0, p.AdmissionTime)
	assert.Equal(t, int64(1), p.Seq)

	entries, _, err := f.trail.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Admitted patient", entries[0].Action)
	assert.Equal(t, "Rosa Diaz", entries[0].Target)
	assert.Contains(t, f.pub.topics, DashboardTopic)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []CreateInput{
		{Name: " "},
		{Name: "A", Age: -1},
		{Name: "A", CareMode: "bedside"},
	}
	for _, in := range cases {
		_, err := f.svc.Create(asAdmin(), in)
		assert.Error(t, err, in)
	}
}

func TestCreate_AssignsAdmittingClinician(t *testing.T) {
	f := newFixture(t)
	doc := f.signup(t, "Dee", "dee@example.com", auth.RoleDoctor)

	p := f.admit(t, doc, "Sam", CareTaskBased)

	u, err := f.users.Get(context.Background(), auth.UserIDFromContext(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{p.RecordID()}, u.AssignedPatientIDs)

	_, err = f.svc.Chart(doc, p.ID)
	assert.NoError(t, err)
}

func TestVisibility_ByRole(t *testing.T) {
	f := newFixture(t)
	admin := asAdmin()
	a := f.admit(t, admin, "Alpha", CareTaskBased)
	b := f.admit(t, admin, "Bravo", CareLiveMonitoring)

	nurse := f.signup(t, "Ned", "ned@example.com", auth.RoleNurse)
	pat := f.signup(t, "Pia", "pia@example.com", auth.RolePatient)

	all, err := f.svc.ListActive(admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest admission first")

	none, err := f.svc.ListActive(nurse)
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = f.svc.Chart(nurse, a.ID)
	assert.ErrorIs(t, err, ErrNotVisible)

	first, err := f.svc.ListActive(pat)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, b.ID, first[0].ID)

	_, err = f.users.AssignPatients(context.Background(), auth.UserIDFromContext(nurse), []string{a.RecordID()})
	require.NoError(t, err)
	got, err := f.svc.ListActive(nurse)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestVisibility_RequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	f.admit(t, asAdmin(), "Alpha", CareTaskBased)
	_, err := f.svc.ListActive(context.Background())
	assert.ErrorIs(t, err, ErrNotVisible)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareTaskBased)
	diag := "Pneumonia"

	got, err := f.svc.Update(ctx, p.ID, UpdateInput{Name: "Alpha B", Age: 61, Status: "critical", Diagnosis: &diag, CareMode: CareLiveMonitoring})
	require.NoError(t, err)
	assert.Equal(t, "Alpha B", got.Name)
	assert.Equal(t, vitals.Critical, got.Status)
	assert.Equal(t, CareLiveMonitoring, got.CareMode)
	assert.Equal(t, "Pneumonia", *got.Diagnosis)

	_, err = f.svc.Update(ctx, p.ID, UpdateInput{Name: "Alpha", Status: "grave"})
	assert.Error(t, err)
	_, err = f.svc.Update(ctx, uuid.New(), UpdateInput{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubAnalyzer struct {
	a   *Analysis
	err error
}

func (s stubAnalyzer) AnalyzeVitals(context.Context, *Patient, *vitals.Sample) (*Analysis, error) {
	return s.a, s.err
}

func TestRecordVitals_FallbackHeuristic(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareLiveMonitoring)
	f.svc.SetAnalyzer(stubAnalyzer{err: errors.New("upstream down")})

	res, err := f.svc.RecordVitals(ctx, p.ID, vitals.Sample{HeartRate: 130, SpO2: 88, Temperature: 37})
	require.NoError(t, err)
	assert.Equal(t, vitals.Critical, res.Status)
	assert.Len(t, res.Analysis.Flags, 2)
	assert.Equal(t, "manual", res.Vital.Source)

	chart, err := f.svc.Chart(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, vitals.Critical, chart.Status)
	require.Len(t, chart.Vitals, 1)

	entries, _, _ := f.trail.List(context.Background(), 10, 0)
	assert.Equal(t, "Recorded vitals", entries[0].Action)
	assert.Contains(t, f.pub.topics, PatientTopic(p.ID))
}

func TestRecordVitals_AnalyzerResult(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareLiveMonitoring)

	f.svc.SetAnalyzer(stubAnalyzer{a: &Analysis{RiskLevel: "ATTENTION", Analysis: "ok", Recommendation: "watch"}})
	res, err := f.svc.RecordVitals(ctx, p.ID, vitals.Sample{HeartRate: 80})
	require.NoError(t, err)
	assert.Equal(t, vitals.Attention, res.Status)

	f.svc.SetAnalyzer(stubAnalyzer{a: &Analysis{RiskLevel: "unknown"}})
	res, err = f.svc.RecordVitals(ctx, p.ID, vitals.Sample{HeartRate: 80})
	require.NoError(t, err)
	assert.Equal(t, vitals.Stable, res.Status)
}

func TestRecordVitals_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareLiveMonitoring)

	_, err := f.svc.RecordVitals(ctx, p.ID, vitals.Sample{})
	assert.Error(t, err)
	_, err = f.svc.RecordVitals(ctx, p.ID, vitals.Sample{SpO2: 140})
	assert.Error(t, err)

	_, err = f.svc.Discharge(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.svc.RecordVitals(ctx, p.ID, vitals.Sample{HeartRate: 70})
	assert.ErrorIs(t, err, ErrDischarged)
}

func TestIngestVitals(t *testing.T) {
	f := newFixture(t)
	admin := asAdmin()
	live := f.admit(t, admin, "Live", CareLiveMonitoring)
	tasks := f.admit(t, admin, "Tasks", CareTaskBased)

	res, err := f.svc.IngestVitals(context.Background(), live.ID, vitals.Sample{HeartRate: 72, Source: "spoofed"})
	require.NoError(t, err)
	assert.Equal(t, "device", res.Vital.Source)

	_, err = f.svc.IngestVitals(context.Background(), tasks.ID, vitals.Sample{HeartRate: 72})
	assert.ErrorIs(t, err, ErrNotMonitored)

	entries, _, _ := f.trail.List(context.Background(), 1, 0)
	assert.Equal(t, audit.SystemActor.Name, entries[0].ActorName)
}

func TestTasks_CompleteLinkedInstruction(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareTaskBased)

	inst, err := f.svc.AddInstruction(ctx, p.ID, InstructionInput{Text: "Ambulate twice daily", Priority: "HIGH"})
	require.NoError(t, err)
	assert.Equal(t, "high", inst.Priority)
	assert.Equal(t, "Ada", inst.CreatedBy)

	task, err := f.svc.AddTask(ctx, p.ID, TaskInput{Text: "Walk the hallway", LinkedInstructionID: &inst.ID})
	require.NoError(t, err)
	assert.Equal(t, TaskPending, task.Status)
	assert.Equal(t, "medium", task.Priority)

	done, err := f.svc.CompleteTask(ctx, task.ID, "")
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, done.Status)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, "Ada", *done.CompletedBy)

	_, err = f.svc.CompleteTask(ctx, task.ID, "")
	assert.ErrorIs(t, err, ErrTaskAlreadyCompleted)

	insts, err := f.svc.ListInstructions(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, insts[0].Completed)

	_, err = f.svc.AddInstruction(ctx, p.ID, InstructionInput{Text: "x", Priority: "urgent"})
	assert.Error(t, err)
}

func TestMedications_AddListDelete(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareTaskBased)

	m, err := f.svc.AddMedication(ctx, p.ID, MedicationInput{Name: "Heparin", Dosage: "5000 U", Route: "SC", Frequency: "q12h"})
	require.NoError(t, err)
	_, err = f.svc.AddMedication(ctx, p.ID, MedicationInput{Name: "Heparin"})
	assert.Error(t, err)

	meds, err := f.svc.ListMedications(ctx, p.ID, true)
	require.NoError(t, err)
	require.Len(t, meds, 1)

	require.NoError(t, f.svc.DeleteMedication(ctx, m.ID))
	assert.ErrorIs(t, f.svc.DeleteMedication(ctx, m.ID), ErrItemNotFound)
}

func TestMessages_SenderFromPrincipal(t *testing.T) {
	f := newFixture(t)
	p := f.admit(t, asAdmin(), "Alpha", CareTaskBased)
	pat := f.signup(t, "Pia", "pia@example.com", auth.RolePatient)

	m, err := f.svc.PostMessage(pat, p.ID, MessageInput{Text: "When is my scan?"})
	require.NoError(t, err)
	assert.Equal(t, auth.RolePatient, m.SenderRole)
	assert.Equal(t, "Pia", m.SenderName)

	_, err = f.svc.PostMessage(pat, p.ID, MessageInput{Text: "  "})
	assert.Error(t, err)
}

func TestGenerateSummary_Fallback(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareTaskBased)

	none, err := f.svc.LatestSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	s, err := f.svc.GenerateSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unable to generate AI summary. Alpha is currently stable with Observation.", s.Overview)
	assert.Equal(t, []string{"AI service temporarily unavailable"}, s.Recommendations)

	latest, err := f.svc.LatestSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, latest.ID)
}

func TestDischarge_BuildsReport(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	diag := "CHF"
	p, err := f.svc.Create(ctx, CreateInput{Name: "Alpha", Age: 70, Gender: "Male", Room: "12", Condition: "Heart failure", Diagnosis: &diag, CareMode: CareLiveMonitoring})
	require.NoError(t, err)

	f.advance(time.Hour)
	_, err = f.svc.RecordVitals(ctx, p.ID, vitals.Sample{HeartRate: 88})
	require.NoError(t, err)
	f.advance(time.Hour)
	_, err = f.svc.RecordVitals(ctx, p.ID, vitals.Sample{HeartRate: 90})
	require.NoError(t, err)
	_, err = f.svc.AddMedication(ctx, p.ID, MedicationInput{Name: "Furosemide", Dosage: "40 mg", Frequency: "daily", Route: "PO"})
	require.NoError(t, err)
	task, err := f.svc.AddTask(ctx, p.ID, TaskInput{Text: "Daily weight"})
	require.NoError(t, err)
	_, err = f.svc.AddTask(ctx, p.ID, TaskInput{Text: "Fluid chart"})
	require.NoError(t, err)
	_, err = f.svc.CompleteTask(ctx, task.ID, "Ned")
	require.NoError(t, err)

	_, err = f.svc.DischargeReport(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNoDischargeReport)

	f.advance(48 * time.Hour)
	r, err := f.svc.Discharge(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, r.LengthOfStay)
	assert.Equal(t, 2, r.VitalsSummary.TotalReadings)
	assert.Equal(t, 88, r.VitalsSummary.FirstReading.HeartRate)
	assert.Equal(t, 90, r.VitalsSummary.LastReading.HeartRate)
	assert.Equal(t, []MedicationLine{{Name: "Furosemide", Dosage: "40 mg", Frequency: "daily", Route: "PO"}}, r.Medications)
	assert.Equal(t, 1, r.TasksCompleted)
	assert.Equal(t, 2, r.TasksTotal)
	assert.Equal(t, "CHF", r.AIDischargeSummary.FinalDiagnosis)
	assert.Equal(t, "Furosemide 40 mg", r.AIDischargeSummary.MedicationsAtDischarge)

	active, err := f.svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	discharged, err := f.svc.ListDischarged(ctx)
	require.NoError(t, err)
	require.Len(t, discharged, 1)
	require.NotNil(t, discharged[0].DischargeTime)

	stored, err := f.svc.DischargeReport(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, r.GeneratedAt, stored.GeneratedAt)

	_, err = f.svc.Discharge(ctx, p.ID)
	assert.ErrorIs(t, err, ErrDischarged)
}

func TestLengthOfStay(t *testing.T) {
	assert.Equal(t, 0, LengthOfStay(t0, t0))
	assert.Equal(t, 1, LengthOfStay(t0, t0.Add(time.Minute)))
	assert.Equal(t, 1, LengthOfStay(t0, t0.Add(24*time.Hour)))
	assert.Equal(t, 2, LengthOfStay(t0, t0.Add(24*time.Hour+time.Second)))
}

func TestDashboard_Counts(t *testing.T) {
	f := newFixture(t)
	ctx := asAdmin()
	a := f.admit(t, ctx, "Alpha", CareLiveMonitoring)
	b := f.admit(t, ctx, "Bravo", CareLiveMonitoring)
	f.admit(t, ctx, "Charlie", CareTaskBased)

	_, err := f.svc.RecordVitals(ctx, a.ID, vitals.Sample{HeartRate: 130, SpO2: 85})
	require.NoError(t, err)
	_, err = f.svc.RecordVitals(ctx, b.ID, vitals.Sample{HeartRate: 130})
	require.NoError(t, err)

	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Total)
	assert.Equal(t, LevelCounts{Stable: 1, Attention: 1, Critical: 1}, d.Counts)
	assert.Equal(t, 60, d.AverageRisk)
	assert.Equal(t, "PT-0003", d.Patients[0].DisplayID)
}

// flakyRecorder forwards to the trail until failing is set.
type flakyRecorder struct {
	next    audit.Recorder
	failing bool
}

func (r *flakyRecorder) Record(ctx context.Context, ev audit.Event) (*audit.Entry, error) {
	if r.failing {
		return nil, errAuditDown
	}
	return r.next.Record(ctx, ev)
}

var errAuditDown = errors.New("audit store down")

func newFlakyFixture(t *testing.T) (*fixture, *flakyRecorder) {
	t.Helper()
	f := newFixture(t)
	rec := &flakyRecorder{next: f.trail}
	f.svc.audit = rec
	return f, rec
}

func TestRecordVitals_AuditFailureStoresNothing(t *testing.T) {
	f, rec := newFlakyFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareLiveMonitoring)
	f.pub.topics = nil

	rec.failing = true
	_, err := f.svc.RecordVitals(ctx, p.ID, vitals.Sample{HeartRate: 130, SpO2: 88, Temperature: 37})
	require.ErrorIs(t, err, errAuditDown)

	chart, err := f.svc.Chart(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, chart.Vitals)
	assert.Equal(t, vitals.Stable, chart.Status)
	assert.Empty(t, f.pub.topics)
}

func TestDischarge_AuditFailureKeepsAdmission(t *testing.T) {
	f, rec := newFlakyFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareTaskBased)

	rec.failing = true
	f.advance(24 * time.Hour)
	_, err := f.svc.Discharge(ctx, p.ID)
	require.ErrorIs(t, err, errAuditDown)

	chart, err := f.svc.Chart(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, chart.Active)
	assert.Nil(t, chart.DischargeTime)
	_, err = f.svc.DischargeReport(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNoDischargeReport)

	rec.failing = false
	_, err = f.svc.Discharge(ctx, p.ID)
	require.NoError(t, err)
}

func TestCompleteTask_AuditFailureLeavesTaskPending(t *testing.T) {
	f, rec := newFlakyFixture(t)
	ctx := asAdmin()
	p := f.admit(t, ctx, "Alpha", CareTaskBased)
	inst, err := f.svc.AddInstruction(ctx, p.ID, InstructionInput{Text: "Mobilise twice daily"})
	require.NoError(t, err)
	task, err := f.svc.AddTask(ctx, p.ID, TaskInput{Text: "Walk to window", LinkedInstructionID: &inst.ID})
	require.NoError(t, err)

	rec.failing = true
	_, err = f.svc.CompleteTask(ctx, task.ID, "Ned")
	require.ErrorIs(t, err, errAuditDown)

	tasks, err := f.svc.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskPending, tasks[0].Status)
	assert.Nil(t, tasks[0].CompletedBy)

	instructions, err := f.svc.ListInstructions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	assert.False(t, instructions[0].Completed)
}

func TestCreate_AuditFailureAdmitsNobody(t *testing.T) {
	f, rec := newFlakyFixture(t)
	ctx := asAdmin()

	rec.failing = true
	_, err := f.svc.Create(ctx, CreateInput{Name: "Alpha", Age: 50, CareMode: CareTaskBased})
	require.ErrorIs(t, err, errAuditDown)

	all, _, err := f.svc.Directory(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
