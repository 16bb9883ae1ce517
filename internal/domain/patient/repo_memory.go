package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalguard/careboard/internal/domain/vitals"
	"github.com/vitalguard/careboard/internal/platform/db"
)

type memoryRepo struct {
	mu      sync.RWMutex
	seq     int64
	version uint64

	patients     map[uuid.UUID]*Patient
	vitals       map[uuid.UUID][]*vitals.Sample
	medications  []*Medication
	instructions []*Instruction
	tasks        []*Task
	messages     []*Message
	reports      []*Report
	summaries    []*StoredSummary
	discharges   []*DischargeReport
}

func NewMemoryRepo() Repository {
	return &memoryRepo{
		patients: make(map[uuid.UUID]*Patient),
		vitals:   make(map[uuid.UUID][]*vitals.Sample),
	}
}

func (r *memoryRepo) Create(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	p.Seq = r.seq
	cp := *p
	r.patients[p.ID] = &cp
	r.version++
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.patients, cp.ID)
		r.version++
	})
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) Update(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.patients[p.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *p
	r.patients[p.ID] = &cp
	r.version++
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.patients[p.ID] == &cp {
			r.patients[p.ID] = prev
			r.version++
		}
	})
	return nil
}

func (r *memoryRepo) ListActive(_ context.Context) ([]*Patient, error) {
	out := r.patientsWhere(func(p *Patient) bool { return p.Active })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AdmissionTime.Equal(out[j].AdmissionTime) {
			return out[i].Seq > out[j].Seq
		}
		return out[i].AdmissionTime.After(out[j].AdmissionTime)
	})
	return out, nil
}

func (r *memoryRepo) ListDischarged(_ context.Context) ([]*Patient, error) {
	out := r.patientsWhere(func(p *Patient) bool { return !p.Active })
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DischargeTime, out[j].DischargeTime
		if a == nil || b == nil || a.Equal(*b) {
			return out[i].Seq > out[j].Seq
		}
		return a.After(*b)
	})
	return out, nil
}

func (r *memoryRepo) patientsWhere(keep func(*Patient) bool) []*Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Patient{}
	for _, p := range r.patients {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func (r *memoryRepo) Version(_ context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version, nil
}

func (r *memoryRepo) AddVitals(ctx context.Context, s *vitals.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.vitals[s.PatientID] = append(r.vitals[s.PatientID], &cp)
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.vitals[cp.PatientID] = without(r.vitals[cp.PatientID], &cp)
	})
	return nil
}

func (r *memoryRepo) ListVitals(_ context.Context, patientID uuid.UUID) ([]*vitals.Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*vitals.Sample, 0, len(r.vitals[patientID]))
	for _, s := range r.vitals[patientID] {
		cp := *s
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// -- medications --

func (r *memoryRepo) AddMedication(_ context.Context, m *Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.medications = append(r.medications, &cp)
	return nil
}

func (r *memoryRepo) GetMedication(_ context.Context, id uuid.UUID) (*Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.medications {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (r *memoryRepo) DeleteMedication(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.medications {
		if m.ID == id {
			r.medications = append(r.medications[:i], r.medications[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *memoryRepo) ListMedications(_ context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Medication{}
	for _, m := range r.medications {
		if m.PatientID == patientID && (!activeOnly || m.Status == "active") {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -- instructions --

func (r *memoryRepo) AddInstruction(_ context.Context, in *Instruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *in
	r.instructions = append(r.instructions, &cp)
	return nil
}

func (r *memoryRepo) GetInstruction(_ context.Context, id uuid.UUID) (*Instruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, in := range r.instructions {
		if in.ID == id {
			cp := *in
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (r *memoryRepo) DeleteInstruction(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, in := range r.instructions {
		if in.ID == id {
			r.instructions = append(r.instructions[:i], r.instructions[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *memoryRepo) ListInstructions(_ context.Context, patientID uuid.UUID) ([]*Instruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Instruction{}
	for i := len(r.instructions) - 1; i >= 0; i-- {
		if in := r.instructions[i]; in.PatientID == patientID {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// -- tasks --

func (r *memoryRepo) AddTask(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks = append(r.tasks, &cp)
	return nil
}

func (r *memoryRepo) GetTask(_ context.Context, id uuid.UUID) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tasks {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (r *memoryRepo) CompleteInstruction(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.instructions {
		if in.ID == id {
			prev := *in
			in.Completed = true
			in.CompletedAt = &at
			db.OnRollback(ctx, func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				*in = prev
			})
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *memoryRepo) CompleteTask(ctx context.Context, id uuid.UUID, by string, at time.Time) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			prev := *t
			db.OnRollback(ctx, func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				*t = prev
			})
			t.Status = TaskCompleted
			t.CompletedAt = &at
			t.CompletedBy = &by
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (r *memoryRepo) ListTasks(_ context.Context, patientID uuid.UUID) ([]*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Task{}
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if t := r.tasks[i]; t.PatientID == patientID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// -- messages --

func (r *memoryRepo) AddMessage(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *memoryRepo) ListMessages(_ context.Context, patientID uuid.UUID) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Message{}
	for _, m := range r.messages {
		if m.PatientID == patientID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// -- reports --

func (r *memoryRepo) AddReport(_ context.Context, rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rep
	r.reports = append(r.reports, &cp)
	return nil
}

func (r *memoryRepo) GetReport(_ context.Context, id uuid.UUID) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rep := range r.reports {
		if rep.ID == id {
			cp := *rep
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (r *memoryRepo) DeleteReport(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rep := range r.reports {
		if rep.ID == id {
			r.reports = append(r.reports[:i], r.reports[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *memoryRepo) ListReports(_ context.Context, patientID uuid.UUID) ([]*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Report{}
	for i := len(r.reports) - 1; i >= 0; i-- {
		if rep := r.reports[i]; rep.PatientID == patientID {
			cp := *rep
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

// -- summaries and discharge reports --

func (r *memoryRepo) AddSummary(_ context.Context, s *StoredSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.summaries = append(r.summaries, &cp)
	return nil
}

func (r *memoryRepo) LatestSummary(_ context.Context, patientID uuid.UUID) (*StoredSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *StoredSummary
	for _, s := range r.summaries {
		if s.PatientID == patientID && (latest == nil || !s.GeneratedAt.Before(latest.GeneratedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memoryRepo) AddDischargeReport(ctx context.Context, rep *DischargeReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rep
	r.discharges = append(r.discharges, &cp)
	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.discharges = without(r.discharges, &cp)
	})
	return nil
}

// without drops the element identical to x, keeping order.
func without[T any](list []*T, x *T) []*T {
	for i, v := range list {
		if v == x {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (r *memoryRepo) LatestDischargeReport(_ context.Context, patientID uuid.UUID) (*DischargeReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *DischargeReport
	for _, rep := range r.discharges {
		if rep.PatientID == patientID && (latest == nil || !rep.GeneratedAt.Before(latest.GeneratedAt)) {
			latest = rep
		}
	}
	if latest == nil {
		return nil, ErrNoDischargeReport
	}
	cp := *latest
	return &cp, nil
}
