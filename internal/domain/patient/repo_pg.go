package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalguard/careboard/internal/domain/vitals"
	"github.com/vitalguard/careboard/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// -- patients --

const patientCols = `patient_id, seq, name, age, gender, room, condition, diagnosis, care_mode, status,
	admission_time, discharge_time, active, notes, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Seq, &p.Name, &p.Age, &p.Gender, &p.Room, &p.Condition, &p.Diagnosis,
		&p.CareMode, &p.Status, &p.AdmissionTime, &p.DischargeTime, &p.Active, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (patient_id, name, age, gender, room, condition, diagnosis, care_mode, status,
			admission_time, discharge_time, active, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING seq`,
		p.ID, p.Name, p.Age, p.Gender, p.Room, p.Condition, p.Diagnosis, p.CareMode, p.Status,
		p.AdmissionTime, p.DischargeTime, p.Active, p.Notes, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.Seq)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, age=$3, gender=$4, room=$5, condition=$6, diagnosis=$7,
			care_mode=$8, status=$9, discharge_time=$10, active=$11, notes=$12, updated_at=$13
		WHERE patient_id = $1`,
		p.ID, p.Name, p.Age, p.Gender, p.Room, p.Condition, p.Diagnosis,
		p.CareMode, p.Status, p.DischargeTime, p.Active, p.Notes, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Patient, error) {
	return r.listPatients(ctx, `SELECT `+patientCols+` FROM patients WHERE active
		ORDER BY admission_time DESC, seq DESC`)
}

func (r *repoPG) ListDischarged(ctx context.Context) ([]*Patient, error) {
	return r.listPatients(ctx, `SELECT `+patientCols+` FROM patients WHERE NOT active
		ORDER BY discharge_time DESC NULLS LAST, seq DESC`)
}

func (r *repoPG) listPatients(ctx context.Context, sql string) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) Version(ctx context.Context) (uint64, error) {
	var v int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE((EXTRACT(EPOCH FROM MAX(updated_at)) * 1000000)::bigint, 0) + COUNT(*)
		FROM patients`).Scan(&v)
	return uint64(v), err
}

// -- vitals --

const vitalCols = `vital_id, patient_id, recorded_at, heart_rate, systolic_bp, diastolic_bp, spo2,
	respiratory_rate, temperature, source`

func (r *repoPG) AddVitals(ctx context.Context, s *vitals.Sample) error {
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO vitals (`+vitalCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.PatientID, s.Timestamp, s.HeartRate, s.SystolicBP, s.DiastolicBP, s.SpO2,
		s.RespiratoryRate, s.Temperature, s.Source)
	return err
}

func (r *repoPG) ListVitals(ctx context.Context, patientID uuid.UUID) ([]*vitals.Sample, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vitalCols+` FROM vitals WHERE patient_id = $1
		ORDER BY recorded_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*vitals.Sample{}
	for rows.Next() {
		var s vitals.Sample
		if err := rows.Scan(&s.ID, &s.PatientID, &s.Timestamp, &s.HeartRate, &s.SystolicBP, &s.DiastolicBP,
			&s.SpO2, &s.RespiratoryRate, &s.Temperature, &s.Source); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

// -- medications --

const medicationCols = `medication_id, patient_id, name, dosage, route, frequency, timing, start_time,
	end_time, status, created_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Route, &m.Frequency, &m.Timing,
		&m.StartTime, &m.EndTime, &m.Status, &m.CreatedAt)
	return &m, err
}

func (r *repoPG) AddMedication(ctx context.Context, m *Medication) error {
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO medications (`+medicationCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Route, m.Frequency, m.Timing, m.StartTime,
		m.EndTime, m.Status, m.CreatedAt)
	return err
}

func (r *repoPG) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx, `SELECT `+medicationCols+` FROM medications WHERE medication_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return m, err
}

func (r *repoPG) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	return r.deleteOne(ctx, `DELETE FROM medications WHERE medication_id = $1`, id)
}

func (r *repoPG) ListMedications(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medicationCols+` FROM medications
		WHERE patient_id = $1 AND (NOT $2 OR status = 'active')
		ORDER BY created_at ASC`, patientID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Medication{}
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// -- instructions --

const instructionCols = `instruction_id, patient_id, instruction_text, priority, due_time, created_by,
	created_at, completed, completed_at`

func scanInstruction(row pgx.Row) (*Instruction, error) {
	var in Instruction
	err := row.Scan(&in.ID, &in.PatientID, &in.Text, &in.Priority, &in.DueTime, &in.CreatedBy,
		&in.CreatedAt, &in.Completed, &in.CompletedAt)
	return &in, err
}

func (r *repoPG) AddInstruction(ctx context.Context, in *Instruction) error {
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO doctor_instructions (`+instructionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		in.ID, in.PatientID, in.Text, in.Priority, in.DueTime, in.CreatedBy,
		in.CreatedAt, in.Completed, in.CompletedAt)
	return err
}

func (r *repoPG) GetInstruction(ctx context.Context, id uuid.UUID) (*Instruction, error) {
	in, err := scanInstruction(r.conn(ctx).QueryRow(ctx, `SELECT `+instructionCols+` FROM doctor_instructions WHERE instruction_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return in, err
}

func (r *repoPG) DeleteInstruction(ctx context.Context, id uuid.UUID) error {
	return r.deleteOne(ctx, `DELETE FROM doctor_instructions WHERE instruction_id = $1`, id)
}

func (r *repoPG) ListInstructions(ctx context.Context, patientID uuid.UUID) ([]*Instruction, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+instructionCols+` FROM doctor_instructions
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Instruction{}
	for rows.Next() {
		in, err := scanInstruction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, rows.Err()
}

// -- tasks --

const taskCols = `task_id, patient_id, task_text, priority, due_time, linked_instruction_id, status,
	created_at, completed_at, completed_by`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.PatientID, &t.Text, &t.Priority, &t.DueTime, &t.LinkedInstructionID,
		&t.Status, &t.CreatedAt, &t.CompletedAt, &t.CompletedBy)
	return &t, err
}

func (r *repoPG) AddTask(ctx context.Context, t *Task) error {
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO nurse_tasks (`+taskCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.PatientID, t.Text, t.Priority, t.DueTime, t.LinkedInstructionID, t.Status,
		t.CreatedAt, t.CompletedAt, t.CompletedBy)
	return err
}

func (r *repoPG) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := scanTask(r.conn(ctx).QueryRow(ctx, `SELECT `+taskCols+` FROM nurse_tasks WHERE task_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return t, err
}

func (r *repoPG) CompleteInstruction(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_instructions SET completed = TRUE, completed_at = $2
		WHERE instruction_id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repoPG) CompleteTask(ctx context.Context, id uuid.UUID, by string, at time.Time) (*Task, error) {
	t, err := scanTask(r.conn(ctx).QueryRow(ctx, `
		UPDATE nurse_tasks SET status = 'completed', completed_at = $2, completed_by = $3
		WHERE task_id = $1
		RETURNING `+taskCols, id, at, by))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return t, err
}

func (r *repoPG) ListTasks(ctx context.Context, patientID uuid.UUID) ([]*Task, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+taskCols+` FROM nurse_tasks
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// -- messages --

func (r *repoPG) AddMessage(ctx context.Context, m *Message) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO messages (message_id, patient_id, sender_role, sender_name, message_text, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.PatientID, m.SenderRole, m.SenderName, m.Text, m.Timestamp)
	return err
}

func (r *repoPG) ListMessages(ctx context.Context, patientID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT message_id, patient_id, sender_role, sender_name, message_text, sent_at
		FROM messages WHERE patient_id = $1 ORDER BY sent_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PatientID, &m.SenderRole, &m.SenderName, &m.Text, &m.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

// -- reports --

const reportCols = `report_id, patient_id, file_name, report_type, extracted_text, findings, uploaded_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.PatientID, &rep.FileName, &rep.ReportType, &rep.ExtractedText,
		&rep.Findings, &rep.UploadedAt)
	return &rep, err
}

func (r *repoPG) AddReport(ctx context.Context, rep *Report) error {
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO reports (`+reportCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rep.ID, rep.PatientID, rep.FileName, rep.ReportType, rep.ExtractedText, rep.Findings, rep.UploadedAt)
	return err
}

func (r *repoPG) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE report_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return rep, err
}

func (r *repoPG) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return r.deleteOne(ctx, `DELETE FROM reports WHERE report_id = $1`, id)
}

func (r *repoPG) ListReports(ctx context.Context, patientID uuid.UUID) ([]*Report, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reportCols+` FROM reports
		WHERE patient_id = $1 ORDER BY uploaded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rep)
	}
	return items, rows.Err()
}

// -- summaries --

func (r *repoPG) AddSummary(ctx context.Context, s *StoredSummary) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ai_summaries (summary_id, patient_id, overview, key_points, recent_changes, recommendations, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.PatientID, s.Overview, s.KeyPoints, s.RecentChanges, s.Recommendations, s.GeneratedAt)
	return err
}

func (r *repoPG) LatestSummary(ctx context.Context, patientID uuid.UUID) (*StoredSummary, error) {
	var s StoredSummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT summary_id, patient_id, overview, key_points, recent_changes, recommendations, generated_at
		FROM ai_summaries WHERE patient_id = $1 ORDER BY generated_at DESC LIMIT 1`, patientID,
	).Scan(&s.ID, &s.PatientID, &s.Overview, &s.KeyPoints, &s.RecentChanges, &s.Recommendations, &s.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// -- discharge reports --

func (r *repoPG) AddDischargeReport(ctx context.Context, rep *DischargeReport) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO discharge_reports (report_id, patient_id, report_data, generated_at)
		VALUES ($1,$2,$3,$4)`,
		uuid.New(), rep.PatientID, rep, rep.GeneratedAt)
	return err
}

func (r *repoPG) LatestDischargeReport(ctx context.Context, patientID uuid.UUID) (*DischargeReport, error) {
	var rep DischargeReport
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT report_data FROM discharge_reports WHERE patient_id = $1
		ORDER BY generated_at DESC LIMIT 1`, patientID).Scan(&rep)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDischargeReport
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *repoPG) deleteOne(ctx context.Context, sql string, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
