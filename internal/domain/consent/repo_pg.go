package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const grantCols = `id, patient_uid, patient_name, grantee_type, grantee_name, duration, created_at, expires_at, status, fingerprint`

const newestFirst = ` ORDER BY created_at DESC, seq DESC`

func scanGrant(row pgx.Row) (*Grant, error) {
	var g Grant
	err := row.Scan(&g.ID, &g.PatientUID, &g.PatientName, &g.GranteeType, &g.GranteeName,
		&g.Duration, &g.CreatedAt, &g.ExpiresAt, &g.Status, &g.Fingerprint)
	return &g, err
}

func (r *repoPG) Create(ctx context.Context, g *Grant) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consent_grants (`+grantCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		g.ID, g.PatientUID, g.PatientName, g.GranteeType, g.GranteeName,
		g.Duration, g.CreatedAt, g.ExpiresAt, g.Status, g.Fingerprint)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Grant, error) {
	g, err := scanGrant(r.conn(ctx).QueryRow(ctx, `SELECT `+grantCols+` FROM consent_grants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

func (r *repoPG) List(ctx context.Context) ([]*Grant, error) {
	return r.query(ctx, `SELECT `+grantCols+` FROM consent_grants`+newestFirst)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientUID string) ([]*Grant, error) {
	return r.query(ctx, `SELECT `+grantCols+` FROM consent_grants WHERE patient_uid = $1`+newestFirst, patientUID)
}

func (r *repoPG) ListActiveForPatientName(ctx context.Context, patientName string) ([]*Grant, error) {
	return r.query(ctx, `SELECT `+grantCols+` FROM consent_grants
		WHERE status = 'ACTIVE' AND patient_name = $1`+newestFirst, patientName)
}

func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE consent_grants SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrNotActive
}

func (r *repoPG) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consent_grants SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Grant, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}
