package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/internal/platform/fingerprint"
)

// Recorder is implemented by Trail. Services that mutate state depend on
// this interface rather than the concrete trail.
type Recorder interface {
	Record(ctx context.Context, ev Event) (*Entry, error)
}

// Trail is the append-only audit log.
type Trail struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewTrail(repo Repository, logger zerolog.Logger) *Trail {
	return &Trail{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces the trail's time source.
func (t *Trail) WithClock(now func() time.Time) *Trail {
	t.now = now
	return t
}

// Record appends an entry whose fingerprint is derived from action and target.
func (t *Trail) Record(ctx context.Context, ev Event) (*Entry, error) {
	if ev.Action == "" {
		return nil, fmt.Errorf("action is required")
	}
	if ev.Status == "" {
		ev.Status = Verified
	}
	if ev.Status != Verified && ev.Status != Tampered {
		return nil, fmt.Errorf("invalid verification status: %s", ev.Status)
	}

	now := t.now()
	e := &Entry{
		ID:                 uuid.New(),
		ActorUID:           ev.Actor.UID,
		ActorName:          ev.Actor.Name,
		ActorRole:          ev.Actor.Role,
		Action:             ev.Action,
		Target:             ev.Target,
		Timestamp:          now,
		VerificationStatus: ev.Status,
		Fingerprint:        fingerprint.TransactionID(ev.Action+"-"+ev.Target, now),
	}
	if err := t.repo.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	t.logger.Info().
		Str("actor_uid", e.ActorUID).
		Str("action", e.Action).
		Str("target", e.Target).
		Str("verification", string(e.VerificationStatus)).
		Msg("audit")
	return e, nil
}

func (t *Trail) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return t.repo.List(ctx, limit, offset)
}

func (t *Trail) ListByActor(ctx context.Context, actorUID string, limit, offset int) ([]*Entry, int, error) {
	return t.repo.ListByActor(ctx, actorUID, limit, offset)
}

// ActorFromContext builds an Actor from the authenticated principal, falling
// back to SystemActor.
func ActorFromContext(ctx context.Context) Actor {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return SystemActor
	}
	return Actor{UID: p.UID, Name: p.Name, Role: p.Role}
}
