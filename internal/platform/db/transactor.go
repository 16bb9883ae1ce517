package db

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs fn so that the repository writes made with fn's context
// are kept or discarded together.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTransactor runs fn in a pgx transaction that the pg repositories join
// through TxFromContext.
type PoolTransactor struct {
	pool *pgxpool.Pool
}

func NewPoolTransactor(pool *pgxpool.Pool) *PoolTransactor {
	return &PoolTransactor{pool: pool}
}

func (t *PoolTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return InTx(ctx, t.pool, fn)
}

// UndoTransactor serves the in-memory repositories. Each write registers a
// compensating step with OnRollback; when fn fails the steps run newest first.
type UndoTransactor struct{}

type undoKey struct{}

type undoLog struct {
	mu    sync.Mutex
	steps []func()
}

func (UndoTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return fn(ctx)
	}
	log := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

// OnRollback registers undo for the UndoTransactor running on ctx. Outside
// one it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	log, ok := ctx.Value(undoKey{}).(*undoLog)
	if !ok {
		return
	}
	log.mu.Lock()
	log.steps = append(log.steps, undo)
	log.mu.Unlock()
}

func (l *undoLog) rollback() {
	l.mu.Lock()
	steps := l.steps
	l.steps = nil
	l.mu.Unlock()
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}
