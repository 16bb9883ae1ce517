package audit

import "context"

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	// List returns entries newest first.
	List(ctx context.Context, limit, offset int) ([]*Entry, int, error)
	ListByActor(ctx context.Context, actorUID string, limit, offset int) ([]*Entry, int, error)
}
