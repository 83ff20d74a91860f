package ports

import "context"

// Store groups the repositories behind one storage backend.
//
// Atomic runs fn as a single unit of work: every read and write fn performs
// through tx is isolated from conflicting writes and is committed only when
// fn returns nil. Calling Atomic on tx itself reuses the same unit.
type Store interface {
	Users() UserRepository
	Tasks() TaskRepository
	Comments() CommentRepository
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
