package mongo

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/taskboard/task-system/internal/core/ports"
)

// Store implements ports.Store on MongoDB.
//
// Standalone deployments have no multi-document transactions, so Atomic
// serialises units of work with a process-wide mutex. Every read-check-write
// sequence in the service layer therefore runs without interleaving writers
// from the same process.
type Store struct {
	db   *mongo.Database
	mu   *sync.Mutex
	inTx bool
}

// NewStore wraps a connected database.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db, mu: &sync.Mutex{}}
}

func (s *Store) Users() ports.UserRepository       { return &UserRepository{db: s.db} }
func (s *Store) Tasks() ports.TaskRepository       { return &TaskRepository{db: s.db} }
func (s *Store) Comments() ports.CommentRepository { return &CommentRepository{db: s.db} }

// Atomic runs fn while holding the store lock. A nested call reuses it.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &Store{db: s.db, mu: s.mu, inTx: true})
}

// Ping reports whether the deployment is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}
