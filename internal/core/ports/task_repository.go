package ports

import (
	"context"

	"github.com/taskboard/task-system/internal/core/authz"
	"github.com/taskboard/task-system/internal/core/domain"
)

// ListTasksFilter carries the visibility predicate plus optional filters.
// Visibility is always set by the service layer.
type ListTasksFilter struct {
	Visibility authz.Visibility
	TaskID     int64  // optional: restrict to a single task
	Category   string // optional: exact match
	Status     string // optional: exact match
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	// Create inserts t and sets its generated id.
	Create(ctx context.Context, t *domain.Task) error
	// FindByID returns domain.ErrTaskNotFound when no task has id.
	FindByID(ctx context.Context, id int64) (*domain.Task, error)
	// Update replaces every mutable column of the stored task.
	Update(ctx context.Context, t *domain.Task) error
	// Delete removes the task and every comment attached to it.
	Delete(ctx context.Context, id int64) error
	// List returns the tasks matching filter, newest first.
	List(ctx context.Context, filter ListTasksFilter) ([]*domain.TaskListing, error)
	// Categories returns the distinct non-empty categories in use.
	Categories(ctx context.Context) ([]string, error)
}
