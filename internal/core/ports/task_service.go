package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/taskboard/task-system/internal/core/domain"
)

// Patch is an optional field of an update request. Set reports whether the
// field was present at all; a present field with a nil Value is an explicit
// null.
type Patch[T any] struct {
	Set   bool
	Value *T
}

// CreateTaskInput carries all data needed to create a task. The creator is
// always Caller; the request body cannot override it.
type CreateTaskInput struct {
	Caller         domain.Identity
	Title          string
	Description    *string
	Category       *string
	Priority       *string
	Status         *string
	Progress       *int
	AssignedTo     []int64
	StartDate      *string
	DueDate        *string
	IdempotencyKey string
}

// UpdateTaskInput carries a patch against an existing task. AssignedTo holds
// the assignment exactly as the client sent it; it is parsed only when the
// caller may change assignees.
type UpdateTaskInput struct {
	Caller      domain.Identity
	TaskID      int64
	Title       Patch[string]
	Description Patch[string]
	Category    Patch[string]
	Priority    Patch[string]
	Status      Patch[string]
	Progress    Patch[int]
	AssignedTo  Patch[json.RawMessage]
	StartDate   Patch[string]
	DueDate     Patch[string]
}

// ListTasksInput carries the caller and optional listing filters.
type ListTasksInput struct {
	Caller   domain.Identity
	Category string
	Status   string
}

// TaskDetail is the task view returned by every task use case.
type TaskDetail struct {
	ID                int64
	Title             string
	Description       *string
	Category          *string
	Priority          *string
	Status            string
	Progress          int
	StartDate         *string
	DueDate           *string
	CreatedBy         int64
	CreatedByUsername string
	AssignedUserIDs   []int64
	AssignedUsernames []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	// AlreadyExisted is true when an Idempotency-Key replayed a prior create.
	AlreadyExisted bool
}

// TaskService defines use-case operations for tasks.
type TaskService interface {
	CreateTask(ctx context.Context, input CreateTaskInput) (*TaskDetail, error)
	GetTask(ctx context.Context, caller domain.Identity, taskID int64) (*TaskDetail, error)
	UpdateTask(ctx context.Context, input UpdateTaskInput) (*TaskDetail, error)
	DeleteTask(ctx context.Context, caller domain.Identity, taskID int64) error
	ListTasks(ctx context.Context, input ListTasksInput) ([]TaskDetail, error)
	ListCategories(ctx context.Context, caller domain.Identity) ([]string, error)
}
