package domain

import (
	"strings"
	"time"
)

// DefaultTaskStatus is applied when a task is created without a status.
const DefaultTaskStatus = "todo"

// UnknownUsername stands in for a creator whose user record is missing.
const UnknownUsername = "Unknown"

// Task is the core aggregate. CreatedBy is fixed at creation.
type Task struct {
	ID          int64
	Title       string
	Description *string
	Category    *string
	Priority    *string
	Status      string
	Progress    int
	AssignedTo  AssignmentSet
	StartDate   *string
	DueDate     *string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsCreator reports whether userID created the task.
func (t *Task) IsCreator(userID int64) bool {
	return t.CreatedBy == userID
}

// IsAssignee reports whether userID is in the task's assignment set.
func (t *Task) IsAssignee(userID int64) bool {
	return t.AssignedTo.Contains(userID)
}

// TaskListing is a task annotated with the display names resolved by storage.
// CreatorUsername is empty when the creator record no longer exists.
type TaskListing struct {
	Task
	CreatorUsername   string
	AssigneeUsernames []string
}

// NormalizeNullable maps a blank string to nil. Other values pass through.
func NormalizeNullable(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}
