package ports

import (
	"context"

	"github.com/taskboard/task-system/internal/core/domain"
)

// CommentOrder selects the chronological direction of a comment listing.
type CommentOrder int

const (
	OldestFirst CommentOrder = iota
	NewestFirst
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	// Create inserts c and sets its generated id.
	Create(ctx context.Context, c *domain.Comment) error
	// FindByID returns domain.ErrCommentNotFound when no comment has id.
	FindByID(ctx context.Context, id int64) (*domain.Comment, error)
	UpdateText(ctx context.Context, id int64, text string) error
	Delete(ctx context.Context, id int64) error
	// ListByTask returns the comments of a task with author usernames.
	ListByTask(ctx context.Context, taskID int64, order CommentOrder) ([]*domain.Comment, error)
}
