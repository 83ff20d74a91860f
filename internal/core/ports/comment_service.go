package ports

import (
	"context"

	"github.com/taskboard/task-system/internal/core/domain"
)

// CommentService defines use-case operations for task comments.
type CommentService interface {
	AddComment(ctx context.Context, caller domain.Identity, taskID int64, text string) (*domain.Comment, error)
	ListComments(ctx context.Context, caller domain.Identity, taskID int64, order CommentOrder) ([]*domain.Comment, error)
	EditComment(ctx context.Context, caller domain.Identity, commentID int64, text string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, caller domain.Identity, commentID int64) error
}
