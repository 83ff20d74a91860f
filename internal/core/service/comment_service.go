package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskboard/task-system/internal/core/authz"
	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

type commentService struct {
	store ports.Store
	log   zerolog.Logger
}

// NewCommentService returns a CommentService implementation.
func NewCommentService(store ports.Store, log zerolog.Logger) ports.CommentService {
	return &commentService{store: store, log: log}
}

// AddComment attaches a comment to an existing task. The caller must be able
// to see the task.
func (s *commentService) AddComment(ctx context.Context, caller domain.Identity, taskID int64, text string) (*domain.Comment, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: comment cannot be empty", domain.ErrValidation)
	}

	comment := &domain.Comment{
		TaskID:    taskID,
		UserID:    caller.ID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	err := s.store.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		task, err := tx.Tasks().FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if err := authz.CanCommentOnTask(caller, task).Err(); err != nil {
			return err
		}
		return tx.Comments().Create(ctx, comment)
	})
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	s.log.Info().
		Int64("comment_id", comment.ID).
		Int64("task_id", taskID).
		Int64("user_id", caller.ID).
		Msg("comment added")

	return s.reload(ctx, comment.ID)
}

// ListComments returns every comment of a task in the requested order. Any
// authenticated caller may list; a missing task yields an empty list.
func (s *commentService) ListComments(ctx context.Context, caller domain.Identity, taskID int64, order ports.CommentOrder) ([]*domain.Comment, error) {
	if err := authz.CanListComments(caller).Err(); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByTask(ctx, taskID, order)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []*domain.Comment{}
	}
	for _, c := range comments {
		if c.Username == "" {
			c.Username = domain.UnknownUsername
		}
	}
	return comments, nil
}

// EditComment replaces the text of a comment. Only the author or an admin
// may edit.
func (s *commentService) EditComment(ctx context.Context, caller domain.Identity, commentID int64, text string) (*domain.Comment, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	err := s.store.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		comment, err := tx.Comments().FindByID(ctx, commentID)
		if err != nil {
			return err
		}
		if err := authz.CanEditComment(caller, comment).Err(); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return fmt.Errorf("%w: comment cannot be empty", domain.ErrValidation)
		}
		return tx.Comments().UpdateText(ctx, commentID, text)
	})
	if err != nil {
		return nil, fmt.Errorf("edit comment: %w", err)
	}

	s.log.Info().Int64("comment_id", commentID).Int64("user_id", caller.ID).Msg("comment edited")
	return s.reload(ctx, commentID)
}

// DeleteComment removes a comment. Only the author or an admin may delete.
func (s *commentService) DeleteComment(ctx context.Context, caller domain.Identity, commentID int64) error {
	if !caller.Authenticated() {
		return domain.ErrUnauthenticated
	}
	err := s.store.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		comment, err := tx.Comments().FindByID(ctx, commentID)
		if err != nil {
			return err
		}
		if err := authz.CanDeleteComment(caller, comment).Err(); err != nil {
			return err
		}
		return tx.Comments().Delete(ctx, commentID)
	})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	s.log.Info().Int64("comment_id", commentID).Int64("user_id", caller.ID).Msg("comment deleted")
	return nil
}

func (s *commentService) reload(ctx context.Context, commentID int64) (*domain.Comment, error) {
	comment, err := s.store.Comments().FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if author, err := s.store.Users().FindByID(ctx, comment.UserID); err == nil {
		comment.Username = author.Username
	} else {
		comment.Username = domain.UnknownUsername
	}
	return comment, nil
}
