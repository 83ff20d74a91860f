package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

const commentColumns = `c.id, c.task_id, c.user_id, c.comment, c.created_at, COALESCE(u.username, '')`

// CommentRepository implements ports.CommentRepository.
type CommentRepository struct {
	q queryer
}

func (r *CommentRepository) Create(ctx context.Context, c *domain.Comment) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO comments (task_id, user_id, comment, created_at) VALUES (?, ?, ?, ?)`,
		c.TaskID, c.UserID, c.Text, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*domain.Comment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c LEFT JOIN users u ON u.id = c.user_id
		WHERE c.id = ?`, id)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCommentNotFound
	}
	return c, err
}

func (r *CommentRepository) UpdateText(ctx context.Context, id int64, text string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE comments SET comment = ? WHERE id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireAffected(res, domain.ErrCommentNotFound)
}

func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(res, domain.ErrCommentNotFound)
}

func (r *CommentRepository) ListByTask(ctx context.Context, taskID int64, order ports.CommentOrder) ([]*domain.Comment, error) {
	direction := "ASC"
	if order == ports.NewestFirst {
		direction = "DESC"
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c LEFT JOIN users u ON u.id = c.user_id
		WHERE c.task_id = ?
		ORDER BY c.created_at `+direction+`, c.id `+direction, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(s scanner) (*domain.Comment, error) {
	var c domain.Comment
	if err := s.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Text, &c.CreatedAt, &c.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	return &c, nil
}
