package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

const taskColumns = `t.id, t.title, t.description, t.category, t.priority, t.status, t.progress,
	t.assigned_to, t.start_date, t.due_date, t.created_by, t.created_at, t.updated_at`

// TaskRepository implements ports.TaskRepository. The assignment set lives in
// the assigned_to column in its encoded form; membership is tested with
// instr() against the delimiter-bounded token.
type TaskRepository struct {
	q queryer
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO tasks (title, description, category, priority, status, progress,
			assigned_to, start_date, due_date, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, nullString(t.Description), nullString(t.Category), nullString(t.Priority),
		t.Status, t.Progress, nullString(t.AssignedTo.EncodeNullable()),
		nullString(t.StartDate), nullString(t.DueDate), t.CreatedBy,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*domain.Task, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return t, err
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, category = ?, priority = ?, status = ?,
			progress = ?, assigned_to = ?, start_date = ?, due_date = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, nullString(t.Description), nullString(t.Category), nullString(t.Priority),
		t.Status, t.Progress, nullString(t.AssignedTo.EncodeNullable()),
		nullString(t.StartDate), nullString(t.DueDate), t.UpdatedAt.UTC(), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(res, domain.ErrTaskNotFound)
}

// Delete removes the task; comments go with it through ON DELETE CASCADE.
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res, domain.ErrTaskNotFound)
}

func (r *TaskRepository) List(ctx context.Context, filter ports.ListTasksFilter) ([]*domain.TaskListing, error) {
	var (
		where []string
		args  []any
	)
	if !filter.Visibility.Unrestricted {
		where = append(where, `(t.created_by = ? OR instr(COALESCE(t.assigned_to, ''), ?) > 0)`)
		args = append(args, filter.Visibility.UserID, filter.Visibility.MembershipToken())
	}
	if filter.TaskID != 0 {
		where = append(where, `t.id = ?`)
		args = append(args, filter.TaskID)
	}
	if filter.Category != "" {
		where = append(where, `t.category = ?`)
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		where = append(where, `t.status = ?`)
		args = append(args, filter.Status)
	}

	query := `SELECT ` + taskColumns + `, COALESCE(u.username, '')
		FROM tasks t LEFT JOIN users u ON u.id = t.created_by`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.TaskListing
	for rows.Next() {
		var listing domain.TaskListing
		task, err := scanTask(rows, &listing.CreatorUsername)
		if err != nil {
			return nil, err
		}
		listing.Task = *task
		out = append(out, &listing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Close before resolving names; the pool has a single connection.
	rows.Close()

	if err := r.attachAssigneeNames(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachAssigneeNames resolves the usernames of every assignee in one query.
// Ids without a user row are skipped.
func (r *TaskRepository) attachAssigneeNames(ctx context.Context, listings []*domain.TaskListing) error {
	seen := map[int64]bool{}
	var ids []any
	for _, l := range listings {
		for _, id := range l.AssignedTo.IDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := r.q.QueryContext(ctx, `SELECT id, username FROM users WHERE id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return fmt.Errorf("resolve assignees: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string, len(ids))
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range listings {
		for _, id := range l.AssignedTo.IDs() {
			if name, ok := names[id]; ok {
				l.AssigneeUsernames = append(l.AssigneeUsernames, name)
			}
		}
	}
	return nil
}

func (r *TaskRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT category FROM tasks
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanTask reads the taskColumns projection followed by any extra columns.
func scanTask(s scanner, extra ...any) (*domain.Task, error) {
	var (
		t                                       domain.Task
		description, category, priority, assign sql.NullString
		startDate, dueDate                      sql.NullString
	)
	dest := []any{
		&t.ID, &t.Title, &description, &category, &priority, &t.Status, &t.Progress,
		&assign, &startDate, &dueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	set, err := domain.DecodeAssignmentSet(assign.String)
	if err != nil {
		return nil, err
	}
	t.Description = stringPtr(description)
	t.Category = stringPtr(category)
	t.Priority = stringPtr(priority)
	t.StartDate = stringPtr(startDate)
	t.DueDate = stringPtr(dueDate)
	t.AssignedTo = set
	return &t, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
