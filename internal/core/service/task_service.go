package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskboard/task-system/internal/core/authz"
	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

// IdempotencyStore records which task an Idempotency-Key produced (Redis).
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID int64, key string) (taskID int64, found bool, err error)
	// Claim binds key to taskID unless another task already holds it, and
	// returns the task id that owns key afterwards.
	Claim(ctx context.Context, userID int64, key string, taskID int64) (owner int64, err error)
	Forget(ctx context.Context, userID int64, key string) error
}

// errKeyClaimed rolls back an insert whose Idempotency-Key went to another
// request.
var errKeyClaimed = errors.New("idempotency key claimed by another request")

type TaskService struct {
	store       ports.Store
	idempotency IdempotencyStore
	logger      zerolog.Logger
}

// NewTaskService returns a TaskService. idempotency may be nil, in which case
// Idempotency-Key headers are ignored.
func NewTaskService(store ports.Store, idempotency IdempotencyStore, logger zerolog.Logger) *TaskService {
	return &TaskService{store: store, idempotency: idempotency, logger: logger}
}

// CreateTask validates the input, checks the assignment right, verifies every
// assignee exists and inserts the task, all before anything is committed.
func (s *TaskService) CreateTask(ctx context.Context, in ports.CreateTaskInput) (*ports.TaskDetail, error) {
	if !in.Caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if err := authz.CanCreateTask(in.Caller, len(in.AssignedTo)).Err(); err != nil {
		return nil, err
	}

	replay, err := s.replay(ctx, in)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	now := time.Now().UTC()
	task := &domain.Task{
		Title:       title,
		Description: domain.NormalizeNullable(in.Description),
		Category:    domain.NormalizeNullable(in.Category),
		Priority:    domain.NormalizeNullable(in.Priority),
		Status:      statusOrDefault(in.Status),
		AssignedTo:  domain.NewAssignmentSet(in.AssignedTo...),
		StartDate:   domain.NormalizeNullable(in.StartDate),
		DueDate:     domain.NormalizeNullable(in.DueDate),
		CreatedBy:   in.Caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Progress != nil {
		task.Progress = *in.Progress
	}

	// The key is claimed before the insert commits, so of two concurrent
	// retries only one keeps its task.
	var (
		owner   int64
		claimed bool
	)
	err = s.store.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		if err := ensureUsersExist(ctx, tx.Users(), in.AssignedTo); err != nil {
			return err
		}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		owner, claimed = s.claim(ctx, in, task.ID)
		if owner != task.ID {
			return errKeyClaimed
		}
		return nil
	})
	if errors.Is(err, errKeyClaimed) {
		return s.loadReplay(ctx, in, owner)
	}
	if err != nil {
		if claimed {
			s.forget(ctx, in)
		}
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info().
		Int64("task_id", task.ID).
		Int64("created_by", task.CreatedBy).
		Int("assignees", task.AssignedTo.Len()).
		Msg("task created")

	return s.detail(ctx, task.ID)
}

// replay returns the task previously created under the same idempotency key,
// or nil when there is none.
func (s *TaskService) replay(ctx context.Context, in ports.CreateTaskInput) (*ports.TaskDetail, error) {
	if s.idempotency == nil || in.IdempotencyKey == "" {
		return nil, nil
	}
	taskID, found, err := s.idempotency.Lookup(ctx, in.Caller.ID, in.IdempotencyKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", in.IdempotencyKey).Msg("idempotency lookup failed, creating anyway")
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	return s.loadReplay(ctx, in, taskID)
}

// loadReplay returns the task that owns the caller's idempotency key. A key
// whose task cannot be loaded belongs to a create still in flight, or to a
// task deleted since; either way it is a conflict rather than a new insert.
func (s *TaskService) loadReplay(ctx context.Context, in ports.CreateTaskInput, taskID int64) (*ports.TaskDetail, error) {
	existing, err := s.detail(ctx, taskID)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, fmt.Errorf("%w: task %d", domain.ErrIdempotencyConflict, taskID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("idempotency_key", in.IdempotencyKey).Int64("task_id", taskID).Msg("idempotent replay")
	existing.AlreadyExisted = true
	return existing, nil
}

// claim binds the request's idempotency key to taskID. It reports the
// owning task and whether this request now holds the key. Without a store,
// a key, or a reachable store, taskID is its own owner.
func (s *TaskService) claim(ctx context.Context, in ports.CreateTaskInput, taskID int64) (int64, bool) {
	if s.idempotency == nil || in.IdempotencyKey == "" {
		return taskID, false
	}
	owner, err := s.idempotency.Claim(ctx, in.Caller.ID, in.IdempotencyKey, taskID)
	if err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", in.IdempotencyKey).Msg("failed to claim idempotency key")
		return taskID, false
	}
	return owner, owner == taskID
}

func (s *TaskService) forget(ctx context.Context, in ports.CreateTaskInput) {
	if err := s.idempotency.Forget(ctx, in.Caller.ID, in.IdempotencyKey); err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", in.IdempotencyKey).Msg("failed to release idempotency key")
	}
}

// GetTask returns a single task when the caller may see it.
func (s *TaskService) GetTask(ctx context.Context, caller domain.Identity, taskID int64) (*ports.TaskDetail, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	task, err := s.store.Tasks().FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := authz.CanReadTask(caller, task).Err(); err != nil {
		return nil, err
	}
	return s.detail(ctx, taskID)
}

// UpdateTask applies a patch. Fields absent from the input keep their stored
// value. An assignment list from a caller without the assignee right is
// dropped unparsed and the stored assignment retained.
func (s *TaskService) UpdateTask(ctx context.Context, in ports.UpdateTaskInput) (*ports.TaskDetail, error) {
	if !in.Caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if in.Title.Set && (in.Title.Value == nil || strings.TrimSpace(*in.Title.Value) == "") {
		return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
	}

	err := s.store.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		task, err := tx.Tasks().FindByID(ctx, in.TaskID)
		if err != nil {
			return err
		}
		scope := authz.WriteScope(in.Caller, task)
		if !scope.Fields {
			return authz.CanUpdateTask(in.Caller, task).Err()
		}

		applyFieldPatches(task, in)

		if in.AssignedTo.Set {
			if scope.Assignees {
				var ids []int64
				if in.AssignedTo.Value != nil {
					if ids, err = domain.ParseAssigneeJSON(*in.AssignedTo.Value); err != nil {
						return err
					}
				}
				if err := ensureUsersExist(ctx, tx.Users(), ids); err != nil {
					return err
				}
				task.AssignedTo = domain.NewAssignmentSet(ids...)
			} else {
				s.logger.Debug().
					Int64("task_id", task.ID).
					Int64("caller", in.Caller.ID).
					Msg("ignoring assignee change from non-admin")
			}
		}

		task.UpdatedAt = time.Now().UTC()
		return tx.Tasks().Update(ctx, task)
	})
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.logger.Info().Int64("task_id", in.TaskID).Int64("caller", in.Caller.ID).Msg("task updated")
	return s.detail(ctx, in.TaskID)
}

func applyFieldPatches(task *domain.Task, in ports.UpdateTaskInput) {
	if in.Title.Set {
		task.Title = strings.TrimSpace(*in.Title.Value)
	}
	patchNullable(&task.Description, in.Description)
	patchNullable(&task.Category, in.Category)
	patchNullable(&task.Priority, in.Priority)
	patchNullable(&task.StartDate, in.StartDate)
	patchNullable(&task.DueDate, in.DueDate)
	if in.Status.Set {
		task.Status = statusOrDefault(in.Status.Value)
	}
	if in.Progress.Set {
		task.Progress = 0
		if in.Progress.Value != nil {
			task.Progress = *in.Progress.Value
		}
	}
}

func patchNullable(field **string, p ports.Patch[string]) {
	if p.Set {
		*field = domain.NormalizeNullable(p.Value)
	}
}

func statusOrDefault(status *string) string {
	if v := domain.NormalizeNullable(status); v != nil {
		return *v
	}
	return domain.DefaultTaskStatus
}

// DeleteTask removes a task and its comments. Only the creator or an admin
// may delete.
func (s *TaskService) DeleteTask(ctx context.Context, caller domain.Identity, taskID int64) error {
	if !caller.Authenticated() {
		return domain.ErrUnauthenticated
	}
	err := s.store.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		task, err := tx.Tasks().FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if err := authz.CanDeleteTask(caller, task).Err(); err != nil {
			return err
		}
		return tx.Tasks().Delete(ctx, taskID)
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.logger.Info().Int64("task_id", taskID).Int64("caller", caller.ID).Msg("task deleted")
	return nil
}

// ListTasks returns the tasks visible to the caller, newest first.
func (s *TaskService) ListTasks(ctx context.Context, in ports.ListTasksInput) ([]ports.TaskDetail, error) {
	if !in.Caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	rows, err := s.store.Tasks().List(ctx, ports.ListTasksFilter{
		Visibility: authz.VisibilityFor(in.Caller),
		Category:   strings.TrimSpace(in.Category),
		Status:     strings.TrimSpace(in.Status),
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]ports.TaskDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, toTaskDetail(row))
	}
	return out, nil
}

// ListCategories returns the distinct task categories.
func (s *TaskService) ListCategories(ctx context.Context, caller domain.Identity) ([]string, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	categories, err := s.store.Tasks().Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// detail loads the annotated view of a single task without a visibility
// restriction; callers authorize first.
func (s *TaskService) detail(ctx context.Context, taskID int64) (*ports.TaskDetail, error) {
	rows, err := s.store.Tasks().List(ctx, ports.ListTasksFilter{
		Visibility: authz.Visibility{Unrestricted: true},
		TaskID:     taskID,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrTaskNotFound
	}
	d := toTaskDetail(rows[0])
	return &d, nil
}

// ensureUsersExist fails with domain.ErrUnknownAssignee on the first id that
// matches no user.
func ensureUsersExist(ctx context.Context, users ports.UserRepository, ids []int64) error {
	for _, id := range ids {
		if _, err := users.FindByID(ctx, id); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return fmt.Errorf("%w: user %d", domain.ErrUnknownAssignee, id)
			}
			return err
		}
	}
	return nil
}

func toTaskDetail(row *domain.TaskListing) ports.TaskDetail {
	creator := row.CreatorUsername
	if creator == "" {
		creator = domain.UnknownUsername
	}
	assignees := row.AssigneeUsernames
	if assignees == nil {
		assignees = []string{}
	}
	return ports.TaskDetail{
		ID:                row.ID,
		Title:             row.Title,
		Description:       row.Description,
		Category:          row.Category,
		Priority:          row.Priority,
		Status:            row.Status,
		Progress:          row.Progress,
		StartDate:         row.StartDate,
		DueDate:           row.DueDate,
		CreatedBy:         row.CreatedBy,
		CreatedByUsername: creator,
		AssignedUserIDs:   row.AssignedTo.IDs(),
		AssignedUsernames: assignees,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}
