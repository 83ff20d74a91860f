package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/taskboard/task-system/internal/core/authz"
	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Connect(context.Background(), Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func mustUser(t *testing.T, s *Store, username string, role domain.Role) *domain.User {
	t.Helper()
	u, err := s.Users().Create(context.Background(), &domain.User{
		Username: username, PasswordHash: "x", Role: role, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustTask(t *testing.T, s *Store, task *domain.Task) *domain.Task {
	t.Helper()
	if task.Status == "" {
		task.Status = domain.DefaultTaskStatus
	}
	now := time.Now()
	task.CreatedAt, task.UpdatedAt = now, now
	if err := s.Tasks().Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestUserRepository(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "alice", domain.RoleUser)
	if alice.ID == 0 {
		t.Fatal("expected generated id")
	}

	if _, err := s.Users().Create(ctx, &domain.User{Username: "alice", PasswordHash: "y", Role: domain.RoleUser}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	got, err := s.Users().FindByUsername(ctx, "alice")
	if err != nil || got.ID != alice.ID || got.Role != domain.RoleUser {
		t.Fatalf("find by username: %+v, %v", got, err)
	}
	if _, err := s.Users().FindByID(ctx, 999); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	mustUser(t, s, "bob", domain.RoleAdmin)
	users, err := s.Users().List(ctx)
	if err != nil || len(users) != 2 || users[0].Username != "alice" {
		t.Fatalf("list: %+v, %v", users, err)
	}
}

func TestTaskRepository_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner", domain.RoleUser)
	desc := "details"

	task := mustTask(t, s, &domain.Task{
		Title: "ship", Description: &desc, Progress: 10,
		AssignedTo: domain.NewAssignmentSet(3, 1), CreatedBy: owner.ID,
	})

	got, err := s.Tasks().FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Title != "ship" || got.Description == nil || *got.Description != "details" {
		t.Fatalf("unexpected task %+v", got)
	}
	if got.Category != nil || got.DueDate != nil {
		t.Fatal("unset columns must read back nil")
	}
	if !got.AssignedTo.Equal(domain.NewAssignmentSet(1, 3)) {
		t.Fatalf("assignment lost: %v", got.AssignedTo.IDs())
	}

	got.AssignedTo = domain.NewAssignmentSet()
	got.Status = "done"
	if err := s.Tasks().Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.Tasks().FindByID(ctx, task.ID)
	if again.Status != "done" || !again.AssignedTo.IsEmpty() {
		t.Fatalf("update not stored: %+v", again)
	}

	var raw *string
	if err := s.db.QueryRowContext(ctx, `SELECT assigned_to FROM tasks WHERE id = ?`, task.ID).Scan(&raw); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if raw != nil {
		t.Fatalf("empty assignment must be stored as null, got %q", *raw)
	}

	if _, err := s.Tasks().FindByID(ctx, 404); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := s.Tasks().Update(ctx, &domain.Task{ID: 404, Title: "x", Status: "todo"}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on update, got %v", err)
	}
}

func TestTaskRepository_ListVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	one := mustUser(t, s, "one", domain.RoleUser)
	var eleven, twentyOne *domain.User
	for i := 2; i <= 21; i++ {
		u := mustUser(t, s, fmt.Sprintf("user%d", i), domain.RoleUser)
		switch u.ID {
		case 11:
			eleven = u
		case 21:
			twentyOne = u
		}
	}
	if eleven == nil || twentyOne == nil {
		t.Fatal("expected users 11 and 21")
	}

	shared := mustTask(t, s, &domain.Task{Title: "shared", CreatedBy: 2, AssignedTo: domain.NewAssignmentSet(11, 21)})
	own := mustTask(t, s, &domain.Task{Title: "own", CreatedBy: one.ID})

	list := func(v authz.Visibility) []*domain.TaskListing {
		t.Helper()
		rows, err := s.Tasks().List(ctx, ports.ListTasksFilter{Visibility: v})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		return rows
	}

	rows := list(authz.Visibility{UserID: one.ID})
	if len(rows) != 1 || rows[0].ID != own.ID {
		t.Fatalf("user 1 must see only its own task, got %d rows", len(rows))
	}

	rows = list(authz.Visibility{UserID: 11})
	if len(rows) != 1 || rows[0].ID != shared.ID {
		t.Fatalf("user 11 must see the shared task, got %d rows", len(rows))
	}
	if len(rows[0].AssigneeUsernames) != 2 || rows[0].AssigneeUsernames[0] != eleven.Username {
		t.Fatalf("assignee names not resolved: %v", rows[0].AssigneeUsernames)
	}
	if rows[0].CreatorUsername == "" {
		t.Fatal("creator name not resolved")
	}

	rows = list(authz.Visibility{Unrestricted: true})
	if len(rows) != 2 || rows[0].ID != own.ID {
		t.Fatalf("admin must see both, newest first, got %d rows", len(rows))
	}

	if rows := list(authz.Visibility{}); len(rows) != 0 {
		t.Fatalf("empty visibility must match nothing, got %d", len(rows))
	}
}

func TestTaskRepository_FiltersAndCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "owner", domain.RoleUser)
	ops, dev, empty := "ops", "dev", ""

	mustTask(t, s, &domain.Task{Title: "a", Category: &ops, CreatedBy: owner.ID})
	mustTask(t, s, &domain.Task{Title: "b", Category: &ops, Status: "done", CreatedBy: owner.ID})
	mustTask(t, s, &domain.Task{Title: "c", Category: &dev, CreatedBy: owner.ID})
	mustTask(t, s, &domain.Task{Title: "d", Category: &empty, CreatedBy: 77})

	rows, err := s.Tasks().List(ctx, ports.ListTasksFilter{
		Visibility: authz.Visibility{Unrestricted: true}, Category: "ops", Status: "done",
	})
	if err != nil || len(rows) != 1 || rows[0].Title != "b" {
		t.Fatalf("filter: %+v, %v", rows, err)
	}

	rows, _ = s.Tasks().List(ctx, ports.ListTasksFilter{Visibility: authz.Visibility{Unrestricted: true}, Category: ""})
	for _, r := range rows {
		if r.Title == "d" && r.CreatorUsername != "" {
			t.Fatalf("missing creator must yield an empty name, got %q", r.CreatorUsername)
		}
	}

	cats, err := s.Tasks().Categories(ctx)
	if err != nil || len(cats) != 2 || cats[0] != "dev" || cats[1] != "ops" {
		t.Fatalf("categories: %v, %v", cats, err)
	}
}

func TestCommentRepository_AndCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	author := mustUser(t, s, "author", domain.RoleUser)
	task := mustTask(t, s, &domain.Task{Title: "t", CreatedBy: author.ID})

	first := &domain.Comment{TaskID: task.ID, UserID: author.ID, Text: "first", CreatedAt: time.Now()}
	second := &domain.Comment{TaskID: task.ID, UserID: 999, Text: "second", CreatedAt: time.Now().Add(time.Second)}
	for _, c := range []*domain.Comment{first, second} {
		if err := s.Comments().Create(ctx, c); err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}

	got, err := s.Comments().FindByID(ctx, first.ID)
	if err != nil || got.Username != "author" || got.Text != "first" {
		t.Fatalf("find: %+v, %v", got, err)
	}

	if err := s.Comments().UpdateText(ctx, first.ID, "edited"); err != nil {
		t.Fatalf("update text: %v", err)
	}
	if err := s.Comments().UpdateText(ctx, 12345, "x"); !errors.Is(err, domain.ErrCommentNotFound) {
		t.Fatalf("expected ErrCommentNotFound, got %v", err)
	}

	oldest, _ := s.Comments().ListByTask(ctx, task.ID, ports.OldestFirst)
	if len(oldest) != 2 || oldest[0].Text != "edited" || oldest[1].Username != "" {
		t.Fatalf("oldest first: %+v", oldest)
	}
	newest, _ := s.Comments().ListByTask(ctx, task.ID, ports.NewestFirst)
	if len(newest) != 2 || newest[0].ID != second.ID {
		t.Fatalf("newest first: %+v", newest)
	}

	if err := s.Tasks().Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	left, _ := s.Comments().ListByTask(ctx, task.ID, ports.OldestFirst)
	if len(left) != 0 {
		t.Fatalf("comments must cascade, %d left", len(left))
	}
}

func TestCommentRepository_RejectsMissingTask(t *testing.T) {
	s := newTestStore(t)
	err := s.Comments().Create(context.Background(), &domain.Comment{TaskID: 42, UserID: 1, Text: "x", CreatedAt: time.Now()})
	if err == nil {
		t.Fatal("foreign key must reject a comment on a missing task")
	}
}

func TestStore_AtomicRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		if _, err := tx.Users().Create(ctx, &domain.User{Username: "ghost", PasswordHash: "x", Role: domain.RoleUser, CreatedAt: time.Now()}); err != nil {
			return err
		}
		return tx.Atomic(ctx, func(ctx context.Context, inner ports.Store) error {
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Users().FindByUsername(ctx, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("rolled back insert must not be visible, got %v", err)
	}

	if err := s.Atomic(ctx, func(ctx context.Context, tx ports.Store) error {
		_, err := tx.Users().Create(ctx, &domain.User{Username: "kept", PasswordHash: "x", Role: domain.RoleUser, CreatedAt: time.Now()})
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Users().FindByUsername(ctx, "kept"); err != nil {
		t.Fatalf("committed insert must be visible: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
