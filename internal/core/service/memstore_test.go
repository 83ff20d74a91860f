package service

import (
	"context"
	"sort"
	"sync"

	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory store: mirrors the transactional behaviour of the real backends.
// Atomic snapshots the data and restores it when fn fails.
// ---------------------------------------------------------------------------

type memData struct {
	users    map[int64]*domain.User
	tasks    map[int64]*domain.Task
	comments map[int64]*domain.Comment
	nextID   int64
}

func (d *memData) clone() *memData {
	c := &memData{
		users:    make(map[int64]*domain.User, len(d.users)),
		tasks:    make(map[int64]*domain.Task, len(d.tasks)),
		comments: make(map[int64]*domain.Comment, len(d.comments)),
		nextID:   d.nextID,
	}
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range d.tasks {
		t := *v
		c.tasks[k] = &t
	}
	for k, v := range d.comments {
		cm := *v
		c.comments[k] = &cm
	}
	return c
}

type memStore struct {
	mu   *sync.Mutex
	data *memData

	createTaskErr error // if set, Tasks().Create returns this error
	commitErr     error // if set, Atomic rolls back after fn succeeds
	atomicCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:    make(map[int64]*domain.User),
			tasks:    make(map[int64]*domain.Task),
			comments: make(map[int64]*domain.Comment),
		},
	}
}

func (s *memStore) Users() ports.UserRepository       { return memUsers{s} }
func (s *memStore) Tasks() ports.TaskRepository       { return memTasks{s} }
func (s *memStore) Comments() ports.CommentRepository { return memComments{s} }

func (s *memStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atomicCalls++

	snapshot := s.data.clone()
	if err := fn(ctx, s); err != nil {
		s.data = snapshot
		return err
	}
	if s.commitErr != nil {
		s.data = snapshot
		return s.commitErr
	}
	return nil
}

func (s *memStore) next() int64 {
	s.data.nextID++
	return s.data.nextID
}

// seedUser inserts a user with a fixed id.
func (s *memStore) seedUser(id int64, username string, role domain.Role) {
	s.data.users[id] = &domain.User{ID: id, Username: username, Role: role}
	if id > s.data.nextID {
		s.data.nextID = id
	}
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.s.data.users {
		if u.Username == user.Username {
			return nil, domain.ErrUserExists
		}
	}
	clone := *user
	clone.ID = r.s.next()
	r.s.data.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range r.s.data.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r memUsers) List(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTasks struct{ s *memStore }

func (r memTasks) Create(_ context.Context, t *domain.Task) error {
	if r.s.createTaskErr != nil {
		return r.s.createTaskErr
	}
	t.ID = r.s.next()
	clone := *t
	r.s.data.tasks[t.ID] = &clone
	return nil
}

func (r memTasks) FindByID(_ context.Context, id int64) (*domain.Task, error) {
	t, ok := r.s.data.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	clone := *t
	return &clone, nil
}

func (r memTasks) Update(_ context.Context, t *domain.Task) error {
	if _, ok := r.s.data.tasks[t.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	clone := *t
	r.s.data.tasks[t.ID] = &clone
	return nil
}

func (r memTasks) Delete(_ context.Context, id int64) error {
	delete(r.s.data.tasks, id)
	for cid, c := range r.s.data.comments {
		if c.TaskID == id {
			delete(r.s.data.comments, cid)
		}
	}
	return nil
}

func (r memTasks) List(_ context.Context, f ports.ListTasksFilter) ([]*domain.TaskListing, error) {
	var out []*domain.TaskListing
	for _, t := range r.s.data.tasks {
		if !f.Visibility.Allows(t) {
			continue
		}
		if f.TaskID != 0 && t.ID != f.TaskID {
			continue
		}
		if f.Category != "" && (t.Category == nil || *t.Category != f.Category) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		row := &domain.TaskListing{Task: *t}
		if u, ok := r.s.data.users[t.CreatedBy]; ok {
			row.CreatorUsername = u.Username
		}
		for _, id := range t.AssignedTo.IDs() {
			if u, ok := r.s.data.users[id]; ok {
				row.AssigneeUsernames = append(row.AssigneeUsernames, u.Username)
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memTasks) Categories(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, t := range r.s.data.tasks {
		if t.Category == nil || *t.Category == "" || seen[*t.Category] {
			continue
		}
		seen[*t.Category] = true
		out = append(out, *t.Category)
	}
	sort.Strings(out)
	return out, nil
}

type memComments struct{ s *memStore }

func (r memComments) Create(_ context.Context, c *domain.Comment) error {
	c.ID = r.s.next()
	clone := *c
	r.s.data.comments[c.ID] = &clone
	return nil
}

func (r memComments) FindByID(_ context.Context, id int64) (*domain.Comment, error) {
	c, ok := r.s.data.comments[id]
	if !ok {
		return nil, domain.ErrCommentNotFound
	}
	clone := *c
	return &clone, nil
}

func (r memComments) UpdateText(_ context.Context, id int64, text string) error {
	c, ok := r.s.data.comments[id]
	if !ok {
		return domain.ErrCommentNotFound
	}
	c.Text = text
	return nil
}

func (r memComments) Delete(_ context.Context, id int64) error {
	delete(r.s.data.comments, id)
	return nil
}

func (r memComments) ListByTask(_ context.Context, taskID int64, order ports.CommentOrder) ([]*domain.Comment, error) {
	var out []*domain.Comment
	for _, c := range r.s.data.comments {
		if c.TaskID != taskID {
			continue
		}
		clone := *c
		if u, ok := r.s.data.users[c.UserID]; ok {
			clone.Username = u.Username
		}
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if order == ports.NewestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
