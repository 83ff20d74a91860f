package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

type TaskRepository struct {
	db *mongo.Database
}

// taskDoc stores the assignment set in its encoded form so the membership
// rule is the same substring test used by the SQL backend.
type taskDoc struct {
	ID          int64     `bson:"_id"`
	Title       string    `bson:"title"`
	Description *string   `bson:"description,omitempty"`
	Category    *string   `bson:"category,omitempty"`
	Priority    *string   `bson:"priority,omitempty"`
	Status      string    `bson:"status"`
	Progress    int       `bson:"progress"`
	AssignedTo  string    `bson:"assigned_to,omitempty"`
	StartDate   *string   `bson:"start_date,omitempty"`
	DueDate     *string   `bson:"due_date,omitempty"`
	CreatedBy   int64     `bson:"created_by"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newTaskDoc(t *domain.Task) taskDoc {
	return taskDoc{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		Status:      t.Status,
		Progress:    t.Progress,
		AssignedTo:  t.AssignedTo.Encode(),
		StartDate:   t.StartDate,
		DueDate:     t.DueDate,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (d taskDoc) toDomain() (*domain.Task, error) {
	set, err := domain.DecodeAssignmentSet(d.AssignedTo)
	if err != nil {
		return nil, err
	}
	return &domain.Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Priority:    d.Priority,
		Status:      d.Status,
		Progress:    d.Progress,
		AssignedTo:  set,
		StartDate:   d.StartDate,
		DueDate:     d.DueDate,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func (r *TaskRepository) coll() *mongo.Collection {
	return r.db.Collection(collectionTasks)
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionTasks)
	if err != nil {
		return err
	}
	t.ID = id
	if _, err := r.coll().InsertOne(ctx, newTaskDoc(t)); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc taskDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return doc.toDomain()
}

// Update replaces the whole document so cleared optional fields disappear.
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll().ReplaceOne(ctx, bson.M{"_id": t.ID}, newTaskDoc(t))
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// Delete removes the task and then its comments.
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTaskNotFound
	}
	if _, err := r.db.Collection(collectionComments).DeleteMany(ctx, bson.M{"task_id": id}); err != nil {
		return fmt.Errorf("delete task comments: %w", err)
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context, filter ports.ListTasksFilter) ([]*domain.TaskListing, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll().Find(ctx, taskFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	listings := make([]*domain.TaskListing, 0, len(docs))
	var ids []int64
	for _, d := range docs {
		task, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		listings = append(listings, &domain.TaskListing{Task: *task})
		ids = append(ids, task.CreatedBy)
		ids = append(ids, task.AssignedTo.IDs()...)
	}

	names, err := usernames(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		l.CreatorUsername = names[l.CreatedBy]
		for _, id := range l.AssignedTo.IDs() {
			if name, ok := names[id]; ok {
				l.AssigneeUsernames = append(l.AssigneeUsernames, name)
			}
		}
	}
	return listings, nil
}

func (r *TaskRepository) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	values, err := r.coll().Distinct(ctx, "category", bson.M{"category": bson.M{"$nin": bson.A{nil, ""}}})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

// taskFilter translates the listing filter into a query document. A
// restricted visibility matches the creator or the delimiter-bounded token
// inside assigned_to.
func taskFilter(f ports.ListTasksFilter) bson.M {
	if !f.Visibility.Unrestricted && f.Visibility.UserID <= 0 {
		return bson.M{"_id": bson.M{"$in": bson.A{}}}
	}
	q := bson.M{}
	if !f.Visibility.Unrestricted {
		q["$or"] = bson.A{
			bson.M{"created_by": f.Visibility.UserID},
			bson.M{"assigned_to": bson.M{"$regex": regexp.QuoteMeta(f.Visibility.MembershipToken())}},
		}
	}
	if f.TaskID != 0 {
		q["_id"] = f.TaskID
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	return q
}
