package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

// CommentRepository implements ports.CommentRepository using MongoDB.
type CommentRepository struct {
	db *mongo.Database
}

type commentDoc struct {
	ID        int64     `bson:"_id"`
	TaskID    int64     `bson:"task_id"`
	UserID    int64     `bson:"user_id"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d commentDoc) toDomain(username string) *domain.Comment {
	return &domain.Comment{
		ID:        d.ID,
		TaskID:    d.TaskID,
		UserID:    d.UserID,
		Text:      d.Comment,
		CreatedAt: d.CreatedAt,
		Username:  username,
	}
}

func (r *CommentRepository) coll() *mongo.Collection {
	return r.db.Collection(collectionComments)
}

func (r *CommentRepository) Create(ctx context.Context, c *domain.Comment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionComments)
	if err != nil {
		return err
	}
	doc := commentDoc{
		ID:        id,
		TaskID:    c.TaskID,
		UserID:    c.UserID,
		Comment:   c.Text,
		CreatedAt: c.CreatedAt.UTC(),
	}
	if _, err := r.coll().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	c.ID = id
	return nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*domain.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc commentDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCommentNotFound
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	names, err := usernames(ctx, r.db, []int64{doc.UserID})
	if err != nil {
		return nil, err
	}
	return doc.toDomain(names[doc.UserID]), nil
}

func (r *CommentRepository) UpdateText(ctx context.Context, id int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"comment": text}})
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (r *CommentRepository) ListByTask(ctx context.Context, taskID int64, order ports.CommentOrder) ([]*domain.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	direction := 1
	if order == ports.NewestFirst {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: direction}, {Key: "_id", Value: direction}})
	cur, err := r.coll().Find(ctx, bson.M{"task_id": taskID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}

	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.UserID)
	}
	names, err := usernames(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Comment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain(names[d.UserID]))
	}
	return out, nil
}
