package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/vidtube/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CommentRepository struct {
	coll *mongo.Collection
}

func NewCommentRepository(db *Database) *CommentRepository {
	return &CommentRepository{coll: db.Collection(models.CollectionComments)}
}

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	now := time.Now().UTC()
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	found, err := findOne(ctx, r.coll, bson.M{"_id": id}, &comment)
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// IDsByTarget lists comment ids on a video or tweet, used to cascade likes
// before the comments themselves are removed.
func (r *CommentRepository) IDsByTarget(ctx context.Context, kind models.TargetKind, target primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := r.coll.Find(ctx, bson.M{string(kind): target},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *CommentRepository) DeleteByTarget(ctx context.Context, kind models.TargetKind, target primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{string(kind): target})
	if err != nil {
		return 0, fmt.Errorf("failed to delete comments by %s: %w", kind, err)
	}
	return res.DeletedCount, nil
}
