package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/vidtube/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type LikeRepository struct {
	coll *mongo.Collection
}

func NewLikeRepository(db *Database) *LikeRepository {
	return &LikeRepository{coll: db.Collection(models.CollectionLikes)}
}

func (r *LikeRepository) Create(ctx context.Context, like *models.Like) error {
	now := time.Now().UTC()
	like.ID = primitive.NewObjectID()
	like.CreatedAt = now
	like.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, like); err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	return nil
}

func (r *LikeRepository) Get(ctx context.Context, kind models.TargetKind, target, likeBy primitive.ObjectID) (*models.Like, error) {
	var like models.Like
	found, err := findOne(ctx, r.coll, bson.M{string(kind): target, "likeBy": likeBy}, &like)
	if err != nil {
		return nil, fmt.Errorf("failed to get like: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &like, nil
}

func (r *LikeRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

// DeleteByTarget removes every like pointing at target.
func (r *LikeRepository) DeleteByTarget(ctx context.Context, kind models.TargetKind, target primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{string(kind): target})
	if err != nil {
		return 0, fmt.Errorf("failed to delete likes by %s: %w", kind, err)
	}
	return res.DeletedCount, nil
}

// DeleteByTargets is DeleteByTarget for a batch of ids.
func (r *LikeRepository) DeleteByTargets(ctx context.Context, kind models.TargetKind, targets []primitive.ObjectID) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	res, err := r.coll.DeleteMany(ctx, bson.M{string(kind): bson.M{"$in": targets}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete likes by %s: %w", kind, err)
	}
	return res.DeletedCount, nil
}

func (r *LikeRepository) CountByTarget(ctx context.Context, kind models.TargetKind, target primitive.ObjectID) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{string(kind): target})
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}
