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

type ViewRepository struct {
	coll *mongo.Collection
}

func NewViewRepository(db *Database) *ViewRepository {
	return &ViewRepository{coll: db.Collection(models.CollectionViews)}
}

func (r *ViewRepository) Create(ctx context.Context, view *models.View) error {
	now := time.Now().UTC()
	view.ID = primitive.NewObjectID()
	view.CreatedAt = now
	view.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, view); err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	return nil
}

func (r *ViewRepository) DeleteByVideo(ctx context.Context, videoID primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"video": videoID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete views: %w", err)
	}
	return res.DeletedCount, nil
}
