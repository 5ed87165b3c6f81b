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

type VideoRepository struct {
	coll *mongo.Collection
}

func NewVideoRepository(db *Database) *VideoRepository {
	return &VideoRepository{coll: db.Collection(models.CollectionVideos)}
}

func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	now := time.Now().UTC()
	video.ID = primitive.NewObjectID()
	video.CreatedAt = now
	video.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, video); err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Video, error) {
	var video models.Video
	found, err := findOne(ctx, r.coll, bson.M{"_id": id}, &video)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &video, nil
}

// TogglePublish flips isPublished server-side so two concurrent toggles
// cannot both read the same state.
func (r *VideoRepository) TogglePublish(ctx context.Context, id, owner primitive.ObjectID) (*models.Video, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "isPublished", Value: bson.D{{Key: "$not", Value: bson.A{"$isPublished"}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}

	var video models.Video
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "owner": owner},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&video)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle publish status: %w", err)
	}
	return &video, nil
}

func (r *VideoRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return false, fmt.Errorf("failed to increment views: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// Delete removes the video if owner owns it and returns the removed document.
func (r *VideoRepository) Delete(ctx context.Context, id, owner primitive.ObjectID) (*models.Video, error) {
	var video models.Video
	err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "owner": owner}).Decode(&video)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete video: %w", err)
	}
	return &video, nil
}
