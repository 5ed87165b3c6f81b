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

type TweetRepository struct {
	coll *mongo.Collection
}

func NewTweetRepository(db *Database) *TweetRepository {
	return &TweetRepository{coll: db.Collection(models.CollectionTweets)}
}

func (r *TweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	now := time.Now().UTC()
	tweet.ID = primitive.NewObjectID()
	tweet.CreatedAt = now
	tweet.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, tweet); err != nil {
		return fmt.Errorf("failed to create tweet: %w", err)
	}
	return nil
}

func (r *TweetRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Tweet, error) {
	var tweet models.Tweet
	found, err := findOne(ctx, r.coll, bson.M{"_id": id}, &tweet)
	if err != nil {
		return nil, fmt.Errorf("failed to get tweet: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &tweet, nil
}

func (r *TweetRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&tweet)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tweet: %w", err)
	}
	return &tweet, nil
}

func (r *TweetRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete tweet: %w", err)
	}
	return nil
}
