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

type SubscriptionRepository struct {
	coll *mongo.Collection
}

func NewSubscriptionRepository(db *Database) *SubscriptionRepository {
	return &SubscriptionRepository{coll: db.Collection(models.CollectionSubscriptions)}
}

// Create relies on the unique (subscriber, channel) index; callers check
// IsDuplicate on the returned error.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	now := time.Now().UTC()
	sub.ID = primitive.NewObjectID()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Get(ctx context.Context, subscriber, channel primitive.ObjectID) (*models.Subscription, error) {
	var sub models.Subscription
	found, err := findOne(ctx, r.coll, bson.M{"subscriber": subscriber, "channel": channel}, &sub)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sub, nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, subscriber, channel primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"subscriber": subscriber, "channel": channel})
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}
	return res.DeletedCount > 0, nil
}
