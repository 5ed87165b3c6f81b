package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vidtube/vidtube/internal/config"
	"github.com/vidtube/vidtube/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewDatabase(ctx context.Context, cfg *config.MongoConfig) (*Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Database{client: client, db: client.Database(cfg.Database)}, nil
}

func (d *Database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

func (d *Database) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

// Aggregate runs pipeline against collection and decodes every result into
// results, which must be a pointer to a slice. Errors are left untyped; the
// read model classifies them.
func (d *Database) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, results interface{}) error {
	cursor, err := d.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", collection, err)
	}
	if err := cursor.All(ctx, results); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

func (d *Database) EnsureIndexes(ctx context.Context) error {
	exists := func(field string) *options.IndexOptions {
		return options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}})
	}

	indexes := map[string][]mongo.IndexModel{
		models.CollectionUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "passwordReset.token", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		models.CollectionVideos: {
			{Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		models.CollectionSubscriptions: {
			{Keys: bson.D{{Key: "subscriber", Value: 1}, {Key: "channel", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "channel", Value: 1}}},
		},
		models.CollectionLikes: {
			{Keys: bson.D{{Key: "likeBy", Value: 1}, {Key: "video", Value: 1}}, Options: exists("video")},
			{Keys: bson.D{{Key: "likeBy", Value: 1}, {Key: "comment", Value: 1}}, Options: exists("comment")},
			{Keys: bson.D{{Key: "likeBy", Value: 1}, {Key: "tweet", Value: 1}}, Options: exists("tweet")},
			{Keys: bson.D{{Key: "video", Value: 1}}},
		},
		models.CollectionComments: {
			{Keys: bson.D{{Key: "video", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "tweet", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		models.CollectionTweets: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		models.CollectionViews: {
			{Keys: bson.D{{Key: "video", Value: 1}}},
		},
	}

	for collection, idx := range indexes {
		if _, err := d.db.Collection(collection).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

// Drop removes the whole database. Only used by integration tests.
func (d *Database) Drop(ctx context.Context) error {
	return d.db.Drop(ctx)
}

func (d *Database) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// IsDuplicate reports whether err came from a unique index violation.
func IsDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

func findOne(ctx context.Context, coll *mongo.Collection, filter interface{}, out interface{}, opts ...*options.FindOneOptions) (bool, error) {
	err := coll.FindOne(ctx, filter, opts...).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
