package services

import (
	"context"
	"io"
	"time"

	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"github.com/vidtube/vidtube/pkg/storage"
)

// EventPublisher is satisfied by *queue.KafkaProducer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// MediaStorage is satisfied by *storage.MediaStore.
type MediaStorage interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (*storage.Object, error)
	Remove(ctx context.Context, storageID string) error
}

// Cache is satisfied by *cache.RedisClient.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	GetInt64(ctx context.Context, key string) (int64, error)
}

// publishEvent logs instead of returning: a lost event never fails the
// request that produced it.
func publishEvent(ctx context.Context, producer EventPublisher, log *logger.Logger, key string, t queue.EventType, data interface{}) {
	if err := producer.Publish(ctx, key, queue.NewEvent(t, data)); err != nil {
		log.WithError(err).WithField("event", string(t)).Error("Failed to publish event")
	}
}
