package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	FolderVideos     = "videos"
	FolderThumbnails = "thumbnails"
	FolderAvatars    = "avatars"
	FolderCovers     = "covers"
)

// Object is what callers persist: URL is public, StorageID is the object key
// needed to remove it again.
type Object struct {
	URL       string
	StorageID string
}

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Bucket        string
	Region        string
	PublicBaseURL string
}

type MediaStore struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

func NewMediaStore(cfg Config) (*MediaStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MediaStore{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: publicBaseURL(cfg),
	}, nil
}

func publicBaseURL(cfg Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

// EnsureBucket creates the bucket on first start.
func (s *MediaStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores r under folder with a fresh uuid name, keeping the extension
// of filename.
func (s *MediaStore) Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (*Object, error) {
	objectName := ObjectName(folder, filename)

	if _, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	return &Object{URL: s.baseURL + "/" + objectName, StorageID: objectName}, nil
}

// Remove deletes an object. Removing a key that does not exist is not an error.
func (s *MediaStore) Remove(ctx context.Context, storageID string) error {
	if storageID == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, storageID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", storageID, err)
	}
	return nil
}

func ObjectName(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(folder, uuid.NewString()+ext)
}
