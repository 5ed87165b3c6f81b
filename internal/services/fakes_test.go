package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vidtube/vidtube/pkg/queue"
	"github.com/vidtube/vidtube/pkg/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// memoryCache implements Cache in memory. Misses return redis.Nil like the
// real client. failing makes every call error.
type memoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	failing error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return "", m.failing
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	switch v := value.(type) {
	case string:
		m.values[key] = v
	case []byte:
		m.values[key] = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m.values[key] = string(b)
	}
	return nil
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	v, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dest)
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, b, expiration)
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryCache) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return false, m.failing
	}
	if v, ok := m.values[key]; !ok || v != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return 0, m.failing
	}
	n, _ := strconv.ParseInt(m.values[key], 10, 64)
	n++
	m.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memoryCache) GetInt64(ctx context.Context, key string) (int64, error) {
	v, err := m.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

type fakeMedia struct {
	mu        sync.Mutex
	uploaded  []string
	removed   []string
	uploadErr error
}

func (f *fakeMedia) Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (*storage.Object, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	name := storage.ObjectName(folder, filename)
	f.mu.Lock()
	f.uploaded = append(f.uploaded, name)
	f.mu.Unlock()
	return &storage.Object{URL: "http://media.test/" + name, StorageID: name}, nil
}

func (f *fakeMedia) Remove(ctx context.Context, storageID string) error {
	f.mu.Lock()
	f.removed = append(f.removed, storageID)
	f.mu.Unlock()
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := value.(queue.Event); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// countingStore is a readmodel.Aggregator that answers count pipelines with
// total and fetches with rows.
type countingStore struct {
	mu    sync.Mutex
	total int64
	rows  []interface{}
	calls int
}

func (s *countingStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, results interface{}) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	docs := s.rows
	if last := pipeline[len(pipeline)-1]; len(last) > 0 && last[0].Key == "$count" {
		docs = []interface{}{bson.M{"total": s.total}}
	}
	if docs == nil {
		docs = []interface{}{}
	}
	raw, err := bson.Marshal(bson.M{"v": docs})
	if err != nil {
		return err
	}
	return bson.Raw(raw).Lookup("v").Unmarshal(results)
}

func (s *countingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// pngUpload encodes a w×h image as a FileUpload.
func pngUpload(w, h int) *FileUpload {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return &FileUpload{
		Filename:    "image.png",
		ContentType: "application/octet-stream",
		Size:        int64(buf.Len()),
		Reader:      bytes.NewReader(buf.Bytes()),
	}
}

func videoUpload() *FileUpload {
	data := []byte("not really an mp4 but enough bytes")
	return &FileUpload{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(data)),
		Reader:      bytes.NewReader(data),
	}
}
