package readmodel

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// fakeStore answers $count pipelines with total and every other pipeline with
// rows, recording what it was asked to run.
type fakeStore struct {
	mu       sync.Mutex
	total    int64
	rows     []interface{}
	countErr error
	fetchErr error
	onCall   func(ctx context.Context, counting bool) error
	calls    []call
}

type call struct {
	collection string
	pipeline   mongo.Pipeline
}

func (f *fakeStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, results interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{collection: collection, pipeline: pipeline})
	f.mu.Unlock()

	counting := isCount(pipeline)
	if f.onCall != nil {
		if err := f.onCall(ctx, counting); err != nil {
			return err
		}
	}

	if counting {
		if f.countErr != nil {
			return f.countErr
		}
		if f.total == 0 {
			return decodeInto([]interface{}{}, results)
		}
		return decodeInto([]interface{}{bson.M{"total": f.total}}, results)
	}
	if f.fetchErr != nil {
		return f.fetchErr
	}
	return decodeInto(f.rows, results)
}

func (f *fakeStore) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func isCount(p mongo.Pipeline) bool {
	return len(p) > 0 && stageName(p[len(p)-1]) == "$count"
}

func decodeInto(docs []interface{}, results interface{}) error {
	if docs == nil {
		docs = []interface{}{}
	}
	raw, err := bson.Marshal(bson.M{"v": docs})
	if err != nil {
		return err
	}
	return bson.Raw(raw).Lookup("v").Unmarshal(results)
}

func stageName(stage bson.D) string {
	if len(stage) == 0 {
		return ""
	}
	return stage[0].Key
}

func stageNames(p mongo.Pipeline) []string {
	names := make([]string, 0, len(p))
	for _, s := range p {
		names = append(names, stageName(s))
	}
	return names
}
