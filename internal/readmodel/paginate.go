package readmodel

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/vidtube/vidtube/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit int64 = 20
	MaxLimit     int64 = 100

	SortAscending  = 1
	SortDescending = -1
)

// Aggregator executes a pipeline against a collection and decodes all results
// into results (a pointer to a slice).
type Aggregator interface {
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, results interface{}) error
}

type Options struct {
	Page  int64
	Limit int64
	Sort  int
}

// Page is the wire envelope for every paginated read model.
type Page[T any] struct {
	Items       []T   `json:"items"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int64 `json:"currentPage"`
}

type Limits struct {
	Default int64
	Max     int64
}

var DefaultLimits = Limits{Default: DefaultLimit, Max: MaxLimit}

// ParseOptions turns raw query values into Options. Empty or non-positive
// page/limit fall back to defaults; anything non-numeric is rejected. sort is
// lenient: >0 ascending, anything else descending.
func (l Limits) ParseOptions(page, limit, sort string) (Options, error) {
	opts := Options{Page: 1, Limit: l.Default, Sort: SortDescending}

	if p := strings.TrimSpace(page); p != "" {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Options{}, apperror.InvalidArgument("page must be a number")
		}
		if n > 0 {
			opts.Page = n
		}
	}

	if lim := strings.TrimSpace(limit); lim != "" {
		n, err := strconv.ParseInt(lim, 10, 64)
		if err != nil {
			return Options{}, apperror.InvalidArgument("limit must be a number")
		}
		if n > 0 {
			opts.Limit = n
		}
	}
	if l.Max > 0 && opts.Limit > l.Max {
		opts.Limit = l.Max
	}
	if !skipFits(opts.Page, opts.Limit) {
		return Options{}, apperror.InvalidArgument("page is out of range")
	}

	if n, err := strconv.Atoi(strings.TrimSpace(sort)); err == nil && n > 0 {
		opts.Sort = SortAscending
	}

	return opts, nil
}

// ParseOptions uses DefaultLimits.
func ParseOptions(page, limit, sort string) (Options, error) {
	return DefaultLimits.ParseOptions(page, limit, sort)
}

// Normalize applies the same defaults Paginate uses. Page is capped so the
// skip never overflows.
func (o Options) Normalize() Options {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if !skipFits(o.Page, o.Limit) {
		o.Page = math.MaxInt64 / o.Limit
	}
	if o.Sort > 0 {
		o.Sort = SortAscending
	} else {
		o.Sort = SortDescending
	}
	return o
}

func (o Options) skip() int64 {
	return (o.Page - 1) * o.Limit
}

// skipFits reports whether (page-1)*limit fits in an int64. page and limit
// must be positive.
func skipFits(page, limit int64) bool {
	return page-1 <= math.MaxInt64/limit
}

// SortStage orders by createdAt and breaks ties on _id in the same direction,
// so page boundaries are stable for a fixed data set.
func SortStage(direction int) bson.D {
	return bson.D{{Key: "$sort", Value: bson.D{
		{Key: "createdAt", Value: direction},
		{Key: "_id", Value: direction},
	}}}
}

func withStages(base mongo.Pipeline, stages ...bson.D) mongo.Pipeline {
	p := make(mongo.Pipeline, 0, len(base)+len(stages))
	p = append(p, base...)
	return append(p, stages...)
}

// CountPipeline and FetchPipeline are exposed for inspection in tests.
func CountPipeline(base mongo.Pipeline) mongo.Pipeline {
	return withStages(base, bson.D{{Key: "$count", Value: "total"}})
}

func FetchPipeline(base mongo.Pipeline, opts Options) mongo.Pipeline {
	opts = opts.Normalize()
	return withStages(base,
		SortStage(opts.Sort),
		bson.D{{Key: "$skip", Value: opts.skip()}},
		bson.D{{Key: "$limit", Value: opts.Limit}},
	)
}

// Paginate runs the count and the page fetch over the same base pipeline
// concurrently. Either failing fails the whole call; the first error wins and
// cancels the other query.
func Paginate[T any](ctx context.Context, store Aggregator, collection string, base mongo.Pipeline, opts Options) (*Page[T], error) {
	opts = opts.Normalize()

	var (
		total int64
		items []T
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var rows []struct {
			Total int64 `bson:"total"`
		}
		if err := store.Aggregate(gctx, collection, CountPipeline(base), &rows); err != nil {
			return apperror.StoreFailure("failed to count "+collection, err)
		}
		if len(rows) > 0 {
			total = rows[0].Total
		}
		return nil
	})
	g.Go(func() error {
		if err := store.Aggregate(gctx, collection, FetchPipeline(base, opts), &items); err != nil {
			return apperror.StoreFailure("failed to fetch "+collection, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []T{}
	}

	return &Page[T]{
		Items:       items,
		TotalItems:  total,
		TotalPages:  totalPages(total, opts.Limit),
		CurrentPage: opts.Page,
	}, nil
}

func totalPages(total, limit int64) int64 {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
