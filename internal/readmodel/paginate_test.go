package readmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidtube/vidtube/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name              string
		page, limit, sort string
		want              Options
		wantErr           bool
	}{
		{name: "defaults", want: Options{Page: 1, Limit: 20, Sort: -1}},
		{name: "explicit", page: "3", limit: "10", sort: "1", want: Options{Page: 3, Limit: 10, Sort: 1}},
		{name: "negative sort", page: "1", limit: "5", sort: "-1", want: Options{Page: 1, Limit: 5, Sort: -1}},
		{name: "zero page and limit", page: "0", limit: "0", want: Options{Page: 1, Limit: 20, Sort: -1}},
		{name: "negative page", page: "-4", want: Options{Page: 1, Limit: 20, Sort: -1}},
		{name: "limit clamped", limit: "500", want: Options{Page: 1, Limit: 100, Sort: -1}},
		{name: "unparseable sort", sort: "newest", want: Options{Page: 1, Limit: 20, Sort: -1}},
		{name: "zero sort", sort: "0", want: Options{Page: 1, Limit: 20, Sort: -1}},
		{name: "large positive sort", sort: "7", want: Options{Page: 1, Limit: 20, Sort: 1}},
		{name: "whitespace", page: " 2 ", limit: " 15 ", want: Options{Page: 2, Limit: 15, Sort: -1}},
		{name: "non-numeric page", page: "two", wantErr: true},
		{name: "non-numeric limit", limit: "ten", wantErr: true},
		{name: "fractional limit", limit: "2.5", wantErr: true},
		{name: "page past int64 skip", page: "9223372036854775807", wantErr: true},
		{name: "largest page at max limit", page: "92233720368547759", limit: "100", want: Options{Page: 92233720368547759, Limit: 100, Sort: -1}},
		{name: "page past skip at max limit", page: "92233720368547760", limit: "100", wantErr: true},
		{name: "largest page for limit", page: "92233720368547759", limit: "1", want: Options{Page: 92233720368547759, Limit: 1, Sort: -1}},
		{name: "page overflowing int64", page: "9223372036854775808", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.page, tt.limit, tt.sort)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrInvalidArgument) {
					t.Fatalf("ParseOptions() error = %v, want InvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOptions() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLimits_CustomMax(t *testing.T) {
	limits := Limits{Default: 10, Max: 25}
	got, err := limits.ParseOptions("", "40", "")
	if err != nil {
		t.Fatalf("ParseOptions() error = %v", err)
	}
	if got.Limit != 25 {
		t.Errorf("limit = %d, want 25", got.Limit)
	}

	got, _ = limits.ParseOptions("", "", "")
	if got.Limit != 10 {
		t.Errorf("default limit = %d, want 10", got.Limit)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, limit, want int64
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
		{100, 1, 100},
	}
	for _, tt := range tests {
		if got := totalPages(tt.total, tt.limit); got != tt.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

type row struct {
	Title string `bson:"title" json:"title"`
}

func TestPaginate_EmptyCollection(t *testing.T) {
	store := &fakeStore{}

	page, err := Paginate[row](context.Background(), store, "videos", PublishedVideosPipeline(), Options{Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("items = %#v, want empty non-nil slice", page.Items)
	}
	if page.TotalItems != 0 || page.TotalPages != 0 || page.CurrentPage != 1 {
		t.Errorf("envelope = %+v", page)
	}

	body, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"items":[],"totalItems":0,"totalPages":0,"currentPage":1}`
	if string(body) != want {
		t.Errorf("json = %s, want %s", body, want)
	}
}

func TestPaginate_Envelope(t *testing.T) {
	store := &fakeStore{
		total: 45,
		rows:  []interface{}{bson.M{"title": "a"}, bson.M{"title": "b"}},
	}

	page, err := Paginate[row](context.Background(), store, "videos", PublishedVideosPipeline(), Options{Page: 3, Limit: 20, Sort: 1})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	if page.TotalItems != 45 || page.TotalPages != 3 || page.CurrentPage != 3 {
		t.Errorf("envelope = %+v", page)
	}
	if len(page.Items) != 2 || page.Items[0].Title != "a" {
		t.Errorf("items = %+v", page.Items)
	}

	calls := store.recorded()
	if len(calls) != 2 {
		t.Fatalf("store calls = %d, want 2", len(calls))
	}

	var fetch mongo.Pipeline
	for _, c := range calls {
		if c.collection != "videos" {
			t.Errorf("collection = %q", c.collection)
		}
		if !isCount(c.pipeline) {
			fetch = c.pipeline
		}
	}
	wantStages := []string{"$match", "$sort", "$skip", "$limit"}
	if got := stageNames(fetch); !reflect.DeepEqual(got, wantStages) {
		t.Fatalf("fetch stages = %v, want %v", got, wantStages)
	}
	if skip := fetch[2][0].Value; skip != int64(40) {
		t.Errorf("$skip = %v, want 40", skip)
	}
	if limit := fetch[3][0].Value; limit != int64(20) {
		t.Errorf("$limit = %v, want 20", limit)
	}
	sort := fetch[1][0].Value.(bson.D)
	if sort[0].Key != "createdAt" || sort[0].Value != 1 || sort[1].Key != "_id" || sort[1].Value != 1 {
		t.Errorf("$sort = %v", sort)
	}
}

func TestPaginate_NormalizesOptions(t *testing.T) {
	store := &fakeStore{}
	page, err := Paginate[row](context.Background(), store, "videos", PublishedVideosPipeline(), Options{})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if page.CurrentPage != 1 {
		t.Errorf("currentPage = %d", page.CurrentPage)
	}
	for _, c := range store.recorded() {
		if isCount(c.pipeline) {
			continue
		}
		sort := c.pipeline[1][0].Value.(bson.D)
		if sort[0].Value != SortDescending {
			t.Errorf("default sort = %v, want descending", sort[0].Value)
		}
		if c.pipeline[3][0].Value != DefaultLimit {
			t.Errorf("default limit = %v", c.pipeline[3][0].Value)
		}
	}
}

func TestFetchPipeline_SkipNeverOverflows(t *testing.T) {
	tests := []Options{
		{Page: math.MaxInt64, Limit: 20},
		{Page: math.MaxInt64, Limit: 1},
		{Page: math.MaxInt64 / 2, Limit: 3},
		{Page: 461168601842738791, Limit: 20},
	}

	for _, opts := range tests {
		p := FetchPipeline(PublishedVideosPipeline(), opts)
		skip := p[len(p)-2][0].Value.(int64)
		if skip < 0 {
			t.Errorf("FetchPipeline(%+v) skip = %d", opts, skip)
		}
		if n := opts.Normalize(); (n.Page-1)*n.Limit != skip {
			t.Errorf("Normalize(%+v) = %+v, skip %d", opts, n, skip)
		}
	}
}

func TestPaginate_HugePageIsEmptyNotWrapped(t *testing.T) {
	store := &fakeStore{total: 3}
	page, err := Paginate[row](context.Background(), store, "videos", PublishedVideosPipeline(), Options{Page: math.MaxInt64, Limit: 20})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if page.CurrentPage <= page.TotalPages {
		t.Errorf("currentPage = %d, totalPages = %d", page.CurrentPage, page.TotalPages)
	}
	for _, c := range store.recorded() {
		if isCount(c.pipeline) {
			continue
		}
		if skip := c.pipeline[len(c.pipeline)-2][0].Value.(int64); skip < 0 {
			t.Errorf("skip = %d", skip)
		}
	}
}

func TestPaginate_CountLeavesBaseUntouched(t *testing.T) {
	base := PublishedVideosPipeline()
	count := CountPipeline(base)
	fetch := FetchPipeline(base, Options{Page: 2, Limit: 5})

	if len(base) != 1 {
		t.Fatalf("base pipeline mutated: %v", stageNames(base))
	}
	if got := stageNames(count); !reflect.DeepEqual(got, []string{"$match", "$count"}) {
		t.Errorf("count stages = %v", got)
	}
	if len(fetch) != 4 {
		t.Errorf("fetch stages = %v", stageNames(fetch))
	}
}

func TestPaginate_FailuresFailTheWholeCall(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name  string
		store *fakeStore
	}{
		{name: "count fails", store: &fakeStore{countErr: boom, rows: []interface{}{bson.M{"title": "a"}}}},
		{name: "fetch fails", store: &fakeStore{fetchErr: boom, total: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Paginate[row](context.Background(), tt.store, "videos", PublishedVideosPipeline(), Options{Page: 1, Limit: 20})
			if page != nil {
				t.Errorf("page = %+v, want nil", page)
			}
			if !errors.Is(err, apperror.ErrStoreFailure) {
				t.Errorf("error = %v, want StoreFailure", err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("error %v does not wrap the cause", err)
			}
		})
	}
}

func TestPaginate_StoreFailureWrappedOnce(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name  string
		store *fakeStore
		want  string
	}{
		{name: "count", store: &fakeStore{countErr: boom}, want: "failed to count videos: connection reset"},
		{name: "fetch", store: &fakeStore{fetchErr: boom}, want: "failed to fetch videos: connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Paginate[row](context.Background(), tt.store, "videos", PublishedVideosPipeline(), Options{})
			if err == nil || err.Error() != tt.want {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestPaginate_RunsCountAndFetchConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	both := make(chan struct{})
	go func() {
		arrived.Wait()
		close(both)
	}()

	store := &fakeStore{
		total: 1,
		rows:  []interface{}{bson.M{"title": "a"}},
		onCall: func(ctx context.Context, counting bool) error {
			arrived.Done()
			select {
			case <-both:
				return nil
			case <-time.After(2 * time.Second):
				return fmt.Errorf("count=%v ran alone", counting)
			}
		},
	}

	if _, err := Paginate[row](context.Background(), store, "videos", PublishedVideosPipeline(), Options{Page: 1, Limit: 1}); err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
}

func TestPaginate_FailureCancelsSibling(t *testing.T) {
	boom := errors.New("count failed")
	store := &fakeStore{
		onCall: func(ctx context.Context, counting bool) error {
			if counting {
				return boom
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
				return errors.New("fetch was not cancelled")
			}
		},
	}

	_, err := Paginate[row](context.Background(), store, "videos", PublishedVideosPipeline(), Options{Page: 1, Limit: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the count failure", err)
	}
	if strings.Contains(err.Error(), "not cancelled") {
		t.Fatalf("sibling query kept running: %v", err)
	}
}
