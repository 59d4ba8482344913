package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/review-scraper/internal/cache"
	"github.com/maltedev/review-scraper/internal/fetcher"
	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/pool"
	"github.com/maltedev/review-scraper/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchPage(ctx context.Context, target string, p models.Pagination) ([]models.Review, error) {
	args := m.Called(ctx, target, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) List(ctx context.Context, p models.Pagination) ([]models.Review, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

type staticStats pool.Stats

func (s staticStats) Stats() pool.Stats { return pool.Stats(s) }

func testReviews(t *testing.T, n int) []models.Review {
	t.Helper()
	var out []models.Review
	for i := 0; i < n; i++ {
		r, err := models.NewReview(time.Date(2024, 2, 5, 12, 0, 0, 0, time.UTC), fmt.Sprintf("reviewer-%d", i), 45, nil, nil)
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func serve(t *testing.T, h *Handlers, path string) *httptest.ResponseRecorder {
	t.Helper()
	return serveMethod(t, h, http.MethodGet, path)
}

func serveMethod(t *testing.T, h *Handlers, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	NewRouter(h, DefaultRouterOptions()).ServeHTTP(rec, req)
	return rec
}

type reviewsBody struct {
	Reviews []map[string]interface{} `json:"reviews"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	buffers := newTestBuffers(t)
	_, err := buffers.Append(context.Background(), "pizza-palace", testReviews(t, 3))
	require.NoError(t, err)

	h := NewHandlers(new(MockFetcher), nil, staticStats{Size: 2, Created: 2, Idle: 1, InUse: 1, Live: 2}, buffers, nil)

	rec := serve(t, h, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status          string     `json:"status"`
		Pool            pool.Stats `json:"pool"`
		BufferedTargets int        `json:"buffered_targets"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Pool.Size)
	assert.Equal(t, 2, body.Pool.Live)
	assert.Equal(t, 1, body.Pool.InUse)
	assert.Equal(t, 1, body.BufferedTargets)
}

func newTestBuffers(t *testing.T) *cache.Buffers {
	t.Helper()
	b, err := cache.New(cache.DefaultOptions())
	require.NoError(t, err)
	return b
}

func TestEvictTarget(t *testing.T) {
	buffers := newTestBuffers(t)
	_, err := buffers.Append(context.Background(), "pizza-palace", testReviews(t, 3))
	require.NoError(t, err)
	h := NewHandlers(new(MockFetcher), nil, nil, buffers, nil)

	rec := serveMethod(t, h, http.MethodDelete, "/api/v1/targets/pizza-palace/reviews")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, buffers.Len("pizza-palace"))

	rec = serveMethod(t, h, http.MethodDelete, "/api/v1/targets/pizza-palace/reviews")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveMethod(t, NewHandlers(new(MockFetcher), nil, nil, nil, nil), http.MethodDelete, "/api/v1/targets/pizza-palace/reviews")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandlers(new(MockFetcher), nil, nil, nil, nil)

	rec := serve(t, h, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestFetchTargetReviews(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchPage", mock.Anything, "pizza-palace", models.Pagination{Skip: 10, Limit: 5}).
		Return(testReviews(t, 5), nil)

	rec := serve(t, NewHandlers(f, nil, nil, nil, nil), "/api/v1/targets/pizza-palace/reviews?skip=10&limit=5")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body reviewsBody
	decode(t, rec, &body)
	require.Len(t, body.Reviews, 5)
	assert.Equal(t, "reviewer-0", body.Reviews[0]["reviewer_name"])
	assert.Equal(t, 4.5, body.Reviews[0]["rating"])
	f.AssertExpectations(t)
}

func TestFetchTargetReviews_DefaultsAndEmpty(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchPage", mock.Anything, "quiet-cafe", models.DefaultPagination()).Return(nil, nil)

	rec := serve(t, NewHandlers(f, nil, nil, nil, nil), "/api/v1/targets/quiet-cafe/reviews")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reviews":[]}`, rec.Body.String())
	f.AssertExpectations(t)
}

func TestFetchTargetReviews_InvalidPagination(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"negative skip", "?skip=-1"},
		{"zero limit", "?limit=0"},
		{"non integer", "?limit=ten"},
		{"overflowing window", "?skip=1&limit=" + strconv.Itoa(math.MaxInt)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := new(MockFetcher)
			rec := serve(t, NewHandlers(f, nil, nil, nil, nil), "/api/v1/targets/any/reviews"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			f.AssertNotCalled(t, "FetchPage", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestFetchTargetReviews_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unsupported structure", fmt.Errorf("resolve: %w", scraper.ErrUnsupportedStructure), http.StatusNotFound},
		{"invalid target", fetcher.ErrInvalidTarget, http.StatusBadRequest},
		{"pool closed", pool.ErrPoolClosed, http.StatusServiceUnavailable},
		{"browser fault", errors.New("page crashed"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := new(MockFetcher)
			f.On("FetchPage", mock.Anything, "target", mock.Anything).Return(nil, tt.err)

			rec := serve(t, NewHandlers(f, nil, nil, nil, nil), "/api/v1/targets/target/reviews")

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			decode(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListStoredReviews(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything, models.Pagination{Skip: 0, Limit: 2}).Return(testReviews(t, 2), nil)

	rec := serve(t, NewHandlers(new(MockFetcher), store, nil, nil, nil), "/api/v1/reviews?limit=2")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body reviewsBody
	decode(t, rec, &body)
	assert.Len(t, body.Reviews, 2)
	store.AssertExpectations(t)
}

func TestListStoredReviews_Errors(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		rec := serve(t, NewHandlers(new(MockFetcher), nil, nil, nil, nil), "/api/v1/reviews")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		store := new(MockStore)
		store.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		rec := serve(t, NewHandlers(new(MockFetcher), store, nil, nil, nil), "/api/v1/reviews")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("bad pagination", func(t *testing.T) {
		store := new(MockStore)
		rec := serve(t, NewHandlers(new(MockFetcher), store, nil, nil, nil), "/api/v1/reviews?skip=x")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		store.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}
