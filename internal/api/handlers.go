package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/review-scraper/internal/fetcher"
	"github.com/maltedev/review-scraper/internal/models"
	"github.com/maltedev/review-scraper/internal/pool"
	"github.com/maltedev/review-scraper/internal/scraper"
)

type ReviewFetcher interface {
	FetchPage(ctx context.Context, target string, p models.Pagination) ([]models.Review, error)
}

type ReviewStore interface {
	List(ctx context.Context, p models.Pagination) ([]models.Review, error)
}

type PoolStats interface {
	Stats() pool.Stats
}

// TargetBuffers exposes the buffered targets for health and eviction.
type TargetBuffers interface {
	Targets() int
	Remove(target string) bool
}

type Handlers struct {
	fetcher  ReviewFetcher
	store    ReviewStore
	sessions PoolStats
	buffers  TargetBuffers
	logger   *slog.Logger
}

// NewHandlers wires the HTTP surface. store, sessions and buffers may be
// nil; the endpoints that need them then answer 503.
func NewHandlers(f ReviewFetcher, store ReviewStore, sessions PoolStats, buffers TargetBuffers, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		fetcher:  f,
		store:    store,
		sessions: sessions,
		buffers:  buffers,
		logger:   logger.With("component", "api"),
	}
}

type reviewsResponse struct {
	Reviews []models.Review `json:"reviews"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}
	if h.sessions != nil {
		health["pool"] = h.sessions.Stats()
	}
	if h.buffers != nil {
		health["buffered_targets"] = h.buffers.Targets()
	}
	h.respondJSON(w, http.StatusOK, health)
}

// EvictTarget drops the buffered reviews of a target so the next request
// extracts them again.
func (h *Handlers) EvictTarget(w http.ResponseWriter, r *http.Request) {
	if h.buffers == nil {
		h.respondError(w, http.StatusServiceUnavailable, "target buffers not configured")
		return
	}

	target := chi.URLParam(r, "target")
	if !h.buffers.Remove(target) {
		h.respondError(w, http.StatusNotFound, "target not buffered")
		return
	}

	h.logger.Info("target buffer evicted", "target", target)
	w.WriteHeader(http.StatusNoContent)
}

// FetchTargetReviews serves a window of live reviews for the target in
// the URL path.
func (h *Handlers) FetchTargetReviews(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")

	p, err := models.ParsePagination(r.URL.Query().Get("skip"), r.URL.Query().Get("limit"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := h.fetcher.FetchPage(r.Context(), target, p)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to fetch reviews", "target", target, "skip", p.Skip, "limit", p.Limit, "error", err)
		}
		h.respondError(w, status, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, reviewsResponse{Reviews: nonNil(reviews)})
}

// ListStoredReviews pages through imported reviews, newest first.
func (h *Handlers) ListStoredReviews(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "review store not configured")
		return
	}

	p, err := models.ParsePagination(r.URL.Query().Get("skip"), r.URL.Query().Get("limit"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := h.store.List(r.Context(), p)
	if err != nil {
		h.logger.Error("failed to list reviews", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}

	h.respondJSON(w, http.StatusOK, reviewsResponse{Reviews: nonNil(reviews)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPagination), errors.Is(err, fetcher.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, scraper.ErrUnsupportedStructure):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func nonNil(reviews []models.Review) []models.Review {
	if reviews == nil {
		return []models.Review{}
	}
	return reviews
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
