package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/review-scraper/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeReviewsExtracted is published after a fill loop grew a target buffer
	EventTypeReviewsExtracted EventType = "REVIEWS_EXTRACTED"

	DefaultStream = "stream:reviews"
)

// ReviewsExtractedPayload describes one completed fill loop
type ReviewsExtractedPayload struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	Target     string    `json:"target"`
	Strategy   string    `json:"strategy"`
	Appended   int       `json:"appended"`
	BufferSize int       `json:"buffer_size"`
	Steps      int       `json:"steps"`
	Exhausted  bool      `json:"exhausted"`
	Source     string    `json:"source"`
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher writes extraction events to a Redis stream
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishReviewsExtracted fills in missing metadata and appends the event
// to the stream.
func (p *Publisher) PublishReviewsExtracted(ctx context.Context, payload *ReviewsExtractedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeReviewsExtracted)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	if payload.Source == "" {
		payload.Source = "review-scraper"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"type":         payload.EventType,
			"timestamp":    fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
			"event_id":     payload.EventID,
			"aggregate_id": payload.Target,
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"target", payload.Target,
		"stream_id", id,
	)

	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
