package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BufferHits counts fetches answered from the buffer without a session
	BufferHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_buffer_hits_total",
			Help: "Total number of fetches served entirely from the target buffer",
		},
	)

	// BufferMisses counts fetches that had to run a fill loop
	BufferMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_buffer_misses_total",
			Help: "Total number of fetches that required a fill loop",
		},
	)

	// BufferEvictions counts targets dropped from the buffer cache
	BufferEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_buffer_evictions_total",
			Help: "Total number of target buffers evicted by expiry or capacity",
		},
	)

	// FillSteps counts load-more steps by strategy and result
	FillSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_fill_steps_total",
			Help: "Total number of load-more steps",
		},
		[]string{"strategy", "result"}, // "loaded", "exhausted", "error"
	)

	// ReviewsExtracted counts reviews appended to buffers
	ReviewsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_extracted_total",
			Help: "Total number of reviews appended to target buffers",
		},
		[]string{"strategy"},
	)

	// FetchErrors counts failed fetches by kind
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_fetch_errors_total",
			Help: "Total number of failed review fetches",
		},
		[]string{"kind"}, // "unsupported", "session", "fault"
	)

	// FetchDuration tracks fetch latency by path
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_fetch_duration_seconds",
			Help:    "Duration of review fetches",
			Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"path"}, // "buffer", "fill"
	)

	// PoolSessions tracks pooled sessions by state
	PoolSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review_pool_sessions",
			Help: "Current number of pooled browser sessions",
		},
		[]string{"state"}, // "idle", "in_use"
	)

	// EventsPublished counts extraction events by outcome
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_events_published_total",
			Help: "Total number of extraction events sent to the stream",
		},
		[]string{"outcome"}, // "ok", "error"
	)
)

func SetPoolSessions(idle, inUse int) {
	PoolSessions.WithLabelValues("idle").Set(float64(idle))
	PoolSessions.WithLabelValues("in_use").Set(float64(inUse))
}
