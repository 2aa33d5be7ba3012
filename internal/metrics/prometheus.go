package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treaty_chat_turn_duration_seconds",
			Help:    "End-to-end turn processing duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treaty_chat_turns_total",
			Help: "Total number of conversation turns processed",
		},
		[]string{"status"},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treaty_chat_retrieved_chunks",
			Help:    "Number of chunks retrieved per turn",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "treaty_chat_active_sessions",
			Help: "Number of sessions held in memory",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treaty_chat_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treaty_chat_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treaty_chat_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treaty_ingest_documents_total",
			Help: "Total documents ingested",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treaty_ingest_chunks_total",
			Help: "Total chunks written to the vector index",
		},
	)

	IntegrityWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treaty_ingest_integrity_warnings_total",
			Help: "Chunks dropped because no block span contained their start offset",
		},
	)
)

func Init() {
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(TurnsTotal)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(IntegrityWarnings)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
