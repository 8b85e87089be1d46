package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TrainingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakenews_training_runs_total",
			Help: "Total number of training runs by outcome",
		},
		[]string{"status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fakenews_stage_duration_seconds",
			Help:    "Training stage duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	CandidateAccuracy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fakenews_candidate_test_accuracy",
			Help: "Held-out accuracy of the tuned candidate in the latest run",
		},
		[]string{"candidate"},
	)

	CandidateCVScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fakenews_candidate_cv_score",
			Help: "Mean cross-validation accuracy of the best configuration in the latest run",
		},
		[]string{"candidate"},
	)

	SearchFitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakenews_search_fits_total",
			Help: "Total cross-validation fits by candidate and outcome",
		},
		[]string{"candidate", "status"},
	)

	VocabularySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fakenews_vocabulary_size",
			Help: "Number of terms in the fitted vocabulary",
		},
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakenews_predictions_total",
			Help: "Total predictions served by label",
		},
		[]string{"label"},
	)

	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fakenews_prediction_duration_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakenews_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakenews_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fakenews_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fakenews_rate_limited_requests_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)

func Init() {
	prometheus.MustRegister(TrainingRunsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(CandidateAccuracy)
	prometheus.MustRegister(CandidateCVScore)
	prometheus.MustRegister(SearchFitsTotal)
	prometheus.MustRegister(VocabularySize)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(PredictionDuration)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(RateLimitedTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
