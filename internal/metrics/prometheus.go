package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AssessmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskboard_assessment_duration_seconds",
			Help:    "Assessment pipeline duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"stage"},
	)

	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskboard_assessments_total",
			Help: "Total number of assessments by outcome label",
		},
		[]string{"label"},
	)

	RiskProbability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskboard_risk_probability",
			Help:    "Predicted high-risk probabilities",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	PipelineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskboard_pipeline_errors_total",
			Help: "Assessment failures by error kind",
		},
		[]string{"kind"},
	)

	AdvisorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskboard_advisor_requests_total",
			Help: "Wellness advisor requests by outcome",
		},
		[]string{"status"},
	)

	AdvisorDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskboard_advisor_duration_seconds",
			Help:    "Wellness advisor call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskboard_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskboard_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskboard_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	AssetsLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskboard_assets_loaded",
			Help: "Artifacts loaded at start-up, labelled by kind and content hash",
		},
		[]string{"kind", "sha256"},
	)
)

func Init() {
	prometheus.MustRegister(AssessmentDuration)
	prometheus.MustRegister(AssessmentsTotal)
	prometheus.MustRegister(RiskProbability)
	prometheus.MustRegister(PipelineErrors)
	prometheus.MustRegister(AdvisorRequests)
	prometheus.MustRegister(AdvisorDuration)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(AssetsLoaded)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
