package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	PipelineRuns        = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_pipeline_runs_total", Help: "Optimization pipeline runs started"})
	PipelineFailures    = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_pipeline_failures_total", Help: "Optimization pipeline runs that recorded an error step"})
	AdviceCreated       = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_advice_created_total", Help: "Advice records created"})
	AdviceReviewed      = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_advice_reviewed_total", Help: "Advice records approved or rejected"})
	AdviceExecuted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_advice_executed_total", Help: "Advice records executed"})
	BackendCalls        = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_backend_calls_total", Help: "Advisory backend calls attempted"})
	BackendFailures     = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_backend_failures_total", Help: "Advisory backend calls that failed or timed out"})
	AcquisitionFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_context_acquisition_failures_total", Help: "External context fetches that degraded"})
	RateLimitRejects    = prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_rate_limit_rejects_total", Help: "Advisory calls rejected by the rate limiter"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			PipelineRuns,
			PipelineFailures,
			AdviceCreated,
			AdviceReviewed,
			AdviceExecuted,
			BackendCalls,
			BackendFailures,
			AcquisitionFailures,
			RateLimitRejects,
		)
	})
	return promhttp.Handler()
}
