package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	IntakeCounter       = prometheus.NewCounter(prometheus.CounterOpts{Name: "posts_created_total", Help: "Total post jobs created via intake"})
	RateLimitRejects    = prometheus.NewCounter(prometheus.CounterOpts{Name: "posts_rate_limit_rejects_total", Help: "Intake requests rejected by rate limiter"})
	PublishSuccess      = prometheus.NewCounter(prometheus.CounterOpts{Name: "posts_published_total", Help: "Publishes that completed successfully"})
	PublishFailures     = prometheus.NewCounter(prometheus.CounterOpts{Name: "posts_publish_failed_total", Help: "Publishes that completed with a failure log"})
	UnknownPlatform     = prometheus.NewCounter(prometheus.CounterOpts{Name: "posts_unknown_platform_total", Help: "Jobs resolved to no registered adapter"})
	ClaimsLost          = prometheus.NewCounter(prometheus.CounterOpts{Name: "posts_claims_lost_total", Help: "Claims lost to a concurrent cycle"})
	Reclaimed           = prometheus.NewCounter(prometheus.CounterOpts{Name: "posts_reclaimed_total", Help: "Stuck posting jobs returned to pending"})
	DueGauge            = prometheus.NewGauge(prometheus.GaugeOpts{Name: "posts_due", Help: "Due jobs seen in the last polling cycle"})
	InFlightGauge       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "posts_inflight", Help: "Publish executions currently running"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			IntakeCounter,
			RateLimitRejects,
			PublishSuccess,
			PublishFailures,
			UnknownPlatform,
			ClaimsLost,
			Reclaimed,
			DueGauge,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}
