package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelqueue",
		Name:      "operations_total",
		Help:      "Pipeline invocations by operation and outcome.",
	}, []string{"operation", "outcome"})

	assetsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reelqueue",
		Name:      "assets_deleted_total",
		Help:      "Hosted media assets removed (or already absent) during reap passes.",
	})

	externalCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reelqueue",
		Name:      "external_call_seconds",
		Help:      "Latency of outbound calls to external collaborators.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"collaborator", "outcome"})
)

func init() {
	registry.MustRegister(
		operations,
		assetsDeleted,
		externalCalls,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
}

// ObserveOperation counts one invocation of a pipeline operation.
func ObserveOperation(operation, outcome string) {
	operations.WithLabelValues(operation, outcome).Inc()
}

func ObserveAssetsDeleted(n int) {
	if n > 0 {
		assetsDeleted.Add(float64(n))
	}
}

// ObserveExternalCall records an outbound call. outcome is "ok" or "error".
func ObserveExternalCall(collaborator, outcome string, elapsed time.Duration) {
	externalCalls.WithLabelValues(collaborator, outcome).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func Gatherer() prometheus.Gatherer {
	return registry
}
