package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors for the toolkit. They register on the default registry at
// init; the daemon exposes them over /metrics.
var (
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yct",
		Name:      "api_requests_total",
		Help:      "Compute API calls by operation and HTTP status code.",
	}, []string{"op", "code"})

	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yct",
		Name:      "api_retries_total",
		Help:      "Transient API failures that were retried, by operation.",
	}, []string{"op"})

	OperationsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yct",
		Name:      "operations_issued_total",
		Help:      "Provider operations issued, by kind and instance.",
	}, []string{"kind", "instance"})

	OperationPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yct",
		Name:      "operation_polls_total",
		Help:      "Status polls made while waiting on operations.",
	})

	OperationWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "yct",
		Name:      "operation_wait_seconds",
		Help:      "Time spent waiting for an operation, by kind.",
		Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"kind"})

	SnapshotsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yct",
		Name:      "snapshots_pruned_total",
		Help:      "Snapshots deleted by retention pruning.",
	})

	QuotaErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yct",
		Name:      "quota_errors_total",
		Help:      "Snapshot creates rejected by the folder quota.",
	})

	RunsInProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "yct",
		Name:      "run_in_progress",
		Help:      "Whether a scheduled run is currently executing, by kind.",
	}, []string{"kind"})
)

// RegisterMetrics registers the Prometheus handler on the provided mux.
func RegisterMetrics(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
