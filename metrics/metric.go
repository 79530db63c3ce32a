package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "blockdb"

var (
	Registry = prometheus.NewRegistry()

	LockAcquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "acquisitions_total",
		Help:      "Number of lock acquisition attempts by result.",
	}, []string{"result"})

	LockWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for a block lock.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
	})

	Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "operations_total",
		Help:      "Number of remote operations handled by operation and status.",
	}, []string{"operation", "status"})

	OperationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "operation_seconds",
		Help:      "Latency of remote operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "rate_limited_total",
		Help:      "Number of requests rejected by the rate limiter.",
	})

	HierarchyRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hierarchy",
		Name:      "materializations_total",
		Help:      "Number of hierarchy materializations by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		LockAcquisitions,
		LockWaitSeconds,
		Operations,
		OperationSeconds,
		RateLimited,
		HierarchyRuns,
	)
}
