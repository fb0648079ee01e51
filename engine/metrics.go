// Prometheus metrics: worker-pool gauges plus request counters/
// histograms, registered against the default registry so a deployment
// only needs to mount promhttp.Handler() somewhere to expose them.
package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	schedulerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pode",
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Number of tasks waiting in the scheduler's submit channel.",
	})
	schedulerActiveTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pode",
		Subsystem: "scheduler",
		Name:      "active_tasks",
		Help:      "Number of tasks currently executing on the worker pool.",
	})
	schedulerTasksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pode",
		Subsystem: "scheduler",
		Name:      "tasks_total",
		Help:      "Total tasks submitted to the worker pool.",
	})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pode",
		Subsystem: "request",
		Name:      "total",
		Help:      "Total requests processed, labeled by endpoint and status class.",
	}, []string{"endpoint", "status_class"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pode",
		Subsystem: "request",
		Name:      "duration_seconds",
		Help:      "Request pipeline duration in seconds, labeled by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	authFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pode",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Authentication failures, labeled by auth method name.",
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(
		schedulerQueueDepth, schedulerActiveTasks, schedulerTasksTotal,
		requestsTotal, requestDuration, authFailuresTotal,
	)
}

// observeRequest records one completed pipeline run. Called from
// RunPipeline's deferred cleanup so every exit path (success, handler
// error, panic, auth failure) is counted exactly once.
func observeRequest(rc *RequestContext, start time.Time, status int) {
	endpoint := endpointNameOf(rc)
	requestsTotal.WithLabelValues(endpoint, statusClass(status)).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
