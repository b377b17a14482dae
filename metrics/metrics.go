// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidyavichar"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	QuestionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_created_total",
		Help:      "Questions posted.",
	})

	QuestionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_status_transitions_total",
		Help:      "Question status changes by previous and new status.",
	}, []string{"from", "to"})

	QuestionsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_deleted_total",
		Help:      "Questions soft-deleted.",
	})

	CounterWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "class_counter_write_failures_total",
		Help:      "Best-effort class counter writes that failed.",
	})

	ReconciledClasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciled_classes_total",
		Help:      "Classes whose counters were recomputed by the reconciler.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
