package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrasql_classifications_total",
			Help: "Total number of intent classifications by detected intent.",
		},
		[]string{"intent"},
	)
	classificationMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "terrasql_classification_misses_total",
			Help: "Total number of texts that matched no intent.",
		},
	)
	gateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrasql_gate_rejections_total",
			Help: "Total number of statements rejected by the execution gate, by reason.",
		},
		[]string{"reason"},
	)
	sessionsStagedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrasql_sessions_staged_total",
			Help: "Total number of pending sessions staged, by kind.",
		},
		[]string{"kind"},
	)
	sessionsFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrasql_sessions_finalized_total",
			Help: "Total number of sessions finalized, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "terrasql_sessions_expired_total",
			Help: "Total number of pending sessions evicted by the TTL sweeper.",
		},
	)
	sqlExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrasql_sql_executions_total",
			Help: "Total number of admitted SQL executions, by result.",
		},
		[]string{"result"},
	)
	sqlExecutionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "terrasql_sql_execution_latency_ms",
			Help:    "Latency of admitted SQL executions in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		classificationsTotal,
		classificationMissesTotal,
		gateRejectionsTotal,
		sessionsStagedTotal,
		sessionsFinalizedTotal,
		sessionsExpiredTotal,
		sqlExecutionsTotal,
		sqlExecutionLatencyMs,
	)
}

func ObserveClassification(intent string) {
	if intent == "" {
		classificationMissesTotal.Inc()
		return
	}
	classificationsTotal.WithLabelValues(intent).Inc()
}

func ObserveGateRejection(reason string) {
	gateRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveSessionStaged(kind string) {
	sessionsStagedTotal.WithLabelValues(kind).Inc()
}

func ObserveSessionFinalized(kind, outcome string) {
	sessionsFinalizedTotal.WithLabelValues(kind, outcome).Inc()
}

func ObserveSessionsExpired(count int) {
	if count > 0 {
		sessionsExpiredTotal.Add(float64(count))
	}
}

func ObserveSQLExecution(result string, elapsed time.Duration) {
	sqlExecutionsTotal.WithLabelValues(result).Inc()
	sqlExecutionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}
