package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

// Metrics holds all Prometheus metrics for accessgate.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	Decisions          *prometheus.CounterVec
	PolicyCache        *prometheus.CounterVec
	RateLimitedTotal   prometheus.Counter
	RecordEnqueueDrops prometheus.Counter

	reg prometheus.Registerer
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		reg: reg,
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accessgate",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "accessgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Decisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accessgate",
				Name:      "decisions_total",
				Help:      "Policy decisions by outcome",
			},
			[]string{"decision", "matched"}, // decision=ALLOW/DENY, matched=true/false
		),
		PolicyCache: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accessgate",
				Name:      "policy_cache_lookups_total",
				Help:      "Policy cache lookups by result",
			},
			[]string{"result"}, // result=hit/miss/error
		),
		RateLimitedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "accessgate",
				Name:      "rate_limited_total",
				Help:      "Gateway requests rejected by the rate limiter",
			},
		),
		RecordEnqueueDrops: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "accessgate",
				Name:      "record_enqueue_drops_total",
				Help:      "Decision records not accepted by the recording queue",
			},
		),
	}
}

// ObserveCache implements service.CacheObserver.
func (m *Metrics) ObserveCache(result string) {
	m.PolicyCache.WithLabelValues(result).Inc()
}

// ObserveDecision counts one evaluation result.
func (m *Metrics) ObserveDecision(r policy.Result) {
	matched := "false"
	if r.Matched() {
		matched = "true"
	}
	m.Decisions.WithLabelValues(string(r.Decision), matched).Inc()
}

// RegisterQueue exports the recording queue's depth and counters.
func (m *Metrics) RegisterQueue(q *service.RecordingQueue) {
	f := promauto.With(m.reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "accessgate",
		Name:      "recording_queue_depth",
		Help:      "Decision records waiting to be written",
	}, func() float64 { return float64(q.Depth()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "accessgate",
		Name:      "recording_queue_capacity",
		Help:      "Recording queue buffer size",
	}, func() float64 { return float64(q.Capacity()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "accessgate",
		Name:      "recording_queue_dropped_total",
		Help:      "Decision records dropped on a full queue",
	}, func() float64 { return float64(q.Dropped()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "accessgate",
		Name:      "recording_queue_failed_total",
		Help:      "Decision records the store rejected",
	}, func() float64 { return float64(q.Failed()) })
}

var _ service.CacheObserver = (*Metrics)(nil)
