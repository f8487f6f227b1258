package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal not initialized")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration not initialized")
	}
	if m.Decisions == nil {
		t.Error("Decisions not initialized")
	}
	if m.PolicyCache == nil {
		t.Error("PolicyCache not initialized")
	}
	if m.RateLimitedTotal == nil {
		t.Error("RateLimitedTotal not initialized")
	}
	if m.RecordEnqueueDrops == nil {
		t.Error("RecordEnqueueDrops not initialized")
	}
}

func TestMetrics_ObserveDecision(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveDecision(policy.Result{Decision: policy.EffectAllow, MatchedPolicyIDs: []string{"p-1"}})
	m.ObserveDecision(policy.Result{Decision: policy.EffectDeny, Reason: policy.ReasonNoMatch})
	m.ObserveDecision(policy.Result{Decision: policy.EffectDeny, Reason: policy.ReasonNoMatch})

	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("ALLOW", "true")); got != 1 {
		t.Errorf("ALLOW/true = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("DENY", "false")); got != 2 {
		t.Errorf("DENY/false = %v, want 2", got)
	}
}

func TestMetrics_CacheObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	var obs service.CacheObserver = m

	obs.ObserveCache("miss")
	obs.ObserveCache("hit")
	obs.ObserveCache("hit")

	if got := testutil.ToFloat64(m.PolicyCache.WithLabelValues("hit")); got != 2 {
		t.Errorf("hit = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PolicyCache.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v, want 1", got)
	}
}

func TestMetrics_RegisterQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	q := service.NewRecordingQueue(&stubRecorder{}, discardLogger(), service.WithQueueSize(5), service.WithQueueSendTimeout(0))
	m.RegisterQueue(q)

	for i := 0; i < 7; i++ {
		q.Enqueue(service.RecordInput{OrgID: "acme", UserID: "u", PolicyID: "p"})
	}

	expected := `
# HELP accessgate_recording_queue_depth Decision records waiting to be written
# TYPE accessgate_recording_queue_depth gauge
accessgate_recording_queue_depth 5
# HELP accessgate_recording_queue_dropped_total Decision records dropped on a full queue
# TYPE accessgate_recording_queue_dropped_total counter
accessgate_recording_queue_dropped_total 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"accessgate_recording_queue_depth", "accessgate_recording_queue_dropped_total"); err != nil {
		t.Error(err)
	}
}

func TestMetrics_EndpointAndRateLimitCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := newFixture(t).handler(WithMetrics(m, reg), WithRateLimit(0.001, 1))

	for i := 0; i < 2; i++ {
		do(t, h, http.MethodPost, "/api/gateway/evaluate", accessBody("ENGINEER", "US", policy.TrustHigh), apiKey(acmeKey)...)
	}
	if got := testutil.ToFloat64(m.RateLimitedTotal); got != 1 {
		t.Errorf("rate_limited_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("DENY", "false")); got != 1 {
		t.Errorf("decisions DENY/false = %v, want 1", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "accessgate_requests_total") {
		t.Error("/metrics output missing accessgate_requests_total")
	}
}
