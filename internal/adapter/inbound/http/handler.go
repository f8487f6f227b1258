package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sentinel-Gate/accessgate/internal/service"
)

// Services are the application services the API serves.
type Services struct {
	Policies *service.PolicyService
	Recorder *service.DecisionRecorder
	Orgs     *service.OrgService
	Gateways GatewayResolver
}

// API routes HTTP requests to the services.
type API struct {
	svc        Services
	logger     *slog.Logger
	jwtSecret  []byte
	keys       *KeyCache
	limiter    *GatewayLimiter
	queue      *service.RecordingQueue
	autoRecord bool
	metrics    *Metrics
	gatherer   prometheus.Gatherer
	health     *HealthChecker
}

// Option is a functional option for configuring API.
type Option func(*API)

// WithLogger sets the base logger. Requests get a child logger carrying request_id.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithJWTSecret sets the HS256 secret for internal routes.
// Without it internal routes accept loopback requests only.
func WithJWTSecret(secret string) Option {
	return func(a *API) {
		a.jwtSecret = []byte(secret)
	}
}

// WithKeyCache caches API key resolutions.
func WithKeyCache(size int, ttl time.Duration) Option {
	return func(a *API) {
		a.keys = NewKeyCache(size, ttl)
	}
}

// WithRateLimit limits each gateway to perSecond requests with the given
// burst. perSecond <= 0 disables the limiter.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond <= 0 {
			a.limiter = nil
			return
		}
		a.limiter = NewGatewayLimiter(perSecond, burst)
	}
}

// WithRecordingQueue enables asynchronous recording of gateway evaluations
// when autoRecord is true.
func WithRecordingQueue(q *service.RecordingQueue, autoRecord bool) Option {
	return func(a *API) {
		a.queue = q
		a.autoRecord = autoRecord && q != nil
	}
}

// WithMetrics records request metrics into m and serves gatherer on /metrics.
func WithMetrics(m *Metrics, gatherer prometheus.Gatherer) Option {
	return func(a *API) {
		a.metrics = m
		a.gatherer = gatherer
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(a *API) {
		a.health = hc
	}
}

// NewAPI creates the API over svc.
func NewAPI(svc Services, opts ...Option) *API {
	a := &API{
		svc:    svc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.limiter != nil && a.metrics != nil {
		a.limiter.onReject = a.metrics.RateLimitedTotal.Inc
	}
	if a.health == nil {
		a.health = NewHealthChecker(nil, nil, a.queue, "")
	}
	return a
}

// Handler builds the router.
//
// Middleware order (outermost first): metrics, request ID, recovery, then
// per-group authentication and rate limiting.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	if a.metrics != nil {
		r.Use(MetricsMiddleware(a.metrics))
	}
	r.Use(RequestIDMiddleware(a.logger))
	r.Use(RecoverMiddleware)

	r.Method(http.MethodGet, "/health", a.health.Handler())
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/gateway", func(r chi.Router) {
		r.Use(GatewayAuth(a.svc.Gateways, a.keys))
		if a.limiter != nil {
			r.Use(a.limiter.Middleware)
		}
		r.Post("/evaluate", a.handleGatewayEvaluate)
		r.Post("/telemetry", a.handleGatewayTelemetry)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(AdminAuth(a.jwtSecret))

		r.Post("/orgs", a.handleCreateOrganization)
		r.Route("/orgs/{orgId}", func(r chi.Router) {
			r.Use(a.orgScope)
			r.Get("/", a.handleGetOrganization)
			r.Patch("/", a.handleRenameOrganization)
			r.Get("/policies", a.handleListPolicies)
			r.Post("/policies", a.handleCreatePolicy)
			r.Post("/evaluate", a.handleEvaluate)
			r.Post("/gateways", a.handleRegisterGateway)
			r.Get("/sessions", a.handleListSessions)
			r.Get("/audit-logs", a.handleListAuditLogs)
		})

		r.Post("/sessions/record-decision", a.handleRecordDecision)
		r.Post("/sessions/end", a.handleEndSession)
		r.Get("/sessions/{sessionId}", a.handleGetSession)
		r.Get("/sessions/{sessionId}/hits", a.handleListPolicyHits)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}
