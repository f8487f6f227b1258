package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sentinel-Gate/accessgate/internal/ctxkey"
	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// APIKeyHeader carries the gateway credential.
const APIKeyHeader = "X-API-Key"

// GatewayResolver maps an API key to the gateway that owns it.
type GatewayResolver interface {
	Resolve(ctx context.Context, apiKey string) (tenant.GatewayIdentity, error)
}

// GatewayFromContext returns the authenticated gateway identity.
func GatewayFromContext(ctx context.Context) (tenant.GatewayIdentity, bool) {
	id, ok := ctx.Value(ctxkey.GatewayKey{}).(tenant.GatewayIdentity)
	return id, ok
}

// GatewayAuth authenticates X-API-Key requests. Resolutions are cached in
// keys when it is non-nil. Unknown keys are answered with 401, store
// failures with 503.
func GatewayAuth(resolver GatewayResolver, keys *KeyCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if apiKey == "" {
				respondError(w, r, fault.Unauthorized("missing API key"))
				return
			}

			identity, cached := tenant.GatewayIdentity{}, false
			if keys != nil {
				identity, cached = keys.Get(apiKey)
			}
			if !cached {
				var err error
				identity, err = resolver.Resolve(r.Context(), apiKey)
				if err != nil {
					if errors.Is(err, fault.ErrNotFound) {
						err = fault.Unauthorized("invalid API key")
					}
					respondError(w, r, err)
					return
				}
				if keys != nil {
					keys.Put(apiKey, identity)
				}
			}

			ctx := context.WithValue(r.Context(), ctxkey.GatewayKey{}, identity)
			logger := LoggerFromContext(ctx).With("org_id", identity.OrgID, "gateway_id", identity.GatewayID)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GatewayLimiter is a token bucket per gateway.
type GatewayLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*gatewayBucket
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	lastScan time.Time
	now      func() time.Time
	onReject func()
}

type gatewayBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewGatewayLimiter allows perSecond requests per gateway with the given burst.
func NewGatewayLimiter(perSecond float64, burst int) *GatewayLimiter {
	if burst < 1 {
		burst = 1
	}
	return &GatewayLimiter{
		buckets: make(map[string]*gatewayBucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether the gateway may make a request now.
func (l *GatewayLimiter) Allow(id tenant.GatewayIdentity) bool {
	key := string(id.OrgID) + "/" + id.GatewayID
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &gatewayBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Size returns the number of tracked gateways.
func (l *GatewayLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweepLocked drops idle buckets at most once per idleTTL.
func (l *GatewayLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastScan) < l.idleTTL {
		return
	}
	l.lastScan = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}

// Middleware rejects requests over the gateway's budget with 429.
// It must run after GatewayAuth.
func (l *GatewayLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GatewayFromContext(r.Context())
		if ok && !l.Allow(id) {
			if l.onReject != nil {
				l.onReject()
			}
			w.Header().Set("Retry-After", "1")
			respondMessage(w, r, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
