// Package http exposes accessgate over HTTP.
//
// # Endpoints
//
//	GET  /health                                  component status
//	GET  /metrics                                 Prometheus metrics
//	POST /api/gateway/evaluate                    evaluate for the calling gateway's org
//	POST /api/gateway/telemetry                   record a decision for the calling gateway
//	POST /internal/orgs                           provision an organization
//	GET  /internal/orgs/{orgId}                   read an organization
//	PATCH /internal/orgs/{orgId}                  rename an organization
//	GET  /internal/orgs/{orgId}/policies          list policies in evaluation order
//	POST /internal/orgs/{orgId}/policies          create a policy
//	POST /internal/orgs/{orgId}/evaluate          evaluate an access request
//	POST /internal/orgs/{orgId}/gateways          register a gateway
//	GET  /internal/orgs/{orgId}/sessions          list sessions, newest first
//	GET  /internal/orgs/{orgId}/audit-logs        list audit logs, newest first
//	POST /internal/sessions/record-decision       record a decision
//	POST /internal/sessions/end                   end a session
//	GET  /internal/sessions/{sessionId}           read a session
//	GET  /internal/sessions/{sessionId}/hits      list a session's policy hits
//
// # Authentication
//
// Gateway routes require an X-API-Key header. Keys are resolved to an
// organization and gateway, cached in a bounded LRU, and rate limited per
// gateway.
//
// Internal routes require an HS256 bearer token carrying sub, orgId and role
// claims. Tokens whose role is not SUPER_ADMIN may only address their own
// organization. When no signing secret is configured the internal routes
// accept loopback requests only.
//
// # Errors
//
// Errors are returned as {"error":{"message":...,"code":...}} with the
// status derived from the fault kind: 400 VALIDATION_ERROR, 401
// UNAUTHORIZED, 403 FORBIDDEN, 404 NOT_FOUND, 429 RATE_LIMITED, 503
// STORE_UNAVAILABLE and 500 INTERNAL_ERROR.
package http
