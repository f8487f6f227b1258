// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the request-scoped logger
// carrying request_id.
type LoggerKey struct{}

// GatewayKey is the context key type for the authenticated gateway identity.
type GatewayKey struct{}

// ClaimsKey is the context key type for verified admin token claims.
type ClaimsKey struct{}
