package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Sentinel-Gate/accessgate/internal/ctxkey"
	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Claims is the payload of an admin token.
type Claims struct {
	OrgID string      `json:"orgId"`
	Role  tenant.Role `json:"role"`
	jwt.RegisteredClaims
}

// CanAccess reports whether the token may address orgID.
func (c *Claims) CanAccess(orgID tenant.OrgID) bool {
	return c.Role == tenant.RoleSuperAdmin || tenant.OrgID(c.OrgID) == orgID
}

// localClaims are attached to loopback requests when no secret is configured.
var localClaims = &Claims{
	Role:             tenant.RoleSuperAdmin,
	RegisteredClaims: jwt.RegisteredClaims{Subject: "localhost"},
}

// ClaimsFromContext returns the verified admin claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxkey.ClaimsKey{}).(*Claims)
	return c, ok
}

// SignToken issues an HS256 admin token valid for ttl.
func SignToken(secret []byte, subject string, orgID tenant.OrgID, role tenant.Role, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fault.Validation("signing secret is required")
	}
	if !role.Valid() {
		return "", fault.Validation("unknown role %q", role)
	}
	now := time.Now()
	claims := Claims{
		OrgID: string(orgID),
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken verifies an HS256 token and returns its claims.
func parseToken(secret []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fault.Unauthorized("invalid or expired token")
	}
	if !claims.Role.Valid() {
		return nil, fault.Unauthorized("token carries unknown role %q", claims.Role)
	}
	return claims, nil
}

// AdminAuth verifies bearer tokens on internal routes. With an empty secret
// only loopback requests are accepted, as SUPER_ADMIN.
func AdminAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var claims *Claims
			if len(secret) == 0 {
				if !isLocalhost(r) {
					respondError(w, r, fault.Forbidden("internal API requires localhost access"))
					return
				}
				claims = localClaims
			} else {
				raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
				if !ok || strings.TrimSpace(raw) == "" {
					respondError(w, r, fault.Unauthorized("missing bearer token"))
					return
				}
				var err error
				if claims, err = parseToken(secret, strings.TrimSpace(raw)); err != nil {
					respondError(w, r, err)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxkey.ClaimsKey{}, claims)
			logger := LoggerFromContext(ctx).With("subject", claims.Subject, "role", claims.Role)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authorizeOrg fails with ErrForbidden when the caller's token may not address orgID.
func authorizeOrg(ctx context.Context, orgID tenant.OrgID) error {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return fault.Unauthorized("missing credentials")
	}
	if !claims.CanAccess(orgID) {
		return errForbiddenOrg(string(orgID))
	}
	return nil
}
