package middleware

import (
	"context"
	"net/http"
	"strings"

	"city-report/backend/internal/security"
)

const bearerPrefix = "bearer "

// RevocationChecker answers whether a token's jti is still registered.
// Absence from the session registry means the token is revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti, tokenType string) (bool, error)
}

// AuthBearer validates the Authorization Bearer (access) token, checks the
// session registry for the token's jti, and puts the account identity into
// the request context. Mounted only on protected routes. A token that fails
// signature, expiry, or the revocation check yields the same 401.
func AuthBearer(tokens *security.TokenProvider, revocations RevocationChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			accountID, jti, err := tokens.ValidateAccess(token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			revoked, err := revocations.IsRevoked(r.Context(), jti, security.TokenTypeAccess)
			if err != nil || revoked {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			ctx := WithIdentity(r.Context(), accountID, jti)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or
// "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
