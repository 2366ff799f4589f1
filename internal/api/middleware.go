/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * authentication against the identity provider and role gating for the
 * client and admin route groups.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - internal/identity: Session token validation.
 */

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/unitymfi/portal-service/internal/identity"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	identityIDKey contextKey = "identityID"
	roleKey       contextKey = "role"
)

// AuthMiddleware validates the bearer token and stores the identity id and
// role in the request context.
func AuthMiddleware(idp *identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := idp.CurrentUser(tokenString)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityIDKey, claims.Subject)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose session carries a
// different role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got, ok := r.Context().Value(roleKey).(string); !ok || got != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentityID retrieves the authenticated identity id from the request
// context. Handlers should use this to resolve the caller's account.
func GetIdentityID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityIDKey).(string)
	return id, ok
}
