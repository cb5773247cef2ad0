package jwt

import (
	"context"
	"net/http"
	"strings"

	"slashchat/internal/pkg/logx"
)

// contextKey keeps the claims context key private to this package.
type contextKey string

const (
	// ContextSessionClaimsKey is the key under which parsed SessionClaims are
	// stored in the request context.
	ContextSessionClaimsKey contextKey = "session_claims"
)

// IdentityExtractorMiddleware extracts and validates a session token from the
// Authorization header and injects the claims into the request context. It
// never interrupts the request: a missing or invalid token simply leaves the
// request anonymous.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				next.ServeHTTP(w, r)
				return
			}
			tokenString := parts[1]

			claims, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Invalid or expired session token provided, treating as anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextSessionClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext extracts the authenticated SessionClaims from the
// request context. A nil return means the request is anonymous.
func GetClaimsFromContext(r *http.Request) *SessionClaims {
	claims, ok := r.Context().Value(ContextSessionClaimsKey).(*SessionClaims)

	if !ok {
		return nil
	}

	return claims
}
