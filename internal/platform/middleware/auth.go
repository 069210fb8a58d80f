// Package middleware carries cross-cutting HTTP concerns: bearer-token
// authentication, request metadata, and device capture for audit trails.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/httputil"
	"hackgate/pkg/requestcontext"
)

// Claims is the access token payload. The identity provider issues tokens;
// this engine only validates and reads them.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and populates the request context with the
// caller's identity and role. Requests without a valid token are rejected.
func Auth(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				return signingKey, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}

			userID, err := id.ParseUserID(claims.Subject)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject"))
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), userID)
			ctx = requestcontext.WithRole(ctx, parseRole(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseRole(raw string) requestcontext.Role {
	switch requestcontext.Role(raw) {
	case requestcontext.RoleAdmin:
		return requestcontext.RoleAdmin
	case requestcontext.RoleSPOC:
		return requestcontext.RoleSPOC
	default:
		return requestcontext.RoleParticipant
	}
}

// RequireRole guards a subtree to callers holding one of the given roles.
func RequireRole(roles ...requestcontext.Role) func(http.Handler) http.Handler {
	allowed := make(map[requestcontext.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[requestcontext.UserRole(r.Context())]; !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
