package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/accueilpro/accueilpro/pkg/auth"
	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/response"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}

// RequireJWT accepts only access tokens. With roles, the token role must be one of them.
func RequireJWT(secret string, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				response.Unauthorized(w, "missing bearer token")
				return
			}
			claims, err := auth.ParseAs(raw, secret, auth.TokenAccess)
			if err != nil {
				response.InvalidToken(w, "invalid authorization token")
				return
			}
			if len(roles) > 0 && !hasRole(claims.Role, roles) {
				response.Forbidden(w, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasRole(role string, allowed []string) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

func Claims(r *http.Request) *auth.Claims {
	v, _ := r.Context().Value(CtxClaims).(*auth.Claims)
	return v
}
