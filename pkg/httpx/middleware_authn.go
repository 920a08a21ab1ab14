package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/clubauth/pkg/cryptox"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
)

// AdminTokenMiddleware requires "Authorization: Bearer <token>" matching
// the configured admin token.
func AdminTokenMiddleware(token string) Middleware {
	operator := cryptox.FingerprintToken(token)[:12]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			if !cryptox.TokensEqual(raw, token) {
				log.Warn("admin token rejected")
				writeBearerError(w, "invalid admin token")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyOperator, operator)
			ctx = slogx.WithAttrs(ctx, "operator", operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
