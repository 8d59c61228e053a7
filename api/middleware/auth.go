package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/farmlabor-backend/api/responses"
	pkgAuth "github.com/angelmondragon/farmlabor-backend/pkg/auth"
	"github.com/angelmondragon/farmlabor-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
// A broken JWT config fails every request with 500 rather than letting any
// through.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	tokens, tokensErr := pkgAuth.NewTokens(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokensErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, tokensErr, "auth misconfigured"))
				return
			}
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			scheme, token, found := strings.Cut(raw, " ")
			if !found || !strings.EqualFold(scheme, "bearer") {
				token = raw
			}
			token = strings.TrimSpace(token)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			ctx = WithRole(ctx, string(claims.Role))

			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
