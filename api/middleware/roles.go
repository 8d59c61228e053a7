package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/farmlabor-backend/api/responses"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

// RequireRole admits only callers holding one of roles. An empty list admits
// nobody.
func RequireRole(logg *logger.Logger, roles ...enums.UserRole) func(http.Handler) http.Handler {
	roles = slices.Clone(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.UserRole(RoleFromContext(r.Context()))
			if role == "" || !slices.Contains(roles, role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "caller role not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
