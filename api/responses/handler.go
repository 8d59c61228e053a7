package responses

import (
	"net/http"

	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

// HandlerFunc computes a response body or an error for a request.
type HandlerFunc func(r *http.Request) (any, error)

// Handle adapts fn to net/http: a nil error becomes a 200 success envelope,
// anything else goes through WriteError.
func Handle(logg *logger.Logger, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fn(r)
		if err != nil {
			WriteError(r.Context(), logg, w, err)
			return
		}
		WriteSuccess(w, data)
	}
}
