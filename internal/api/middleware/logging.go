package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/boardgame-groups/internal/api/apierr"
	"github.com/mcoot/boardgame-groups/internal/middleware"
)

// RequestIDHeader is echoed on every API response
const RequestIDHeader = middleware.RequestIDHeader

// Logging writes one access-log record per API request. It must wrap
// Recovery so that recovered panics are logged with their 500 status.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}

// Recovery answers a panicking handler with the standard INTERNAL_ERROR body
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
