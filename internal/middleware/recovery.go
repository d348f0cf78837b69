package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicHandler writes the response for a request whose handler panicked
type PanicHandler func(w http.ResponseWriter, r *http.Request, err any)

// Recovery turns handler panics into an error response. If the handler had
// already started writing (an event stream, say), the status line is gone and
// the connection is simply left to close after the panic is logged.
func Recovery(logger *slog.Logger, handler PanicHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked, ok := w.(*ResponseWriter)
			if !ok {
				tracked = &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
			}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					slog.Any("error", rec),
					slog.String("request_id", RequestID(r.Context())),
					slog.String("route", r.Method+" "+r.URL.Path),
					slog.Bool("response_started", tracked.Written()),
					slog.String("stack", string(debug.Stack())),
				)
				if tracked.Written() {
					return
				}
				handler(tracked, r, rec)
			}()

			next.ServeHTTP(tracked, r)
		})
	}
}
