package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/hugh/turnout-tracker/internal/api/dto"
)

// Recovery turns panics into a 500 and logs the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, dto.KindInternal, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
