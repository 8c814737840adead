package middleware

import (
	"net/http"
	"runtime/debug"

	"competition/pkg/utils"
)

// Recovery перехватывает panic в handlers, логирует stack trace
// и возвращает клиенту 500 без деталей паники.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				utils.FromContext(r.Context()).Error("panic in handler",
					utils.Any("panic", rec),
					utils.String("method", r.Method),
					utils.String("path", r.URL.Path),
					utils.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
