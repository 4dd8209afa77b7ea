package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/websocket"
)

// PanicHandler writes the response for a request whose handler panicked
type PanicHandler func(w http.ResponseWriter, r *http.Request, recovered any)

// Recovery logs handler panics with their stack and hands the response to
// onPanic. http.ErrAbortHandler is re-raised so net/http aborts the
// response itself. Websocket upgrades are not answered since the
// connection no longer speaks HTTP once upgraded.
func Recovery(logger *slog.Logger, onPanic PanicHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				logger.Error("handler panicked",
					slog.Any("panic", recovered),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote", r.RemoteAddr),
					slog.Bool("upgrade", websocket.IsWebSocketUpgrade(r)),
					slog.String("stack", string(debug.Stack())),
				)

				if websocket.IsWebSocketUpgrade(r) {
					return
				}
				onPanic(w, r, recovered)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
