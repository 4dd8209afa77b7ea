package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/lobbyd/internal/api/apierr"
	"github.com/mcoot/lobbyd/internal/middleware"
)

// Recovery answers admin API panics with a JSON internal error
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
