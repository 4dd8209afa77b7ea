package handler

import (
	"net/http"

	"github.com/mcoot/lobbyd/internal/api/apierr"
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NotFound answers unknown routes with a JSON error
func NotFound(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteError(w, apierr.NewNotFoundError())
}

func invalid(w http.ResponseWriter, err error) {
	apierr.WriteError(w, apierr.NewInvalidRequestError(err.Error()))
}
