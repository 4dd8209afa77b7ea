package handler

import (
	"net/http"

	"github.com/mcoot/lobbyd/internal/api/request"
	"github.com/mcoot/lobbyd/internal/api/response"
	"github.com/mcoot/lobbyd/internal/audit"
	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/storage"
)

const defaultEventLimit = 50

// EventHandler serves the audit trail
type EventHandler struct {
	recorder *audit.Recorder
}

// NewEventHandler creates a new event handler
func NewEventHandler(recorder *audit.Recorder) *EventHandler {
	return &EventHandler{recorder: recorder}
}

// Recent handles GET /api/v1/events
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := request.Limit(r, defaultEventLimit, storage.DefaultMaxEvents)
	if err != nil {
		invalid(w, err)
		return
	}

	events, err := h.recorder.Recent(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	response.JSON(w, http.StatusOK, response.Events{Events: events})
}
