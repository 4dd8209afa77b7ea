package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/mcoot/lobbyd/internal/api/request"
	"github.com/mcoot/lobbyd/internal/api/response"
	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/protocol"
	"github.com/mcoot/lobbyd/internal/services/room"
)

// RoomHandler exposes read-only views of the room registry
type RoomHandler struct {
	rooms     *room.Registry
	directory room.Directory
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(rooms *room.Registry, directory room.Directory) *RoomHandler {
	return &RoomHandler{rooms: rooms, directory: directory}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	includePrivate, err := request.Bool(r, "includePrivate")
	if err != nil {
		invalid(w, err)
		return
	}

	rooms := lo.Map(h.rooms.List(includePrivate), func(rm model.Room, _ int) protocol.RoomInfo {
		return protocol.RoomInfoFromModel(rm)
	})
	response.JSON(w, http.StatusOK, response.Rooms{Rooms: rooms})
}

// Members handles GET /api/v1/rooms/{roomId}/members
func (h *RoomHandler) Members(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["roomId"])

	if _, err := h.rooms.Get(roomID); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Members{
		RoomID:  roomID,
		Members: h.rooms.Members(roomID, h.directory),
	})
}
