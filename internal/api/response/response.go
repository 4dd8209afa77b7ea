package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/protocol"
)

// Limits reports the configured server limits
type Limits struct {
	MaxConnections    int    `json:"maxConnections"`
	MaxRooms          int    `json:"maxRooms"`
	HeartbeatInterval string `json:"heartbeatInterval"`
	HeartbeatTimeout  string `json:"heartbeatTimeout"`
}

// Process reports resource usage of the server process
type Process struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Threads    int32   `json:"threads"`
	State      string  `json:"state"`
}

// Status is the response for GET /api/v1/status
type Status struct {
	Sessions      int       `json:"sessions"`
	Rooms         int       `json:"rooms"`
	Connections   int       `json:"connections"`
	StartedAt     time.Time `json:"startedAt"`
	UptimeSeconds int64     `json:"uptimeSeconds"`
	Limits        Limits    `json:"limits"`
	Process       *Process  `json:"process,omitempty"`
}

// Rooms is the response for GET /api/v1/rooms
type Rooms struct {
	Rooms []protocol.RoomInfo `json:"rooms"`
}

// Members is the response for GET /api/v1/rooms/{roomId}/members
type Members struct {
	RoomID  model.RoomID          `json:"roomId"`
	Members []model.MemberSummary `json:"members"`
}

// Events is the response for GET /api/v1/events, newest first
type Events struct {
	Events []model.Event `json:"events"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
