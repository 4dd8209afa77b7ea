package model

import (
	"slices"
	"time"
)

// RoomID is the caller-chosen identifier of a room
type RoomID string

// RoomStatus reflects whether a room can accept more members
type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active" // Below capacity
	RoomStatusFull   RoomStatus = "full"   // CurrentPlayers == MaxPlayers
)

// DefaultGameType is used when a create request names no game type
const DefaultGameType = "mafia"

// RoomSpec carries the fields of a create request.
// Required fields are enforced by the room registry.
type RoomSpec struct {
	RoomID       RoomID   `json:"roomId" validate:"required,max=128"`
	HostDeviceID DeviceID `json:"deviceId" validate:"required"`
	HostAddress  string   `json:"hostAddress" validate:"required"`
	HostPort     int      `json:"hostPort" validate:"required,min=1,max=65535"`
	MaxPlayers   int      `json:"maxPlayers" validate:"required,gt=0"`
	RoomName     string   `json:"roomName" validate:"required"`
	GameType     string   `json:"gameType"`
	IsPrivate    bool     `json:"isPrivate"`
	JoinCode     string   `json:"joinCode" validate:"max=72"`
}

// Room is a snapshot of a hosted game session and its members
type Room struct {
	ID            RoomID
	HostDeviceID  DeviceID
	HostAddress   string
	HostPort      int
	MaxPlayers    int
	RoomName      string
	GameType      string
	IsPrivate     bool
	JoinCodeHash  []byte // bcrypt hash, nil when the room has no join code
	Status        RoomStatus
	Members       []DeviceID // In join order; Members[0] joined first
	CreatedTime   time.Time
	LastHeartbeat time.Time
	LastActivity  time.Time
}

// CurrentPlayers returns the number of members
func (r *Room) CurrentPlayers() int {
	return len(r.Members)
}

// HasJoinCode reports whether joining requires a code
func (r *Room) HasJoinCode() bool {
	return len(r.JoinCodeHash) > 0
}

// HasMember reports whether the device is in the room
func (r *Room) HasMember(id DeviceID) bool {
	return slices.Contains(r.Members, id)
}

// IsHost reports whether the device currently hosts the room
func (r *Room) IsHost(id DeviceID) bool {
	return r.HostDeviceID == id
}

// Clone returns a deep copy safe to hand outside the registry lock
func (r *Room) Clone() Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	c.JoinCodeHash = slices.Clone(r.JoinCodeHash)
	return c
}
