package model

import "time"

// EventType identifies the type of audit event
type EventType string

const (
	// Connection events
	EventConnected     EventType = "connected"
	EventDisconnected  EventType = "disconnected"
	EventAuthenticated EventType = "authenticated"

	// Room events
	EventRoomCreated EventType = "room_created"
	EventRoomJoined  EventType = "room_joined"
	EventRoomLeft    EventType = "room_left"
	EventRoomDeleted EventType = "room_deleted"
	EventHostChanged EventType = "host_changed"
	EventRoomEvicted EventType = "room_evicted"
)

// Event is one append-only audit record
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    RoomID    `json:"roomId,omitempty"`
	DeviceID  DeviceID  `json:"deviceId,omitempty"`
	Addr      string    `json:"addr,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
