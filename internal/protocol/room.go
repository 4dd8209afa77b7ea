package protocol

import "github.com/mcoot/lobbyd/internal/model"

// RoomInfo is the wire form of a room. The join code itself is never sent.
type RoomInfo struct {
	RoomID         model.RoomID   `json:"roomId"`
	HostDeviceID   model.DeviceID `json:"hostDeviceId"`
	HostAddress    string         `json:"hostAddress"`
	HostPort       int            `json:"hostPort"`
	MaxPlayers     int            `json:"maxPlayers"`
	CurrentPlayers int            `json:"currentPlayers"`
	Status         string         `json:"status"`
	RoomName       string         `json:"roomName"`
	GameType       string         `json:"gameType"`
	CreatedTime    int64          `json:"createdTime"`
	LastHeartbeat  int64          `json:"lastHeartbeat"`
	LastActivity   int64          `json:"lastActivity"`
	IsPrivate      bool           `json:"isPrivate"`
	HasJoinCode    bool           `json:"hasJoinCode"`
}

// RoomInfoFromModel converts model.Room
func RoomInfoFromModel(r model.Room) RoomInfo {
	return RoomInfo{
		RoomID:         r.ID,
		HostDeviceID:   r.HostDeviceID,
		HostAddress:    r.HostAddress,
		HostPort:       r.HostPort,
		MaxPlayers:     r.MaxPlayers,
		CurrentPlayers: r.CurrentPlayers(),
		Status:         string(r.Status),
		RoomName:       r.RoomName,
		GameType:       r.GameType,
		CreatedTime:    r.CreatedTime.Unix(),
		LastHeartbeat:  r.LastHeartbeat.Unix(),
		LastActivity:   r.LastActivity.Unix(),
		IsPrivate:      r.IsPrivate,
		HasJoinCode:    r.HasJoinCode(),
	}
}

// AuthData is returned by auth
type AuthData struct {
	SessionToken model.SessionToken `json:"sessionToken"`
}

// CreateData is returned by create
type CreateData struct {
	RoomID       model.RoomID       `json:"roomId"`
	SessionToken model.SessionToken `json:"sessionToken"`
	Data         RoomInfo           `json:"data"`
}

// ListData is returned by list
type ListData struct {
	Rooms []RoomInfo `json:"rooms"`
}

// JoinData is returned by join and tells the client where to connect
type JoinData struct {
	HostAddress string   `json:"hostAddress"`
	HostPort    int      `json:"hostPort"`
	RoomInfo    RoomInfo `json:"roomInfo"`
}

// RoomRef is returned by leave, heartbeat and delete
type RoomRef struct {
	RoomID model.RoomID `json:"roomId"`
}

// ReadyData is returned by ready
type ReadyData struct {
	DeviceID model.DeviceID `json:"deviceId"`
	IsReady  bool           `json:"isReady"`
}
