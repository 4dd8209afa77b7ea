package protocol

import "github.com/mcoot/lobbyd/internal/model"

// RequestType names a lobby operation
type RequestType string

const (
	TypeAuth          RequestType = "auth"
	TypeCreate        RequestType = "create"
	TypeList          RequestType = "list"
	TypeJoin          RequestType = "join"
	TypeLeave         RequestType = "leave"
	TypeHeartbeat     RequestType = "heartbeat"
	TypePlayerList    RequestType = "playerList"
	TypeGetPlayerList RequestType = "getPlayerList" // Alias of playerList
	TypeDelete        RequestType = "delete"
	TypeReady         RequestType = "ready"
)

// Request is one client message. Fields not used by a type are ignored.
type Request struct {
	Type         RequestType        `json:"type"`
	DeviceID     model.DeviceID     `json:"deviceId,omitempty"`
	Nickname     string             `json:"nickname,omitempty"`
	SessionToken model.SessionToken `json:"sessionToken,omitempty"`

	RoomID      model.RoomID `json:"roomId,omitempty"`
	HostAddress string       `json:"hostAddress,omitempty"`
	HostPort    int          `json:"hostPort,omitempty"`
	MaxPlayers  int          `json:"maxPlayers,omitempty"`
	RoomName    string       `json:"roomName,omitempty"`
	GameType    string       `json:"gameType,omitempty"`
	IsPrivate   bool         `json:"isPrivate,omitempty"`
	JoinCode    string       `json:"joinCode,omitempty"`

	IncludePrivate bool `json:"includePrivate,omitempty"`
	IsReady        bool `json:"isReady,omitempty"`
}

// Credentials returns the caller identity carried by the request
func (r Request) Credentials() model.Credentials {
	return model.Credentials{
		DeviceID:     r.DeviceID,
		SessionToken: r.SessionToken,
	}
}

// RoomSpec returns the create-room fields of the request
func (r Request) RoomSpec() model.RoomSpec {
	return model.RoomSpec{
		RoomID:       r.RoomID,
		HostDeviceID: r.DeviceID,
		HostAddress:  r.HostAddress,
		HostPort:     r.HostPort,
		MaxPlayers:   r.MaxPlayers,
		RoomName:     r.RoomName,
		GameType:     r.GameType,
		IsPrivate:    r.IsPrivate,
		JoinCode:     r.JoinCode,
	}
}
