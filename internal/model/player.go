package model

import "time"

// DeviceID is the client-supplied identity of a connecting player
type DeviceID string

// SessionToken is the server-issued credential proving a DeviceID
type SessionToken string

// ConnectionID is an opaque reference to the transport connection that owns a session
type ConnectionID string

// PlayerSession is the authenticated state of a single device
type PlayerSession struct {
	DeviceID     DeviceID
	Nickname     string
	SessionToken SessionToken
	ConnectionID ConnectionID
	IsReady      bool
	CreatedAt    time.Time
	LastActive   time.Time
}

// Credentials identify the caller of every request except auth
type Credentials struct {
	DeviceID     DeviceID
	SessionToken SessionToken
}

// MemberSummary describes one room member as seen by other members
type MemberSummary struct {
	Nickname string   `json:"nickname"`
	DeviceID DeviceID `json:"deviceId"`
	IsHost   bool     `json:"isHost"`
	IsReady  bool     `json:"isReady"`
}
