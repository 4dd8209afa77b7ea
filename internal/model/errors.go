package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Request errors
	ErrMalformedRequest = errors.New("malformed request")
	ErrUnknownRequest   = errors.New("unrecognized request type")

	// Session errors
	ErrDuplicateLogin  = errors.New("device is already logged in")
	ErrUnauthorized    = errors.New("session token mismatch")
	ErrSessionNotFound = errors.New("session not found")

	// Room errors
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room id already exists")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomLimitReached = errors.New("room limit reached")
	ErrNotInRoom        = errors.New("player is not in room")
	ErrAlreadyInRoom    = errors.New("player is already in a room")
	ErrNotHost          = errors.New("player is not the host")
	ErrInvalidJoinCode  = errors.New("invalid join code")

	// Transport errors
	ErrServerFull = errors.New("server is full")
)

// FieldError reports a request field that failed validation
type FieldError struct {
	Field string // JSON name of the field
	Tag   string // Failed validation rule
}

func (e *FieldError) Error() string {
	if e.Tag == "required" {
		return fmt.Sprintf("missing required field: %s", e.Field)
	}
	return fmt.Sprintf("invalid field: %s (%s)", e.Field, e.Tag)
}

// Unwrap lets errors.Is(err, ErrMalformedRequest) match field errors
func (e *FieldError) Unwrap() error {
	return ErrMalformedRequest
}
