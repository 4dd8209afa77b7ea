package protocol

import (
	"errors"
	"time"

	"github.com/mcoot/lobbyd/internal/model"
)

// Version is reported in every response
const Version = "1.0"

// Wire error codes
const (
	CodeCapacity     = 101
	CodeMalformed    = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeInternal     = 500
)

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope of every server message
type Response struct {
	Success   bool       `json:"success"`
	Timestamp int64      `json:"timestamp"`
	Version   string     `json:"version"`
	Data      any        `json:"data"`
	Error     *ErrorBody `json:"error"`
}

// OK builds a success response
func OK(now time.Time, data any) Response {
	return Response{
		Success:   true,
		Timestamp: now.Unix(),
		Version:   Version,
		Data:      data,
	}
}

// Fail builds an error response with an explicit code
func Fail(now time.Time, code int, message string) Response {
	return Response{
		Success:   false,
		Timestamp: now.Unix(),
		Version:   Version,
		Error:     &ErrorBody{Code: code, Message: message},
	}
}

// FailWith builds an error response for err
func FailWith(now time.Time, err error) Response {
	code, message := ErrorFrom(err)
	return Fail(now, code, message)
}

// ErrorFrom maps an error to its wire code and message.
// Unknown errors become 500 without leaking details.
func ErrorFrom(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrMalformedRequest):
		return CodeMalformed, err.Error()
	case errors.Is(err, model.ErrUnknownRequest):
		return CodeNotFound, err.Error()

	case errors.Is(err, model.ErrDuplicateLogin),
		errors.Is(err, model.ErrRoomExists),
		errors.Is(err, model.ErrAlreadyInRoom):
		return CodeConflict, err.Error()

	case errors.Is(err, model.ErrUnauthorized),
		errors.Is(err, model.ErrSessionNotFound):
		return CodeUnauthorized, err.Error()

	case errors.Is(err, model.ErrNotHost),
		errors.Is(err, model.ErrInvalidJoinCode):
		return CodeForbidden, err.Error()

	case errors.Is(err, model.ErrRoomNotFound),
		errors.Is(err, model.ErrNotInRoom):
		return CodeNotFound, err.Error()

	case errors.Is(err, model.ErrRoomFull),
		errors.Is(err, model.ErrRoomLimitReached),
		errors.Is(err, model.ErrServerFull):
		return CodeCapacity, err.Error()

	default:
		return CodeInternal, "internal server error"
	}
}
