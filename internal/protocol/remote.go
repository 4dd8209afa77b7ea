package protocol

import (
	"encoding/json"
	"fmt"
)

// RawResponse is a Response as read by a client, with Data left encoded
type RawResponse struct {
	Success   bool            `json:"success"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data"`
	Error     *ErrorBody      `json:"error"`
}

// RemoteError is a failure reported by the server
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("lobby error %d: %s", e.Code, e.Message)
}

// Err returns the server's error, or nil on success
func (r RawResponse) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == nil {
		return &RemoteError{Code: CodeInternal, Message: "request failed without error details"}
	}
	return &RemoteError{Code: r.Error.Code, Message: r.Error.Message}
}

// Decode unmarshals Data into v. A null payload leaves v unchanged.
func (r RawResponse) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
