package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbyd/internal/model"
)

type ProtocolSuite struct {
	suite.Suite
	now time.Time
}

func TestProtocolSuite(t *testing.T) {
	suite.Run(t, new(ProtocolSuite))
}

func (s *ProtocolSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ProtocolSuite) TestErrorFromCodes() {
	cases := []struct {
		err  error
		code int
	}{
		{&model.FieldError{Field: "roomId", Tag: "required"}, CodeMalformed},
		{model.ErrMalformedRequest, CodeMalformed},
		{model.ErrUnknownRequest, CodeNotFound},
		{model.ErrDuplicateLogin, CodeConflict},
		{model.ErrRoomExists, CodeConflict},
		{fmt.Errorf("%w: R1", model.ErrAlreadyInRoom), CodeConflict},
		{model.ErrUnauthorized, CodeUnauthorized},
		{model.ErrSessionNotFound, CodeUnauthorized},
		{model.ErrNotHost, CodeForbidden},
		{model.ErrInvalidJoinCode, CodeForbidden},
		{model.ErrRoomNotFound, CodeNotFound},
		{model.ErrNotInRoom, CodeNotFound},
		{model.ErrRoomFull, CodeCapacity},
		{model.ErrRoomLimitReached, CodeCapacity},
		{model.ErrServerFull, CodeCapacity},
		{errors.New("secret internal detail"), CodeInternal},
	}

	for _, tc := range cases {
		code, _ := ErrorFrom(tc.err)
		s.Equal(tc.code, code, "error %q", tc.err)
	}
}

func (s *ProtocolSuite) TestErrorFromMessages() {
	_, msg := ErrorFrom(&model.FieldError{Field: "hostPort", Tag: "required"})
	s.Equal("missing required field: hostPort", msg)

	_, msg = ErrorFrom(errors.New("secret internal detail"))
	s.Equal("internal server error", msg)
}

func (s *ProtocolSuite) TestOKEnvelope() {
	data, err := json.Marshal(OK(s.now, RoomRef{RoomID: "R1"}))
	s.Require().NoError(err)

	s.JSONEq(`{
		"success": true,
		"timestamp": 1704110400,
		"version": "1.0",
		"data": {"roomId": "R1"},
		"error": null
	}`, string(data))
}

func (s *ProtocolSuite) TestFailEnvelope() {
	data, err := json.Marshal(FailWith(s.now, model.ErrRoomFull))
	s.Require().NoError(err)

	s.JSONEq(`{
		"success": false,
		"timestamp": 1704110400,
		"version": "1.0",
		"data": null,
		"error": {"code": 101, "message": "room is full"}
	}`, string(data))
}

func (s *ProtocolSuite) TestRoomInfoHidesJoinCode() {
	room := model.Room{
		ID:            "R1",
		HostDeviceID:  "A",
		HostAddress:   "10.0.0.1",
		HostPort:      7777,
		MaxPlayers:    4,
		RoomName:      "Fun",
		GameType:      "mafia",
		IsPrivate:     true,
		JoinCodeHash:  []byte("$2a$04$hash"),
		Status:        model.RoomStatusActive,
		Members:       []model.DeviceID{"A", "B"},
		CreatedTime:   s.now,
		LastHeartbeat: s.now,
		LastActivity:  s.now,
	}

	data, err := json.Marshal(RoomInfoFromModel(room))
	s.Require().NoError(err)

	s.JSONEq(`{
		"roomId": "R1",
		"hostDeviceId": "A",
		"hostAddress": "10.0.0.1",
		"hostPort": 7777,
		"maxPlayers": 4,
		"currentPlayers": 2,
		"status": "active",
		"roomName": "Fun",
		"gameType": "mafia",
		"createdTime": 1704110400,
		"lastHeartbeat": 1704110400,
		"lastActivity": 1704110400,
		"isPrivate": true,
		"hasJoinCode": true
	}`, string(data))
}

func (s *ProtocolSuite) TestRequestDecodesWireFields() {
	var req Request
	err := json.Unmarshal([]byte(`{
		"type": "create",
		"deviceId": "A",
		"sessionToken": "tok",
		"roomId": "R1",
		"hostAddress": "10.0.0.1",
		"hostPort": 7777,
		"maxPlayers": 4,
		"roomName": "Fun",
		"isPrivate": true,
		"joinCode": "1234"
	}`), &req)
	s.Require().NoError(err)

	s.Equal(TypeCreate, req.Type)
	s.Equal(model.Credentials{DeviceID: "A", SessionToken: "tok"}, req.Credentials())

	spec := req.RoomSpec()
	s.Equal(model.RoomID("R1"), spec.RoomID)
	s.Equal(model.DeviceID("A"), spec.HostDeviceID)
	s.Equal(7777, spec.HostPort)
	s.True(spec.IsPrivate)
	s.Equal("1234", spec.JoinCode)
}

func (s *ProtocolSuite) TestRawResponse() {
	var ok RawResponse
	s.Require().NoError(json.Unmarshal([]byte(`{"success":true,"data":{"sessionToken":"t"},"error":null}`), &ok))
	s.NoError(ok.Err())
	var auth AuthData
	s.Require().NoError(ok.Decode(&auth))
	s.Equal(model.SessionToken("t"), auth.SessionToken)

	var failed RawResponse
	s.Require().NoError(json.Unmarshal([]byte(`{"success":false,"data":null,"error":{"code":409,"message":"dup"}}`), &failed))
	var remote *RemoteError
	s.Require().ErrorAs(failed.Err(), &remote)
	s.Equal(CodeConflict, remote.Code)
	s.Equal("dup", remote.Message)
}
