package lobby

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/lobbyd/internal/audit"
	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/services/room"
	"github.com/mcoot/lobbyd/internal/services/session"
)

// DefaultNickname is used when an auth request carries no nickname
const DefaultNickname = "Unknown"

// Coordinator applies lobby policy on top of the session and room registries.
// Each registry call is atomic; a sequence of calls here is not.
type Coordinator struct {
	sessions *session.Registry
	rooms    *room.Registry
	audit    *audit.Recorder
	logger   *slog.Logger
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(
	sessions *session.Registry,
	rooms *room.Registry,
	recorder *audit.Recorder,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		sessions: sessions,
		rooms:    rooms,
		audit:    recorder,
		logger:   logger.With(slog.String("component", "coordinator")),
	}
}

// Authenticate creates a session for the device on the given connection
func (c *Coordinator) Authenticate(ctx context.Context, deviceID model.DeviceID, nickname string, conn model.ConnectionID) (model.PlayerSession, error) {
	if deviceID == "" {
		return model.PlayerSession{}, &model.FieldError{Field: "deviceId", Tag: "required"}
	}
	if nickname == "" {
		nickname = DefaultNickname
	}

	s, err := c.sessions.Authenticate(deviceID, nickname, conn)
	if err != nil {
		return model.PlayerSession{}, err
	}

	c.audit.Record(ctx, model.Event{
		Type:     model.EventAuthenticated,
		DeviceID: deviceID,
		Detail:   "nickname=" + nickname,
	})
	return s, nil
}

// authorize checks the caller's credentials and refreshes its activity time
func (c *Coordinator) authorize(creds model.Credentials) error {
	if !c.sessions.Validate(creds.DeviceID, creds.SessionToken) {
		return model.ErrUnauthorized
	}
	c.sessions.Touch(creds.DeviceID)
	return nil
}

// CreateRoom registers a room hosted by the caller
func (c *Coordinator) CreateRoom(ctx context.Context, creds model.Credentials, spec model.RoomSpec) (model.Room, error) {
	if err := c.authorize(creds); err != nil {
		return model.Room{}, err
	}

	spec.HostDeviceID = creds.DeviceID
	r, err := c.rooms.Create(spec)
	if err != nil {
		return model.Room{}, err
	}

	c.audit.Record(ctx, model.Event{
		Type:     model.EventRoomCreated,
		RoomID:   r.ID,
		DeviceID: creds.DeviceID,
		Detail:   "name=" + r.RoomName + " game=" + r.GameType,
	})
	return r, nil
}

// ListRooms returns rooms visible to the caller
func (c *Coordinator) ListRooms(ctx context.Context, creds model.Credentials, includePrivate bool) ([]model.Room, error) {
	if err := c.authorize(creds); err != nil {
		return nil, err
	}
	rooms := c.rooms.List(includePrivate)
	c.logger.Debug("rooms listed",
		slog.String("device_id", string(creds.DeviceID)),
		slog.Int("count", len(rooms)))
	return rooms, nil
}

// JoinRoom adds the caller to a room
func (c *Coordinator) JoinRoom(ctx context.Context, creds model.Credentials, roomID model.RoomID, joinCode string) (model.Room, error) {
	if err := c.authorize(creds); err != nil {
		return model.Room{}, err
	}

	r, err := c.rooms.Join(roomID, creds.DeviceID, joinCode)
	if err != nil {
		return model.Room{}, err
	}

	c.audit.Record(ctx, model.Event{
		Type:     model.EventRoomJoined,
		RoomID:   roomID,
		DeviceID: creds.DeviceID,
	})
	return r, nil
}

// LeaveRoom removes the caller from a room
func (c *Coordinator) LeaveRoom(ctx context.Context, creds model.Credentials, roomID model.RoomID) error {
	if err := c.authorize(creds); err != nil {
		return err
	}
	_, err := c.leave(ctx, roomID, creds.DeviceID, model.EventRoomLeft, "")
	return err
}

// Heartbeat records a liveness signal for a room
func (c *Coordinator) Heartbeat(ctx context.Context, creds model.Credentials, roomID model.RoomID) error {
	if err := c.authorize(creds); err != nil {
		return err
	}
	if err := c.rooms.Heartbeat(roomID, creds.DeviceID); err != nil {
		return err
	}
	c.logger.Debug("heartbeat",
		slog.String("room_id", string(roomID)),
		slog.String("device_id", string(creds.DeviceID)))
	return nil
}

// PlayerList returns the members of a room; empty when the room does not exist
func (c *Coordinator) PlayerList(ctx context.Context, creds model.Credentials, roomID model.RoomID) ([]model.MemberSummary, error) {
	if err := c.authorize(creds); err != nil {
		return nil, err
	}
	return c.rooms.Members(roomID, c.sessions), nil
}

// DeleteRoom removes a room outright. Only the host may delete, and the
// host's token is checked again immediately before removal.
func (c *Coordinator) DeleteRoom(ctx context.Context, creds model.Credentials, roomID model.RoomID) error {
	if err := c.authorize(creds); err != nil {
		return err
	}

	r, err := c.rooms.Get(roomID)
	if err != nil {
		return err
	}
	if !r.IsHost(creds.DeviceID) {
		return model.ErrNotHost
	}
	if !c.sessions.Validate(creds.DeviceID, creds.SessionToken) {
		return model.ErrUnauthorized
	}

	removed, err := c.rooms.Delete(roomID, creds.DeviceID)
	if err != nil {
		return err
	}

	c.audit.Record(ctx, model.Event{
		Type:     model.EventRoomDeleted,
		RoomID:   roomID,
		DeviceID: creds.DeviceID,
		Detail:   "by host",
	})
	c.logger.Debug("room deleted",
		slog.String("room_id", string(roomID)),
		slog.Int("members", removed.CurrentPlayers()))
	return nil
}

// SetReady updates the caller's ready flag
func (c *Coordinator) SetReady(ctx context.Context, creds model.Credentials, ready bool) error {
	if err := c.authorize(creds); err != nil {
		return err
	}
	return c.sessions.SetReady(creds.DeviceID, ready)
}

// Disconnect leaves every room the device is in, then removes its session.
// Safe to call for devices that never authenticated or already left.
func (c *Coordinator) Disconnect(ctx context.Context, deviceID model.DeviceID, reason string) {
	if deviceID == "" {
		return
	}

	for _, roomID := range c.rooms.RoomsOf(deviceID) {
		_, err := c.leave(ctx, roomID, deviceID, model.EventRoomLeft, reason)
		if err != nil && !errors.Is(err, model.ErrRoomNotFound) && !errors.Is(err, model.ErrNotInRoom) {
			c.logger.Warn("failed to leave room on disconnect",
				slog.String("room_id", string(roomID)),
				slog.String("device_id", string(deviceID)),
				slog.String("error", err.Error()))
		}
	}

	c.sessions.Remove(deviceID)
}

// Evict removes the host of a room that stopped sending heartbeats.
// The room is deleted or handed to the next member exactly as if the host left.
// Returns false without changes if the room moved on since the stale snapshot was taken.
func (c *Coordinator) Evict(ctx context.Context, stale model.Room) (bool, error) {
	current, err := c.rooms.Get(stale.ID)
	if err != nil {
		return false, err
	}
	if current.HostDeviceID != stale.HostDeviceID || current.LastHeartbeat.After(stale.LastHeartbeat) {
		return false, nil
	}

	if _, err := c.leave(ctx, stale.ID, stale.HostDeviceID, model.EventRoomEvicted, "heartbeat timeout"); err != nil {
		return false, err
	}
	return true, nil
}

// leave removes the device from the room and audits the outcome
func (c *Coordinator) leave(ctx context.Context, roomID model.RoomID, deviceID model.DeviceID, eventType model.EventType, detail string) (room.LeaveResult, error) {
	result, err := c.rooms.Leave(roomID, deviceID)
	if err != nil {
		return room.LeaveResult{}, err
	}

	c.audit.Record(ctx, model.Event{
		Type:     eventType,
		RoomID:   roomID,
		DeviceID: deviceID,
		Detail:   detail,
	})

	switch {
	case result.Deleted:
		c.audit.Record(ctx, model.Event{
			Type:   model.EventRoomDeleted,
			RoomID: roomID,
			Detail: "empty",
		})
	case result.NewHost != "":
		c.audit.Record(ctx, model.Event{
			Type:     model.EventHostChanged,
			RoomID:   roomID,
			DeviceID: result.NewHost,
			Detail:   "previous=" + string(result.PreviousHost),
		})
	}
	return result, nil
}
