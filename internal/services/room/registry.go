package room

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/lobbyd/internal/dependencies/clock"
	"github.com/mcoot/lobbyd/internal/model"
)

// Config holds limits and defaults for the room registry
type Config struct {
	// MaxRooms caps the number of concurrent rooms; 0 means unlimited
	MaxRooms int
	// DefaultGameType is applied when a create request names none
	DefaultGameType string
	// JoinCodeCost is the bcrypt cost used to hash join codes
	JoinCodeCost int
}

// DefaultConfig returns the default registry configuration
func DefaultConfig() Config {
	return Config{
		MaxRooms:        100,
		DefaultGameType: model.DefaultGameType,
		JoinCodeCost:    bcrypt.DefaultCost,
	}
}

// Directory resolves devices to sessions when building member lists
type Directory interface {
	Lookup(deviceID model.DeviceID) (model.PlayerSession, bool)
}

// LeaveResult describes the outcome of a successful leave
type LeaveResult struct {
	// Room is the state after the leave; zero value when Deleted
	Room         model.Room
	Deleted      bool
	PreviousHost model.DeviceID
	// NewHost is set only when the host left and another member took over
	NewHost model.DeviceID
}

// Registry exclusively owns all rooms and their member lists.
// A single mutex serialises mutations; reads see a consistent snapshot.
type Registry struct {
	clock    clock.Clock
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger

	mu         sync.RWMutex
	rooms      map[model.RoomID]*model.Room
	order      []model.RoomID // Creation order, used for listing
	deviceRoom map[model.DeviceID]model.RoomID
}

// New creates an empty room registry
func New(clock clock.Clock, cfg Config, logger *slog.Logger) *Registry {
	if cfg.DefaultGameType == "" {
		cfg.DefaultGameType = model.DefaultGameType
	}
	if cfg.JoinCodeCost == 0 {
		cfg.JoinCodeCost = bcrypt.DefaultCost
	}
	return &Registry{
		clock:      clock,
		cfg:        cfg,
		validate:   newValidator(),
		logger:     logger.With(slog.String("component", "rooms")),
		rooms:      make(map[model.RoomID]*model.Room),
		deviceRoom: make(map[model.DeviceID]model.RoomID),
	}
}

// newValidator reports fields by their JSON names so errors match the wire protocol
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (r *Registry) validateSpec(spec model.RoomSpec) error {
	err := r.validate.Struct(spec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &model.FieldError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
	}
	return fmt.Errorf("%w: %v", model.ErrMalformedRequest, err)
}

// Create registers a new room and adds the creating device as its first member
func (r *Registry) Create(spec model.RoomSpec) (model.Room, error) {
	if err := r.validateSpec(spec); err != nil {
		return model.Room{}, err
	}

	// Hash outside the lock; bcrypt is deliberately slow
	var hash []byte
	if spec.JoinCode != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(spec.JoinCode), r.cfg.JoinCodeCost)
		if err != nil {
			return model.Room{}, fmt.Errorf("hash join code: %w", err)
		}
		hash = h
	}

	gameType := spec.GameType
	if gameType == "" {
		gameType = r.cfg.DefaultGameType
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[spec.RoomID]; exists {
		return model.Room{}, model.ErrRoomExists
	}
	if current, ok := r.deviceRoom[spec.HostDeviceID]; ok {
		return model.Room{}, fmt.Errorf("%w: %s", model.ErrAlreadyInRoom, current)
	}
	if r.cfg.MaxRooms > 0 && len(r.rooms) >= r.cfg.MaxRooms {
		return model.Room{}, model.ErrRoomLimitReached
	}

	room := &model.Room{
		ID:            spec.RoomID,
		HostDeviceID:  spec.HostDeviceID,
		HostAddress:   spec.HostAddress,
		HostPort:      spec.HostPort,
		MaxPlayers:    spec.MaxPlayers,
		RoomName:      spec.RoomName,
		GameType:      gameType,
		IsPrivate:     spec.IsPrivate,
		JoinCodeHash:  hash,
		Status:        model.RoomStatusActive,
		CreatedTime:   now,
		LastHeartbeat: now,
		LastActivity:  now,
	}
	r.rooms[room.ID] = room
	r.order = append(r.order, room.ID)
	r.addMemberLocked(room, spec.HostDeviceID, now)

	r.logger.Debug("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("host", string(room.HostDeviceID)),
		slog.Int("max_players", room.MaxPlayers))

	return room.Clone(), nil
}

// Join adds the device to the room if it has capacity
func (r *Registry) Join(roomID model.RoomID, deviceID model.DeviceID, joinCode string) (model.Room, error) {
	// Verify the join code outside the write lock, then confirm it still applies
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	var hash []byte
	needsCode := false
	if ok {
		needsCode = room.IsPrivate && room.HasJoinCode()
		hash = slices.Clone(room.JoinCodeHash)
	}
	r.mu.RUnlock()

	if !ok {
		return model.Room{}, model.ErrRoomNotFound
	}
	if needsCode {
		if err := bcrypt.CompareHashAndPassword(hash, []byte(joinCode)); err != nil {
			return model.Room{}, model.ErrInvalidJoinCode
		}
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok = r.rooms[roomID]
	if !ok {
		return model.Room{}, model.ErrRoomNotFound
	}
	// The room may have been replaced while the code was being checked;
	// only a code verified against this room's current hash counts
	if room.IsPrivate && room.HasJoinCode() && (!needsCode || !bytes.Equal(room.JoinCodeHash, hash)) {
		return model.Room{}, model.ErrInvalidJoinCode
	}
	if current, in := r.deviceRoom[deviceID]; in {
		return model.Room{}, fmt.Errorf("%w: %s", model.ErrAlreadyInRoom, current)
	}
	if room.CurrentPlayers() >= room.MaxPlayers {
		return model.Room{}, model.ErrRoomFull
	}

	r.addMemberLocked(room, deviceID, now)
	return room.Clone(), nil
}

// Leave removes the device from the room, migrating the host or deleting the room as needed
func (r *Registry) Leave(roomID model.RoomID, deviceID model.DeviceID) (LeaveResult, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}, model.ErrRoomNotFound
	}
	idx := slices.Index(room.Members, deviceID)
	if idx < 0 {
		return LeaveResult{}, model.ErrNotInRoom
	}

	room.Members = slices.Delete(room.Members, idx, idx+1)
	if r.deviceRoom[deviceID] == roomID {
		delete(r.deviceRoom, deviceID)
	}
	room.LastActivity = now

	result := LeaveResult{PreviousHost: room.HostDeviceID}

	if len(room.Members) == 0 {
		r.deleteLocked(room)
		result.Deleted = true
		return result, nil
	}

	if room.HostDeviceID == deviceID {
		// Earliest remaining joiner takes over; the heartbeat clock keeps running
		room.HostDeviceID = room.Members[0]
		result.NewHost = room.HostDeviceID
	}
	refreshStatus(room)

	result.Room = room.Clone()
	return result, nil
}

// Delete removes the room regardless of member count. Only the host may delete.
func (r *Registry) Delete(roomID model.RoomID, requester model.DeviceID) (model.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return model.Room{}, model.ErrRoomNotFound
	}
	if !room.IsHost(requester) {
		return model.Room{}, model.ErrNotHost
	}

	removed := room.Clone()
	r.deleteLocked(room)
	return removed, nil
}

// Heartbeat records a liveness signal for the room. Only the current host
// keeps a room alive.
func (r *Registry) Heartbeat(roomID model.RoomID, requester model.DeviceID) error {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return model.ErrRoomNotFound
	}
	if !room.IsHost(requester) {
		return model.ErrNotHost
	}
	room.LastHeartbeat = now
	return nil
}

// Get returns a snapshot of the room
func (r *Registry) Get(roomID model.RoomID) (model.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return model.Room{}, model.ErrRoomNotFound
	}
	return room.Clone(), nil
}

// List returns rooms in creation order, hiding private rooms unless asked
func (r *Registry) List(includePrivate bool) []model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.FilterMap(r.order, func(id model.RoomID, _ int) (model.Room, bool) {
		room := r.rooms[id]
		return room.Clone(), includePrivate || !room.IsPrivate
	})
}

// Members lists the room's members with session details.
// Returns an empty list for unknown rooms.
func (r *Registry) Members(roomID model.RoomID, dir Directory) []model.MemberSummary {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	var members []model.DeviceID
	var host model.DeviceID
	if ok {
		members = slices.Clone(room.Members)
		host = room.HostDeviceID
	}
	r.mu.RUnlock()

	// Session lookups happen without holding the room lock
	return lo.Map(members, func(id model.DeviceID, _ int) model.MemberSummary {
		summary := model.MemberSummary{DeviceID: id, IsHost: id == host}
		if s, found := dir.Lookup(id); found {
			summary.Nickname = s.Nickname
			summary.IsReady = s.IsReady
		}
		return summary
	})
}

// RoomsOf returns every room the device is a member of
func (r *Registry) RoomsOf(deviceID model.DeviceID) []model.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(r.order, func(id model.RoomID, _ int) bool {
		return r.rooms[id].HasMember(deviceID)
	})
}

// Stale returns rooms whose last heartbeat is older than timeout
func (r *Registry) Stale(now time.Time, timeout time.Duration) []model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.FilterMap(r.order, func(id model.RoomID, _ int) (model.Room, bool) {
		room := r.rooms[id]
		return room.Clone(), now.Sub(room.LastHeartbeat) > timeout
	})
}

// Count returns the number of active rooms
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) addMemberLocked(room *model.Room, deviceID model.DeviceID, now time.Time) {
	room.Members = append(room.Members, deviceID)
	r.deviceRoom[deviceID] = room.ID
	room.LastActivity = now
	refreshStatus(room)
}

func (r *Registry) deleteLocked(room *model.Room) {
	for _, id := range room.Members {
		if r.deviceRoom[id] == room.ID {
			delete(r.deviceRoom, id)
		}
	}
	delete(r.rooms, room.ID)
	if idx := slices.Index(r.order, room.ID); idx >= 0 {
		r.order = slices.Delete(r.order, idx, idx+1)
	}
	r.logger.Debug("room removed", slog.String("room_id", string(room.ID)))
}

func refreshStatus(room *model.Room) {
	if room.CurrentPlayers() >= room.MaxPlayers {
		room.Status = model.RoomStatusFull
	} else {
		room.Status = model.RoomStatusActive
	}
}
