package session

import (
	"crypto/subtle"
	"log/slog"
	"sort"
	"sync"

	"github.com/mcoot/lobbyd/internal/dependencies/clock"
	"github.com/mcoot/lobbyd/internal/dependencies/tokens"
	"github.com/mcoot/lobbyd/internal/model"
)

// Registry owns every PlayerSession, keyed by device.
// Each method is atomic with respect to concurrent callers.
type Registry struct {
	clock  clock.Clock
	tokens tokens.Generator
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[model.DeviceID]*model.PlayerSession
}

// New creates an empty session registry
func New(clock clock.Clock, tokens tokens.Generator, logger *slog.Logger) *Registry {
	return &Registry{
		clock:    clock,
		tokens:   tokens,
		logger:   logger.With(slog.String("component", "sessions")),
		sessions: make(map[model.DeviceID]*model.PlayerSession),
	}
}

// Authenticate creates a session for the device.
// A device that already holds a live session is rejected, never overwritten.
func (r *Registry) Authenticate(deviceID model.DeviceID, nickname string, conn model.ConnectionID) (model.PlayerSession, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[deviceID]; exists {
		return model.PlayerSession{}, model.ErrDuplicateLogin
	}

	s := &model.PlayerSession{
		DeviceID:     deviceID,
		Nickname:     nickname,
		SessionToken: model.SessionToken(r.tokens.NewToken()),
		ConnectionID: conn,
		CreatedAt:    now,
		LastActive:   now,
	}
	r.sessions[deviceID] = s

	r.logger.Debug("session created",
		slog.String("device_id", string(deviceID)),
		slog.String("connection", string(conn)))

	return *s, nil
}

// Lookup returns a copy of the device's session
func (r *Registry) Lookup(deviceID model.DeviceID) (model.PlayerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[deviceID]
	if !ok {
		return model.PlayerSession{}, false
	}
	return *s, true
}

// Validate reports whether the device has a session with exactly this token
func (r *Registry) Validate(deviceID model.DeviceID, token model.SessionToken) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[deviceID]
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.SessionToken), []byte(token)) == 1
}

// Touch refreshes the device's LastActive time. No-op if absent.
func (r *Registry) Touch(deviceID model.DeviceID) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[deviceID]; ok {
		s.LastActive = now
	}
}

// SetReady sets the device's ready flag
func (r *Registry) SetReady(deviceID model.DeviceID, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[deviceID]
	if !ok {
		return model.ErrSessionNotFound
	}
	s.IsReady = ready
	return nil
}

// Remove deletes the device's session. Idempotent.
func (r *Registry) Remove(deviceID model.DeviceID) {
	r.mu.Lock()
	_, existed := r.sessions[deviceID]
	delete(r.sessions, deviceID)
	r.mu.Unlock()

	if existed {
		r.logger.Debug("session removed", slog.String("device_id", string(deviceID)))
	}
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns copies of all sessions ordered by device id
func (r *Registry) Snapshot() []model.PlayerSession {
	r.mu.RLock()
	result := make([]model.PlayerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, *s)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].DeviceID < result[j].DeviceID })
	return result
}
