package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mcoot/lobbyd/internal/audit"
	"github.com/mcoot/lobbyd/internal/dependencies/clock"
	"github.com/mcoot/lobbyd/internal/dependencies/tokens"
	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/protocol"
	"github.com/mcoot/lobbyd/internal/services/lobby"
)

// invalidType labels requests whose type could not be read
const invalidType = "invalid"

// Observer receives a measurement for every handled request
type Observer interface {
	ObserveRequest(reqType string, code int, elapsed time.Duration)
}

// Dispatcher turns decoded protocol messages into coordinator calls and
// coordinator results into response envelopes
type Dispatcher struct {
	coordinator *lobby.Coordinator
	recorder    *audit.Recorder
	clock       clock.Clock
	ids         tokens.Generator
	observer    Observer
	logger      *slog.Logger
}

// New creates a Dispatcher
func New(
	coordinator *lobby.Coordinator,
	recorder *audit.Recorder,
	clock clock.Clock,
	ids tokens.Generator,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		coordinator: coordinator,
		recorder:    recorder,
		clock:       clock,
		ids:         ids,
		logger:      logger.With(slog.String("component", "dispatch")),
	}
}

// SetObserver installs the request observer. Must be called before serving.
func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// Open registers a new client connection
func (d *Dispatcher) Open(ctx context.Context, addr, transport string) *Connection {
	conn := &Connection{
		ID:        model.ConnectionID(d.ids.NewToken()),
		Addr:      addr,
		Transport: transport,
	}
	d.recorder.Record(ctx, model.Event{
		Type:   model.EventConnected,
		Addr:   addr,
		Detail: "transport=" + transport,
	})
	return conn
}

// Release evacuates every device authenticated on the connection and removes
// their sessions. Only the first call has any effect.
func (d *Dispatcher) Release(ctx context.Context, conn *Connection, reason string) {
	conn.release.Do(func() {
		// Cleanup must finish even when the server is shutting down
		ctx := context.WithoutCancel(ctx)

		devices := conn.Devices()
		for _, id := range devices {
			d.coordinator.Disconnect(ctx, id, reason)
		}

		ids := lo.Map(devices, func(id model.DeviceID, _ int) string { return string(id) })
		d.recorder.Record(ctx, model.Event{
			Type:   model.EventDisconnected,
			Addr:   conn.Addr,
			Detail: fmt.Sprintf("reason=%q devices=[%s]", reason, strings.Join(ids, ",")),
		})
	})
}

// Handle decodes one raw message and executes it
func (d *Dispatcher) Handle(ctx context.Context, conn *Connection, raw []byte) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		d.observe(invalidType, protocol.CodeMalformed, 0)
		return d.Malformed()
	}
	return d.Do(ctx, conn, req)
}

// Do executes a decoded request
func (d *Dispatcher) Do(ctx context.Context, conn *Connection, req protocol.Request) protocol.Response {
	start := time.Now()

	data, err := d.route(ctx, conn, req)

	var resp protocol.Response
	code := 200
	if err != nil {
		resp = protocol.FailWith(d.clock.Now(), err)
		code = resp.Error.Code
		d.logFailure(conn, req, code, err)
	} else {
		resp = protocol.OK(d.clock.Now(), data)
	}

	reqType := string(req.Type)
	if !isKnown(req.Type) {
		// Keep metric label cardinality bounded
		reqType = invalidType
	}
	d.observe(reqType, code, time.Since(start))
	return resp
}

// Malformed is the response to a message that is not valid JSON
func (d *Dispatcher) Malformed() protocol.Response {
	return protocol.Fail(d.clock.Now(), protocol.CodeMalformed, "malformed request: invalid JSON")
}

// TooLarge is the response to a message over the transport's size limit
func (d *Dispatcher) TooLarge() protocol.Response {
	return protocol.Fail(d.clock.Now(), protocol.CodeMalformed, "malformed request: message too large")
}

// Internal is the response to a request that panicked. The panic is logged with its stack.
func (d *Dispatcher) Internal(conn *Connection, recovered any) protocol.Response {
	d.logger.Error("panic while handling request",
		slog.Any("error", recovered),
		slog.String("stack", string(debug.Stack())),
		slog.String("connection", string(conn.ID)),
		slog.String("addr", conn.Addr))
	d.observe(invalidType, protocol.CodeInternal, 0)
	return protocol.Fail(d.clock.Now(), protocol.CodeInternal, "internal server error")
}

// ServerFull is sent to a connection refused at capacity
func (d *Dispatcher) ServerFull() protocol.Response {
	return protocol.FailWith(d.clock.Now(), model.ErrServerFull)
}

func (d *Dispatcher) route(ctx context.Context, conn *Connection, req protocol.Request) (any, error) {
	creds := req.Credentials()

	switch req.Type {
	case protocol.TypeAuth:
		s, err := d.coordinator.Authenticate(ctx, req.DeviceID, req.Nickname, conn.ID)
		if err != nil {
			return nil, err
		}
		conn.track(s.DeviceID)
		return protocol.AuthData{SessionToken: s.SessionToken}, nil

	case protocol.TypeCreate:
		room, err := d.coordinator.CreateRoom(ctx, creds, req.RoomSpec())
		if err != nil {
			return nil, err
		}
		return protocol.CreateData{
			RoomID:       room.ID,
			SessionToken: creds.SessionToken,
			Data:         protocol.RoomInfoFromModel(room),
		}, nil

	case protocol.TypeList:
		rooms, err := d.coordinator.ListRooms(ctx, creds, req.IncludePrivate)
		if err != nil {
			return nil, err
		}
		return protocol.ListData{
			Rooms: lo.Map(rooms, func(r model.Room, _ int) protocol.RoomInfo {
				return protocol.RoomInfoFromModel(r)
			}),
		}, nil

	case protocol.TypeJoin:
		room, err := d.coordinator.JoinRoom(ctx, creds, req.RoomID, req.JoinCode)
		if err != nil {
			return nil, err
		}
		return protocol.JoinData{
			HostAddress: room.HostAddress,
			HostPort:    room.HostPort,
			RoomInfo:    protocol.RoomInfoFromModel(room),
		}, nil

	case protocol.TypeLeave:
		if err := d.coordinator.LeaveRoom(ctx, creds, req.RoomID); err != nil {
			return nil, err
		}
		return protocol.RoomRef{RoomID: req.RoomID}, nil

	case protocol.TypeHeartbeat:
		if err := d.coordinator.Heartbeat(ctx, creds, req.RoomID); err != nil {
			return nil, err
		}
		return protocol.RoomRef{RoomID: req.RoomID}, nil

	case protocol.TypePlayerList, protocol.TypeGetPlayerList:
		return d.coordinator.PlayerList(ctx, creds, req.RoomID)

	case protocol.TypeDelete:
		if err := d.coordinator.DeleteRoom(ctx, creds, req.RoomID); err != nil {
			return nil, err
		}
		return protocol.RoomRef{RoomID: req.RoomID}, nil

	case protocol.TypeReady:
		if err := d.coordinator.SetReady(ctx, creds, req.IsReady); err != nil {
			return nil, err
		}
		return protocol.ReadyData{DeviceID: creds.DeviceID, IsReady: req.IsReady}, nil

	default:
		return nil, model.ErrUnknownRequest
	}
}

func (d *Dispatcher) logFailure(conn *Connection, req protocol.Request, code int, err error) {
	level := slog.LevelDebug
	if code == protocol.CodeInternal {
		level = slog.LevelError
	}
	d.logger.Log(context.Background(), level, "request failed",
		slog.String("type", string(req.Type)),
		slog.String("device_id", string(req.DeviceID)),
		slog.String("addr", conn.Addr),
		slog.Int("code", code),
		slog.String("error", err.Error()))
}

func (d *Dispatcher) observe(reqType string, code int, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.ObserveRequest(reqType, code, elapsed)
	}
}

func isKnown(t protocol.RequestType) bool {
	switch t {
	case protocol.TypeAuth, protocol.TypeCreate, protocol.TypeList, protocol.TypeJoin,
		protocol.TypeLeave, protocol.TypeHeartbeat, protocol.TypePlayerList,
		protocol.TypeGetPlayerList, protocol.TypeDelete, protocol.TypeReady:
		return true
	}
	return false
}
