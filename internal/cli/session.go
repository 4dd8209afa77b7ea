package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/lobbyd/internal/client"
	"github.com/mcoot/lobbyd/internal/model"
)

// identity flags shared by host and join
type identity struct {
	deviceID string
	nickname string
}

func (id *identity) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&id.deviceID, "device", "", "Device id to log in as (default: hostname)")
	cmd.Flags().StringVar(&id.nickname, "nickname", "", "Nickname shown to other players")
}

func (id *identity) resolve() model.DeviceID {
	if id.deviceID != "" {
		return model.DeviceID(id.deviceID)
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return model.DeviceID(host)
	}
	return "lobbyctl"
}

// dialLobby connects over websocket for ws:// and wss:// addresses, TCP otherwise
func dialLobby(ctx context.Context) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if strings.HasPrefix(cfg.LobbyAddr, "ws://") || strings.HasPrefix(cfg.LobbyAddr, "wss://") {
		return client.DialWebsocket(ctx, cfg.LobbyAddr)
	}
	return client.Dial(ctx, cfg.LobbyAddr)
}

func requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.Timeout)
}

// stay blocks until ctx is done or, when d is positive, d has elapsed.
// tick runs every interval while waiting when both are set.
func stay(ctx context.Context, d, interval time.Duration, tick func() error) error {
	var deadline <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}
	var ticks <-chan time.Time
	if interval > 0 && tick != nil {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ticks:
			if err := tick(); err != nil {
				return err
			}
		}
	}
}

// leaveRoom leaves on a fresh context so an interrupt still gets a clean exit
func leaveRoom(c *client.Client, roomID model.RoomID) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := c.Leave(ctx, roomID); err != nil {
		return fmt.Errorf("leave %s: %w", roomID, err)
	}
	return nil
}

func newHostCmd() *cobra.Command {
	var (
		id        identity
		spec      model.RoomSpec
		heartbeat time.Duration
		duration  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a room and keep it alive with heartbeats",
		Long: `Log in, create a room and send heartbeats until interrupted, then leave.

The host address and port are what joining players connect to directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := dialLobby(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			deviceID := id.resolve()
			rctx, cancel := requestCtx(ctx)
			defer cancel()
			if _, err := c.Auth(rctx, deviceID, id.nickname); err != nil {
				return fmt.Errorf("auth: %w", err)
			}

			if spec.RoomID == "" {
				spec.RoomID = model.RoomID(string(deviceID) + "-room")
			}
			if spec.RoomName == "" {
				spec.RoomName = string(spec.RoomID)
			}
			spec.HostDeviceID = deviceID

			created, err := c.Create(rctx, spec)
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}
			out := output(cmd)
			out.Print(created)

			err = stay(ctx, duration, heartbeat, func() error {
				hctx, cancel := requestCtx(ctx)
				defer cancel()
				err := c.Heartbeat(hctx, spec.RoomID)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			if err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}

			if err := leaveRoom(c, spec.RoomID); err != nil {
				return err
			}
			out.PrintMessage("Left room " + string(spec.RoomID))
			return nil
		},
	}

	id.bind(cmd)
	cmd.Flags().StringVar((*string)(&spec.RoomID), "room-id", "", "Room id (default: <device>-room)")
	cmd.Flags().StringVar(&spec.RoomName, "name", "", "Room name (default: room id)")
	cmd.Flags().StringVar(&spec.HostAddress, "host-address", "127.0.0.1", "Address players connect to")
	cmd.Flags().IntVar(&spec.HostPort, "host-port", 7777, "Port players connect to")
	cmd.Flags().IntVar(&spec.MaxPlayers, "max-players", 8, "Maximum players including the host")
	cmd.Flags().StringVar(&spec.GameType, "game-type", "", "Game type (default: server default)")
	cmd.Flags().BoolVar(&spec.IsPrivate, "private", false, "Hide the room from public listings")
	cmd.Flags().StringVar(&spec.JoinCode, "join-code", "", "Code players must present to join")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 10*time.Second, "Heartbeat interval")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Leave after this long (default: until interrupted)")

	return cmd
}

func newJoinCmd() *cobra.Command {
	var (
		id        identity
		joinCode  string
		ready     bool
		duration  time.Duration
		keepalive time.Duration
	)

	cmd := &cobra.Command{
		Use:   "join <roomId>",
		Short: "Join a room and stay until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := model.RoomID(args[0])

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := dialLobby(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			rctx, cancel := requestCtx(ctx)
			defer cancel()
			if _, err := c.Auth(rctx, id.resolve(), id.nickname); err != nil {
				return fmt.Errorf("auth: %w", err)
			}

			joined, err := c.Join(rctx, roomID, joinCode)
			if err != nil {
				return fmt.Errorf("join: %w", err)
			}
			out := output(cmd)
			out.Print(joined)

			if ready {
				if err := c.Ready(rctx, true); err != nil {
					return fmt.Errorf("ready: %w", err)
				}
			}

			// Guests have no heartbeat; a periodic player list keeps the connection from idling out
			err = stay(ctx, duration, keepalive, func() error {
				kctx, cancel := requestCtx(ctx)
				defer cancel()
				if _, err := c.Players(kctx, roomID); err != nil {
					return fmt.Errorf("keepalive: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if err := leaveRoom(c, roomID); err != nil {
				return err
			}
			out.PrintMessage("Left room " + string(roomID))
			return nil
		},
	}

	id.bind(cmd)
	cmd.Flags().StringVar(&joinCode, "join-code", "", "Join code for private rooms")
	cmd.Flags().BoolVar(&ready, "ready", false, "Mark this player ready after joining")
	cmd.Flags().DurationVar(&keepalive, "keepalive", 30*time.Second, "Interval between keepalive requests")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Leave after this long (default: until interrupted)")

	return cmd
}
