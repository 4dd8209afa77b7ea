package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/protocol"
)

// Client speaks the lobby protocol over a single TCP or websocket connection.
// Requests are serialised; each waits for its response.
type Client struct {
	link link

	reqMu sync.Mutex

	mu    sync.Mutex
	creds model.Credentials
}

// link carries one request and its response
type link interface {
	exchange(ctx context.Context, raw []byte) (protocol.RawResponse, error)
	close() error
}

// Dial connects to a lobby server over TCP
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// DialWebsocket connects to a lobby server's websocket endpoint, e.g. ws://host:8080/ws
func DialWebsocket(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{link: &wsLink{conn: conn}}, nil
}

// New wraps an established stream connection
func New(conn net.Conn) *Client {
	return &Client{link: &streamLink{conn: conn, dec: json.NewDecoder(conn)}}
}

// Close closes the connection
func (c *Client) Close() error {
	return c.link.close()
}

// Credentials returns the identity obtained by the last successful Auth
func (c *Client) Credentials() model.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// Do sends a request and waits for its response envelope
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.RawResponse, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return protocol.RawResponse{}, err
	}
	return c.DoRaw(ctx, raw)
}

// DoRaw sends raw bytes as a message and waits for one response
func (c *Client) DoRaw(ctx context.Context, raw []byte) (protocol.RawResponse, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	resp, err := c.link.exchange(ctx, raw)
	if err != nil {
		return protocol.RawResponse{}, ctxErr(ctx, err)
	}
	return resp, nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}

// streamLink frames messages as consecutive JSON values on a byte stream
type streamLink struct {
	conn net.Conn
	dec  *json.Decoder
}

func (l *streamLink) exchange(ctx context.Context, raw []byte) (protocol.RawResponse, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = l.conn.SetDeadline(deadline)
	} else {
		_ = l.conn.SetDeadline(time.Time{})
	}
	// Unblock the read if ctx is cancelled mid-request
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := l.conn.Write(append(slices.Clip(raw), '\n')); err != nil {
		return protocol.RawResponse{}, err
	}

	var resp protocol.RawResponse
	if err := l.dec.Decode(&resp); err != nil {
		return protocol.RawResponse{}, err
	}
	return resp, nil
}

func (l *streamLink) close() error {
	return l.conn.Close()
}

// wsLink sends each message as one text frame.
// A cancelled request leaves the websocket unusable.
type wsLink struct {
	conn *websocket.Conn
}

func (l *wsLink) exchange(ctx context.Context, raw []byte) (protocol.RawResponse, error) {
	deadline, _ := ctx.Deadline()
	_ = l.conn.SetWriteDeadline(deadline)
	_ = l.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := l.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return protocol.RawResponse{}, err
	}

	var resp protocol.RawResponse
	if err := l.conn.ReadJSON(&resp); err != nil {
		return protocol.RawResponse{}, err
	}
	return resp, nil
}

func (l *wsLink) close() error {
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return l.conn.Close()
}

// call sends req with the stored credentials and decodes a successful payload into out
func (c *Client) call(ctx context.Context, req protocol.Request, out any) error {
	creds := c.Credentials()
	req.DeviceID = creds.DeviceID
	req.SessionToken = creds.SessionToken

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Auth logs the device in and remembers the issued token for later calls
func (c *Client) Auth(ctx context.Context, deviceID model.DeviceID, nickname string) (model.SessionToken, error) {
	resp, err := c.Do(ctx, protocol.Request{
		Type:     protocol.TypeAuth,
		DeviceID: deviceID,
		Nickname: nickname,
	})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}

	var data protocol.AuthData
	if err := resp.Decode(&data); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.creds = model.Credentials{DeviceID: deviceID, SessionToken: data.SessionToken}
	c.mu.Unlock()
	return data.SessionToken, nil
}

// Create registers a room hosted by this client
func (c *Client) Create(ctx context.Context, spec model.RoomSpec) (protocol.CreateData, error) {
	var data protocol.CreateData
	err := c.call(ctx, protocol.Request{
		Type:        protocol.TypeCreate,
		RoomID:      spec.RoomID,
		HostAddress: spec.HostAddress,
		HostPort:    spec.HostPort,
		MaxPlayers:  spec.MaxPlayers,
		RoomName:    spec.RoomName,
		GameType:    spec.GameType,
		IsPrivate:   spec.IsPrivate,
		JoinCode:    spec.JoinCode,
	}, &data)
	return data, err
}

// List returns the visible rooms
func (c *Client) List(ctx context.Context, includePrivate bool) ([]protocol.RoomInfo, error) {
	var data protocol.ListData
	err := c.call(ctx, protocol.Request{Type: protocol.TypeList, IncludePrivate: includePrivate}, &data)
	return data.Rooms, err
}

// Join enters a room and returns where its host can be reached
func (c *Client) Join(ctx context.Context, roomID model.RoomID, joinCode string) (protocol.JoinData, error) {
	var data protocol.JoinData
	err := c.call(ctx, protocol.Request{Type: protocol.TypeJoin, RoomID: roomID, JoinCode: joinCode}, &data)
	return data, err
}

// Leave exits a room
func (c *Client) Leave(ctx context.Context, roomID model.RoomID) error {
	return c.call(ctx, protocol.Request{Type: protocol.TypeLeave, RoomID: roomID}, nil)
}

// Heartbeat signals that the hosted room is alive
func (c *Client) Heartbeat(ctx context.Context, roomID model.RoomID) error {
	return c.call(ctx, protocol.Request{Type: protocol.TypeHeartbeat, RoomID: roomID}, nil)
}

// Players lists the members of a room
func (c *Client) Players(ctx context.Context, roomID model.RoomID) ([]model.MemberSummary, error) {
	var members []model.MemberSummary
	err := c.call(ctx, protocol.Request{Type: protocol.TypePlayerList, RoomID: roomID}, &members)
	return members, err
}

// Delete removes a room hosted by this client
func (c *Client) Delete(ctx context.Context, roomID model.RoomID) error {
	return c.call(ctx, protocol.Request{Type: protocol.TypeDelete, RoomID: roomID}, nil)
}

// Ready sets this client's ready flag
func (c *Client) Ready(ctx context.Context, ready bool) error {
	return c.call(ctx, protocol.Request{Type: protocol.TypeReady, IsReady: ready}, nil)
}
