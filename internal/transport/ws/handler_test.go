package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/lobbyd/internal/audit"
	"github.com/mcoot/lobbyd/internal/dependencies/clock"
	"github.com/mcoot/lobbyd/internal/dependencies/tokens"
	"github.com/mcoot/lobbyd/internal/dispatch"
	"github.com/mcoot/lobbyd/internal/protocol"
	"github.com/mcoot/lobbyd/internal/services/lobby"
	"github.com/mcoot/lobbyd/internal/services/room"
	"github.com/mcoot/lobbyd/internal/services/session"
	"github.com/mcoot/lobbyd/internal/storage/memory"
	"github.com/mcoot/lobbyd/internal/testutil"
	"github.com/mcoot/lobbyd/internal/transport"
)

type HandlerSuite struct {
	suite.Suite
	sessions *session.Registry
	rooms    *room.Registry
	limiter  *transport.Limiter
	handler  *Handler
	server   *httptest.Server
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.start(10)
}

func (s *HandlerSuite) TearDownTest() {
	s.stop()
}

func (s *HandlerSuite) start(maxConnections int) {
	logger := testutil.NopLogger()
	clk := clock.New()
	ids := tokens.New()
	s.sessions = session.New(clk, ids, logger)
	cfg := room.DefaultConfig()
	cfg.JoinCodeCost = bcrypt.MinCost
	s.rooms = room.New(clk, cfg, logger)
	recorder := audit.New(clk, memory.New(100), logger)
	coordinator := lobby.NewCoordinator(s.sessions, s.rooms, recorder, logger)
	dispatcher := dispatch.New(coordinator, recorder, clk, ids, logger)

	s.limiter = transport.NewLimiter(maxConnections)
	s.handler = NewHandler(DefaultConfig(), dispatcher, s.limiter, logger)
	s.server = httptest.NewServer(s.handler)
}

func (s *HandlerSuite) stop() {
	if s.server == nil {
		return
	}
	s.Require().NoError(s.handler.Shutdown(context.Background()))
	s.server.Close()
	s.server = nil
}

func (s *HandlerSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func (s *HandlerSuite) send(conn *websocket.Conn, payload string) protocol.RawResponse {
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(payload)))
	var resp protocol.RawResponse
	s.Require().NoError(conn.ReadJSON(&resp))
	return resp
}

func (s *HandlerSuite) TestRoundTrip() {
	conn := s.dial()

	resp := s.send(conn, `{"type":"auth","deviceId":"A","nickname":"Alice"}`)
	s.Require().True(resp.Success)
	var auth protocol.AuthData
	s.Require().NoError(resp.Decode(&auth))
	s.NotEmpty(auth.SessionToken)

	resp = s.send(conn, `{"type":"create","deviceId":"A","sessionToken":"`+string(auth.SessionToken)+
		`","roomId":"R1","hostAddress":"10.0.0.1","hostPort":7777,"maxPlayers":2,"roomName":"Fun"}`)
	s.Require().True(resp.Success)
	s.Equal(1, s.rooms.Count())
}

func (s *HandlerSuite) TestMalformedFrameKeepsConnection() {
	conn := s.dial()

	resp := s.send(conn, `{"type": oops}`)
	s.Require().NotNil(resp.Error)
	s.Equal(protocol.CodeMalformed, resp.Error.Code)

	resp = s.send(conn, `{"type":"auth","deviceId":"A"}`)
	s.True(resp.Success)
}

func (s *HandlerSuite) TestCloseCleansUp() {
	conn := s.dial()
	resp := s.send(conn, `{"type":"auth","deviceId":"A"}`)
	s.Require().True(resp.Success)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	s.Eventually(func() bool {
		return s.sessions.Count() == 0 && s.limiter.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *HandlerSuite) TestServerFull() {
	s.stop()
	s.start(1)

	first := s.dial()
	resp := s.send(first, `{"type":"auth","deviceId":"A"}`)
	s.Require().True(resp.Success)

	second := s.dial()
	var full protocol.RawResponse
	s.Require().NoError(second.ReadJSON(&full))
	s.Require().NotNil(full.Error)
	s.Equal(protocol.CodeCapacity, full.Error.Code)

	_, _, err := second.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseTryAgainLater))
	s.Equal(1, s.limiter.Active())
}

func (s *HandlerSuite) TestShutdownClosesConnections() {
	conn := s.dial()
	resp := s.send(conn, `{"type":"auth","deviceId":"A"}`)
	s.Require().True(resp.Success)

	s.stop()

	s.Equal(0, s.sessions.Count())
	_, _, err := conn.ReadMessage()
	s.Error(err)
}
