package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbyd/internal/model"
)

type MetricsSuite struct {
	suite.Suite
	metrics *Metrics
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsSuite))
}

func (s *MetricsSuite) SetupTest() {
	s.metrics = New()
}

func (s *MetricsSuite) TestObserveRequest() {
	s.metrics.ObserveRequest("join", 101, time.Millisecond)
	s.metrics.ObserveRequest("join", 101, time.Millisecond)
	s.metrics.ObserveRequest("join", 200, time.Millisecond)

	s.Equal(2.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("join", "101")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("join", "200")))
}

func (s *MetricsSuite) TestConnections() {
	s.metrics.ConnectionOpened("tcp")
	s.metrics.ConnectionOpened("tcp")
	s.metrics.ConnectionClosed("tcp")
	s.metrics.ConnectionRejected("ws")

	s.Equal(1.0, testutil.ToFloat64(s.metrics.connections.WithLabelValues("tcp")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.rejected.WithLabelValues("ws")))
}

func (s *MetricsSuite) TestObserveEvent() {
	s.metrics.ObserveEvent(model.Event{Type: model.EventRoomEvicted})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.events.WithLabelValues("room_evicted")))
}

func (s *MetricsSuite) TestHandlerExposesGauges() {
	s.metrics.TrackSessions(func() int { return 3 })
	s.metrics.TrackRooms(func() int { return 2 })

	rec := httptest.NewRecorder()
	s.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "lobby_sessions 3")
	s.Contains(body, "lobby_rooms 2")
	s.Contains(body, "go_goroutines")
}
