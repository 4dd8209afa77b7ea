package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbyd/internal/dependencies/mocks"
	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/storage/memory"
	"github.com/mcoot/lobbyd/internal/testutil"
)

// failingLog rejects every append
type failingLog struct{}

func (failingLog) Append(context.Context, model.Event) error { return errors.New("disk full") }
func (failingLog) Recent(context.Context, int) ([]model.Event, error) {
	return nil, nil
}
func (failingLog) Close() error { return nil }

type RecorderSuite struct {
	suite.Suite
	clock    *mocks.MockClock
	log      *memory.Storage
	recorder *Recorder
	ctx      context.Context
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.log = memory.New(10)
	s.recorder = New(s.clock, s.log, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *RecorderSuite) TestRecordStampsTimestamp() {
	s.recorder.Record(s.ctx, model.Event{Type: model.EventRoomCreated, RoomID: "R1"})

	events, err := s.recorder.Recent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(s.clock.Now(), events[0].Timestamp)
	s.Equal(model.RoomID("R1"), events[0].RoomID)
}

func (s *RecorderSuite) TestRecordKeepsExplicitTimestamp() {
	ts := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	s.recorder.Record(s.ctx, model.Event{Type: model.EventConnected, Timestamp: ts})

	events, _ := s.recorder.Recent(s.ctx, 1)
	s.Equal(ts, events[0].Timestamp)
}

func (s *RecorderSuite) TestRecordLogsEvent() {
	logger, buf := testutil.CaptureLogger()
	recorder := New(s.clock, s.log, logger)

	recorder.Record(s.ctx, model.Event{Type: model.EventRoomJoined, RoomID: "R1", DeviceID: "dev-1"})

	s.Contains(buf.String(), `"event":"room_joined"`)
	s.Contains(buf.String(), `"room_id":"R1"`)
	s.Contains(buf.String(), `"device_id":"dev-1"`)
}

func (s *RecorderSuite) TestAppendFailureIsLoggedNotFatal() {
	logger, buf := testutil.CaptureLogger()
	recorder := New(s.clock, failingLog{}, logger)

	var seen []model.EventType
	recorder.Observe(func(e model.Event) { seen = append(seen, e.Type) })

	recorder.Record(s.ctx, model.Event{Type: model.EventRoomLeft})

	s.Contains(buf.String(), "failed to append audit event")
	s.Equal([]model.EventType{model.EventRoomLeft}, seen)
}

func (s *RecorderSuite) TestObserversAreCalled() {
	counts := map[model.EventType]int{}
	s.recorder.Observe(func(e model.Event) { counts[e.Type]++ })

	s.recorder.Record(s.ctx, model.Event{Type: model.EventRoomCreated})
	s.recorder.Record(s.ctx, model.Event{Type: model.EventRoomCreated})
	s.recorder.Record(s.ctx, model.Event{Type: model.EventRoomDeleted})

	s.Equal(2, counts[model.EventRoomCreated])
	s.Equal(1, counts[model.EventRoomDeleted])
}
