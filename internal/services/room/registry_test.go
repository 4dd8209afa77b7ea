package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/lobbyd/internal/dependencies/mocks"
	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/testutil"
)

// stubDirectory is a fixed set of sessions for member list tests
type stubDirectory map[model.DeviceID]model.PlayerSession

func (d stubDirectory) Lookup(id model.DeviceID) (model.PlayerSession, bool) {
	s, ok := d[id]
	return s, ok
}

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.JoinCodeCost = bcrypt.MinCost
	s.registry = New(s.clock, cfg, testutil.NopLogger())
}

func (s *RegistrySuite) spec(roomID, host string, maxPlayers int) model.RoomSpec {
	return model.RoomSpec{
		RoomID:       model.RoomID(roomID),
		HostDeviceID: model.DeviceID(host),
		HostAddress:  "10.0.0.1",
		HostPort:     7777,
		MaxPlayers:   maxPlayers,
		RoomName:     "Room " + roomID,
	}
}

func (s *RegistrySuite) create(roomID, host string, maxPlayers int) model.Room {
	room, err := s.registry.Create(s.spec(roomID, host, maxPlayers))
	s.Require().NoError(err)
	return room
}

// assertInvariants checks the count/status/host invariants for a room snapshot
func (s *RegistrySuite) assertInvariants(room model.Room) {
	s.LessOrEqual(room.CurrentPlayers(), room.MaxPlayers)
	s.Equal(room.CurrentPlayers() == room.MaxPlayers, room.Status == model.RoomStatusFull)
	s.True(room.HasMember(room.HostDeviceID), "host %s must be a member", room.HostDeviceID)
}

// Create tests

func (s *RegistrySuite) TestCreateAddsHostAsFirstMember() {
	room := s.create("R1", "A", 4)

	s.Equal(model.RoomID("R1"), room.ID)
	s.Equal(model.DeviceID("A"), room.HostDeviceID)
	s.Equal([]model.DeviceID{"A"}, room.Members)
	s.Equal(1, room.CurrentPlayers())
	s.Equal(model.RoomStatusActive, room.Status)
	s.Equal(model.DefaultGameType, room.GameType)
	s.Equal(s.clock.Now(), room.CreatedTime)
	s.Equal(s.clock.Now(), room.LastHeartbeat)
}

func (s *RegistrySuite) TestCreateSingleSeatRoomIsFull() {
	room := s.create("R1", "A", 1)
	s.Equal(model.RoomStatusFull, room.Status)
}

func (s *RegistrySuite) TestCreateKeepsGameType() {
	spec := s.spec("R1", "A", 4)
	spec.GameType = "racing"

	room, err := s.registry.Create(spec)
	s.Require().NoError(err)
	s.Equal("racing", room.GameType)
}

func (s *RegistrySuite) TestCreateRejectsMissingFields() {
	cases := []struct {
		field  string
		mutate func(*model.RoomSpec)
	}{
		{"roomId", func(sp *model.RoomSpec) { sp.RoomID = "" }},
		{"deviceId", func(sp *model.RoomSpec) { sp.HostDeviceID = "" }},
		{"hostAddress", func(sp *model.RoomSpec) { sp.HostAddress = "" }},
		{"hostPort", func(sp *model.RoomSpec) { sp.HostPort = 0 }},
		{"maxPlayers", func(sp *model.RoomSpec) { sp.MaxPlayers = 0 }},
		{"roomName", func(sp *model.RoomSpec) { sp.RoomName = "" }},
	}

	for _, tc := range cases {
		s.Run(tc.field, func() {
			spec := s.spec("R1", "A", 4)
			tc.mutate(&spec)

			_, err := s.registry.Create(spec)

			var fieldErr *model.FieldError
			s.Require().ErrorAs(err, &fieldErr)
			s.Equal(tc.field, fieldErr.Field)
			s.Equal("missing required field: "+tc.field, err.Error())
			s.ErrorIs(err, model.ErrMalformedRequest)
		})
	}
	s.Equal(0, s.registry.Count())
}

func (s *RegistrySuite) TestCreateRejectsNegativeMaxPlayers() {
	spec := s.spec("R1", "A", -2)

	_, err := s.registry.Create(spec)

	var fieldErr *model.FieldError
	s.Require().ErrorAs(err, &fieldErr)
	s.Equal("maxPlayers", fieldErr.Field)
}

func (s *RegistrySuite) TestCreateRejectsDuplicateRoomID() {
	s.create("R1", "A", 4)

	_, err := s.registry.Create(s.spec("R1", "B", 4))
	s.ErrorIs(err, model.ErrRoomExists)
}

func (s *RegistrySuite) TestCreateRejectsHostAlreadyInRoom() {
	s.create("R1", "A", 4)

	_, err := s.registry.Create(s.spec("R2", "A", 4))
	s.ErrorIs(err, model.ErrAlreadyInRoom)
}

func (s *RegistrySuite) TestCreateEnforcesRoomLimit() {
	cfg := DefaultConfig()
	cfg.MaxRooms = 2
	s.registry = New(s.clock, cfg, testutil.NopLogger())

	s.create("R1", "A", 4)
	s.create("R2", "B", 4)

	_, err := s.registry.Create(s.spec("R3", "C", 4))
	s.ErrorIs(err, model.ErrRoomLimitReached)
}

// Join tests

func (s *RegistrySuite) TestJoinAddsMember() {
	s.create("R1", "A", 4)
	s.clock.Advance(time.Second)

	room, err := s.registry.Join("R1", "B", "")
	s.Require().NoError(err)

	s.Equal([]model.DeviceID{"A", "B"}, room.Members)
	s.Equal(s.clock.Now(), room.LastActivity)
	s.assertInvariants(room)
}

func (s *RegistrySuite) TestJoinUnknownRoom() {
	_, err := s.registry.Join("nope", "B", "")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *RegistrySuite) TestJoinFullRoomFailsWithoutMutation() {
	s.create("R1", "A", 2)
	_, err := s.registry.Join("R1", "B", "")
	s.Require().NoError(err)

	_, err = s.registry.Join("R1", "C", "")
	s.ErrorIs(err, model.ErrRoomFull)

	room, _ := s.registry.Get("R1")
	s.Equal([]model.DeviceID{"A", "B"}, room.Members)
	s.Empty(s.registry.RoomsOf("C"))
}

func (s *RegistrySuite) TestJoinTwiceIsRejected() {
	s.create("R1", "A", 4)
	_, _ = s.registry.Join("R1", "B", "")

	_, err := s.registry.Join("R1", "B", "")
	s.ErrorIs(err, model.ErrAlreadyInRoom)
}

func (s *RegistrySuite) TestJoinSecondRoomIsRejected() {
	s.create("R1", "A", 4)
	s.create("R2", "B", 4)

	_, err := s.registry.Join("R2", "A", "")
	s.ErrorIs(err, model.ErrAlreadyInRoom)
}

func (s *RegistrySuite) TestJoinPrivateRoomRequiresCode() {
	spec := s.spec("R1", "A", 4)
	spec.IsPrivate = true
	spec.JoinCode = "s3cret"
	_, err := s.registry.Create(spec)
	s.Require().NoError(err)

	_, err = s.registry.Join("R1", "B", "wrong")
	s.ErrorIs(err, model.ErrInvalidJoinCode)

	_, err = s.registry.Join("R1", "B", "")
	s.ErrorIs(err, model.ErrInvalidJoinCode)

	room, err := s.registry.Join("R1", "B", "s3cret")
	s.Require().NoError(err)
	s.True(room.HasMember("B"))
}

// swapClock runs swap once, the next time the registry reads the clock
type swapClock struct {
	*mocks.MockClock
	swap func()
}

func (c *swapClock) Now() time.Time {
	if swap := c.swap; swap != nil {
		c.swap = nil
		swap()
	}
	return c.MockClock.Now()
}

func (s *RegistrySuite) TestJoinRechecksCodeWhenRoomIsReplaced() {
	clk := &swapClock{MockClock: s.clock}
	cfg := DefaultConfig()
	cfg.JoinCodeCost = bcrypt.MinCost
	s.registry = New(clk, cfg, testutil.NopLogger())
	s.create("R1", "H", 4)

	// Between the code check and the membership change the public room is
	// replaced by a private one with a code
	clk.swap = func() {
		_, err := s.registry.Delete("R1", "H")
		s.Require().NoError(err)
		spec := s.spec("R1", "H", 4)
		spec.IsPrivate = true
		spec.JoinCode = "secret"
		_, err = s.registry.Create(spec)
		s.Require().NoError(err)
	}

	_, err := s.registry.Join("R1", "intruder", "")
	s.ErrorIs(err, model.ErrInvalidJoinCode)

	room, err := s.registry.Get("R1")
	s.Require().NoError(err)
	s.True(room.IsPrivate)
	s.Equal([]model.DeviceID{"H"}, room.Members)
	s.Empty(s.registry.RoomsOf("intruder"))
}

func (s *RegistrySuite) TestJoinRechecksCodeWhenCodeChanges() {
	clk := &swapClock{MockClock: s.clock}
	cfg := DefaultConfig()
	cfg.JoinCodeCost = bcrypt.MinCost
	s.registry = New(clk, cfg, testutil.NopLogger())

	spec := s.spec("R1", "H", 4)
	spec.IsPrivate = true
	spec.JoinCode = "old"
	_, err := s.registry.Create(spec)
	s.Require().NoError(err)

	clk.swap = func() {
		_, err := s.registry.Delete("R1", "H")
		s.Require().NoError(err)
		spec.JoinCode = "new"
		_, err = s.registry.Create(spec)
		s.Require().NoError(err)
	}

	_, err = s.registry.Join("R1", "guest", "old")
	s.ErrorIs(err, model.ErrInvalidJoinCode)
}

func (s *RegistrySuite) TestJoinCodeIsStoredHashed() {
	spec := s.spec("R1", "A", 4)
	spec.IsPrivate = true
	spec.JoinCode = "s3cret"

	room, err := s.registry.Create(spec)
	s.Require().NoError(err)

	s.True(room.HasJoinCode())
	s.NotContains(string(room.JoinCodeHash), "s3cret")
}

func (s *RegistrySuite) TestJoinPublicRoomIgnoresCode() {
	spec := s.spec("R1", "A", 4)
	spec.JoinCode = "s3cret"
	_, err := s.registry.Create(spec)
	s.Require().NoError(err)

	_, err = s.registry.Join("R1", "B", "")
	s.NoError(err)
}

// Leave tests

func (s *RegistrySuite) TestLeaveNonHost() {
	s.create("R1", "A", 4)
	_, _ = s.registry.Join("R1", "B", "")

	result, err := s.registry.Leave("R1", "B")
	s.Require().NoError(err)

	s.False(result.Deleted)
	s.Empty(result.NewHost)
	s.Equal(model.DeviceID("A"), result.Room.HostDeviceID)
	s.Equal([]model.DeviceID{"A"}, result.Room.Members)
	s.Empty(s.registry.RoomsOf("B"))
}

func (s *RegistrySuite) TestLeaveUnknownRoom() {
	_, err := s.registry.Leave("nope", "A")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *RegistrySuite) TestLeaveNotMember() {
	s.create("R1", "A", 4)

	_, err := s.registry.Leave("R1", "B")
	s.ErrorIs(err, model.ErrNotInRoom)
}

func (s *RegistrySuite) TestLeaveHostMigratesToEarliestJoiner() {
	created := s.create("R1", "A", 4)
	_, _ = s.registry.Join("R1", "B", "")
	_, _ = s.registry.Join("R1", "C", "")
	s.clock.Advance(30 * time.Second)

	result, err := s.registry.Leave("R1", "A")
	s.Require().NoError(err)

	s.Equal(model.DeviceID("A"), result.PreviousHost)
	s.Equal(model.DeviceID("B"), result.NewHost)
	s.Equal(model.DeviceID("B"), result.Room.HostDeviceID)
	s.Equal(created.LastHeartbeat, result.Room.LastHeartbeat)
	s.Equal(s.clock.Now(), result.Room.LastActivity)
	s.assertInvariants(result.Room)
}

func (s *RegistrySuite) TestLeaveLastMemberDeletesRoom() {
	s.create("R1", "A", 4)

	result, err := s.registry.Leave("R1", "A")
	s.Require().NoError(err)

	s.True(result.Deleted)
	_, err = s.registry.Get("R1")
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.Empty(s.registry.List(true))
}

func (s *RegistrySuite) TestLeaveFreesDeviceForAnotherRoom() {
	s.create("R1", "A", 4)
	_, _ = s.registry.Join("R1", "B", "")
	_, _ = s.registry.Leave("R1", "B")
	s.create("R2", "C", 4)

	_, err := s.registry.Join("R2", "B", "")
	s.NoError(err)
}

// Delete tests

func (s *RegistrySuite) TestDeleteByHost() {
	s.create("R1", "A", 4)
	_, _ = s.registry.Join("R1", "B", "")

	removed, err := s.registry.Delete("R1", "A")
	s.Require().NoError(err)

	s.Equal(2, removed.CurrentPlayers())
	_, err = s.registry.Get("R1")
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.Empty(s.registry.RoomsOf("B"))
}

func (s *RegistrySuite) TestDeleteByNonHostIsForbidden() {
	s.create("R1", "A", 4)
	_, _ = s.registry.Join("R1", "B", "")

	_, err := s.registry.Delete("R1", "B")
	s.ErrorIs(err, model.ErrNotHost)

	room, err := s.registry.Get("R1")
	s.Require().NoError(err)
	s.Equal(2, room.CurrentPlayers())
}

func (s *RegistrySuite) TestDeleteUnknownRoom() {
	_, err := s.registry.Delete("nope", "A")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// Heartbeat tests

func (s *RegistrySuite) TestHeartbeatUpdatesOnlyLastHeartbeat() {
	created := s.create("R1", "A", 4)
	s.clock.Advance(20 * time.Second)

	s.Require().NoError(s.registry.Heartbeat("R1", "A"))

	room, _ := s.registry.Get("R1")
	s.Equal(s.clock.Now(), room.LastHeartbeat)
	s.Equal(created.LastActivity, room.LastActivity)
	s.Equal(created.Members, room.Members)
}

func (s *RegistrySuite) TestHeartbeatUnknownRoom() {
	s.ErrorIs(s.registry.Heartbeat("nope", "A"), model.ErrRoomNotFound)
}

func (s *RegistrySuite) TestHeartbeatFromNonHostIsRejected() {
	created := s.create("R1", "A", 4)
	_, err := s.registry.Join("R1", "B", "")
	s.Require().NoError(err)
	s.clock.Advance(20 * time.Second)

	s.ErrorIs(s.registry.Heartbeat("R1", "B"), model.ErrNotHost)
	s.ErrorIs(s.registry.Heartbeat("R1", "C"), model.ErrNotHost)

	room, _ := s.registry.Get("R1")
	s.Equal(created.LastHeartbeat, room.LastHeartbeat)
}

func (s *RegistrySuite) TestHeartbeatFollowsMigratedHost() {
	s.create("R1", "A", 4)
	_, err := s.registry.Join("R1", "B", "")
	s.Require().NoError(err)
	_, err = s.registry.Leave("R1", "A")
	s.Require().NoError(err)

	s.ErrorIs(s.registry.Heartbeat("R1", "A"), model.ErrNotHost)
	s.Require().NoError(s.registry.Heartbeat("R1", "B"))
}

// List / Members tests

func (s *RegistrySuite) TestListHidesPrivateRooms() {
	s.create("R1", "A", 4)
	spec := s.spec("R2", "B", 4)
	spec.IsPrivate = true
	_, err := s.registry.Create(spec)
	s.Require().NoError(err)

	public := s.registry.List(false)
	s.Require().Len(public, 1)
	s.Equal(model.RoomID("R1"), public[0].ID)

	all := s.registry.List(true)
	s.Require().Len(all, 2)
	s.Equal(model.RoomID("R1"), all[0].ID)
	s.Equal(model.RoomID("R2"), all[1].ID)
}

func (s *RegistrySuite) TestListEmptyIsNotNil() {
	s.NotNil(s.registry.List(false))
}

func (s *RegistrySuite) TestMembers() {
	s.create("R1", "A", 4)
	_, _ = s.registry.Join("R1", "B", "")
	dir := stubDirectory{
		"A": {DeviceID: "A", Nickname: "Alice"},
		"B": {DeviceID: "B", Nickname: "Bob", IsReady: true},
	}

	members := s.registry.Members("R1", dir)

	s.Equal([]model.MemberSummary{
		{Nickname: "Alice", DeviceID: "A", IsHost: true, IsReady: false},
		{Nickname: "Bob", DeviceID: "B", IsHost: false, IsReady: true},
	}, members)
}

func (s *RegistrySuite) TestMembersToleratesVanishedSession() {
	s.create("R1", "A", 4)

	members := s.registry.Members("R1", stubDirectory{})

	s.Require().Len(members, 1)
	s.Equal(model.DeviceID("A"), members[0].DeviceID)
	s.Empty(members[0].Nickname)
}

func (s *RegistrySuite) TestMembersUnknownRoomIsEmpty() {
	members := s.registry.Members("nope", stubDirectory{})
	s.NotNil(members)
	s.Empty(members)
}

// Stale tests

func (s *RegistrySuite) TestStale() {
	s.create("R1", "A", 4)
	s.clock.Advance(30 * time.Second)
	s.create("R2", "B", 4)
	s.clock.Advance(31 * time.Second)

	stale := s.registry.Stale(s.clock.Now(), time.Minute)

	s.Require().Len(stale, 1)
	s.Equal(model.RoomID("R1"), stale[0].ID)
}

// Scenario from the lifecycle walkthrough

func (s *RegistrySuite) TestScenarioCapacityAndMigration() {
	s.create("R1", "A", 2)

	room, err := s.registry.Join("R1", "B", "")
	s.Require().NoError(err)
	s.Equal(2, room.CurrentPlayers())
	s.Equal(model.RoomStatusFull, room.Status)

	_, err = s.registry.Join("R1", "C", "")
	s.ErrorIs(err, model.ErrRoomFull)

	result, err := s.registry.Leave("R1", "A")
	s.Require().NoError(err)
	s.Equal(model.DeviceID("B"), result.Room.HostDeviceID)
	s.Equal(model.RoomStatusActive, result.Room.Status)
	s.Equal(1, result.Room.CurrentPlayers())

	result, err = s.registry.Leave("R1", "B")
	s.Require().NoError(err)
	s.True(result.Deleted)
	_, err = s.registry.Get("R1")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// Concurrency

func (s *RegistrySuite) TestConcurrentJoinsNeverExceedCapacity() {
	const capacity = 5
	const joiners = 40
	s.create("R1", "host", capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.registry.Join("R1", model.DeviceID(fmt.Sprintf("p%d", i)), "")
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			} else {
				s.ErrorIs(err, model.ErrRoomFull)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(capacity-1, admitted)
	room, _ := s.registry.Get("R1")
	s.Equal(capacity, room.CurrentPlayers())
	s.assertInvariants(room)
}

func (s *RegistrySuite) TestConcurrentJoinLeaveKeepsInvariants() {
	s.create("R1", "host", 3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.DeviceID(fmt.Sprintf("p%d", i))
			for j := 0; j < 25; j++ {
				if _, err := s.registry.Join("R1", id, ""); err == nil {
					_, _ = s.registry.Leave("R1", id)
				}
			}
		}(i)
	}
	wg.Wait()

	room, err := s.registry.Get("R1")
	s.Require().NoError(err)
	s.Equal([]model.DeviceID{"host"}, room.Members)
	s.assertInvariants(room)
}
