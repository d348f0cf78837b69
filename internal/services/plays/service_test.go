package plays

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/boardgame-groups/internal/consistency"
	"github.com/mcoot/boardgame-groups/internal/dependencies/mocks"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/services/groups"
	"github.com/mcoot/boardgame-groups/internal/storage/memory"
	"github.com/mcoot/boardgame-groups/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	ids     *mocks.MockIDGen
	events  *mocks.EventRecorder
	groups  *groups.Service
	service *Service
	ctx     context.Context

	alice *model.User
	bob   *model.User
	carol *model.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ids = mocks.NewMockIDGen()
	s.events = mocks.NewEventRecorder()
	coordinator := consistency.New(s.storage, s.clock, testutil.NopLogger())
	s.groups = groups.New(s.storage, coordinator, s.events, s.clock, s.ids, testutil.NopLogger())
	s.service = New(s.storage, s.groups, s.clock, s.ids, testutil.NopLogger())
	s.ctx = context.Background()

	s.alice = s.createUser("alice")
	s.bob = s.createUser("bob")
	s.carol = s.createUser("carol")

	_, err := s.groups.Create(s.ctx, s.alice, groups.CreateRequest{Identifier: "friday"})
	s.Require().NoError(err)
	_, err = s.groups.AddMember(s.ctx, "friday", s.alice, "bob")
	s.Require().NoError(err)
	_, err = s.groups.AddGame(s.ctx, "friday", s.alice, model.GameDetails{Name: "Catan"})
	s.Require().NoError(err)
	s.events.Reset()
}

func (s *ServiceSuite) createUser(username string) *model.User {
	user := &model.User{
		ID:        model.UserID(s.ids.NewID()),
		Username:  username,
		Groups:    []model.GroupID{},
		CreatedAt: s.clock.Now(),
	}
	s.Require().NoError(s.storage.CreateUser(s.ctx, user))
	return user
}

func (s *ServiceSuite) record(game string, results ...model.PlayerResult) *model.Play {
	play, err := s.service.Record(s.ctx, s.alice, RecordRequest{Group: "friday", Game: game, Players: results})
	s.Require().NoError(err)
	return play
}

// Record tests

func (s *ServiceSuite) TestRecordSucceeds() {
	play, err := s.service.Record(s.ctx, s.bob, RecordRequest{
		Group: "FRIDAY",
		Game:  "catan",
		Players: []model.PlayerResult{
			{Username: "Alice", Score: 10, Placement: 1},
			{Username: "bob", Score: 7, Placement: 2},
		},
	})
	s.Require().NoError(err)

	s.Equal("Catan", play.Game)
	s.Equal("bob", play.RecordedBy)
	s.Equal(s.clock.Now(), play.PlayedAt)
	s.Equal("alice", play.Players[0].Username)

	stored, err := s.storage.GetPlay(s.ctx, play.ID)
	s.Require().NoError(err)
	s.Equal(play.GroupID, stored.GroupID)

	events := s.events.Events()
	s.Require().Len(events, 1)
	s.Equal(model.EventPlayRecorded, events[0].Type)
	s.Equal(model.PlayPayload{PlayID: play.ID, Game: "Catan"}, events[0].Payload)
}

func (s *ServiceSuite) TestRecordUsesGivenPlayedAt() {
	at := time.Date(2023, 12, 24, 20, 0, 0, 0, time.UTC)

	play, err := s.service.Record(s.ctx, s.alice, RecordRequest{
		Group:    "friday",
		Game:     "Catan",
		Players:  []model.PlayerResult{{Username: "alice"}},
		PlayedAt: &at,
	})
	s.Require().NoError(err)
	s.Equal(at, play.PlayedAt)
}

func (s *ServiceSuite) TestRecordGameMissingFromRoster() {
	_, err := s.service.Record(s.ctx, s.alice, RecordRequest{
		Group:   "friday",
		Game:    "Azul",
		Players: []model.PlayerResult{{Username: "alice"}},
	})
	s.ErrorIs(err, model.ErrPlayGameNotInRoster)
	s.Contains(err.Error(), "Azul")

	_, err = s.groups.AddGame(s.ctx, "friday", s.alice, model.GameDetails{Name: "Azul"})
	s.Require().NoError(err)

	_, err = s.service.Record(s.ctx, s.alice, RecordRequest{
		Group:   "friday",
		Game:    "Azul",
		Players: []model.PlayerResult{{Username: "alice"}},
	})
	s.NoError(err)
}

func (s *ServiceSuite) TestRecordByNonMember() {
	_, err := s.service.Record(s.ctx, s.carol, RecordRequest{
		Group:   "friday",
		Game:    "Catan",
		Players: []model.PlayerResult{{Username: "carol"}},
	})
	s.ErrorIs(err, model.ErrGroupNotFound)
}

func (s *ServiceSuite) TestRecordValidatesPlayers() {
	cases := [][]model.PlayerResult{
		nil,
		{{Username: " "}},
		{{Username: "alice"}, {Username: "ALICE"}},
		{{Username: "alice", Placement: -1}},
	}
	for _, players := range cases {
		_, err := s.service.Record(s.ctx, s.alice, RecordRequest{Group: "friday", Game: "Catan", Players: players})
		s.ErrorIs(err, model.ErrInvalidPlay, "players %+v", players)
	}
}

// List tests

func (s *ServiceSuite) TestListForGroupNewestFirst() {
	first := s.record("Catan", model.PlayerResult{Username: "alice"})
	s.clock.Advance(time.Hour)
	second := s.record("Catan", model.PlayerResult{Username: "bob"})

	plays, err := s.service.ListForGroup(s.ctx, "friday", s.bob)
	s.Require().NoError(err)
	s.Require().Len(plays, 2)
	s.Equal(second.ID, plays[0].ID)
	s.Equal(first.ID, plays[1].ID)

	_, err = s.service.ListForGroup(s.ctx, "friday", s.carol)
	s.ErrorIs(err, model.ErrGroupNotFound)
}

func (s *ServiceSuite) TestListForUser() {
	s.record("Catan", model.PlayerResult{Username: "alice"}, model.PlayerResult{Username: "bob"})
	s.record("Catan", model.PlayerResult{Username: "alice"})

	plays, err := s.service.ListForUser(s.ctx, s.bob)
	s.Require().NoError(err)
	s.Len(plays, 1)

	plays, err = s.service.ListForUser(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Len(plays, 2)
}

// Delete tests

func (s *ServiceSuite) TestDeleteByMember() {
	play := s.record("Catan", model.PlayerResult{Username: "alice"})
	s.events.Reset()

	s.Require().NoError(s.service.Delete(s.ctx, play.ID, s.bob))

	_, err := s.storage.GetPlay(s.ctx, play.ID)
	s.ErrorIs(err, model.ErrPlayNotFound)
	s.Equal([]model.EventType{model.EventPlayDeleted}, s.events.Types())
}

func (s *ServiceSuite) TestDeleteByNonMemberLooksMissing() {
	play := s.record("Catan", model.PlayerResult{Username: "alice"})

	err := s.service.Delete(s.ctx, play.ID, s.carol)
	s.ErrorIs(err, model.ErrPlayNotFound)

	_, err = s.storage.GetPlay(s.ctx, play.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestDeleteUnknownPlay() {
	err := s.service.Delete(s.ctx, "missing", s.alice)
	s.ErrorIs(err, model.ErrPlayNotFound)
}

func (s *ServiceSuite) TestGroupDeletionDropsPlays() {
	play := s.record("Catan", model.PlayerResult{Username: "alice"})

	s.Require().NoError(s.groups.Delete(s.ctx, "friday", s.alice))

	_, err := s.storage.GetPlay(s.ctx, play.ID)
	s.ErrorIs(err, model.ErrPlayNotFound)
}

// Stats tests

func (s *ServiceSuite) TestStats() {
	_, err := s.groups.AddGame(s.ctx, "friday", s.alice, model.GameDetails{Name: "Azul"})
	s.Require().NoError(err)

	s.record("Catan", model.PlayerResult{Username: "alice", Placement: 1}, model.PlayerResult{Username: "bob", Placement: 2})
	s.record("Catan", model.PlayerResult{Username: "alice", Placement: 2}, model.PlayerResult{Username: "bob", Placement: 1})
	s.record("catan", model.PlayerResult{Username: "alice", Placement: 1})
	s.record("Azul", model.PlayerResult{Username: "bob", Placement: 1})

	stats, err := s.service.Stats(s.ctx, "friday", s.bob)
	s.Require().NoError(err)
	s.Equal([]model.MemberGameStats{
		{Username: "alice", Game: "Catan", Plays: 3, Wins: 2},
		{Username: "bob", Game: "Azul", Plays: 1, Wins: 1},
		{Username: "bob", Game: "Catan", Plays: 2, Wins: 1},
	}, stats)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
