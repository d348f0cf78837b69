// Package storagetest holds a behaviour suite that every storage backend
// must pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// Suite exercises a storage.Storage implementation. Backends embed it and
// provide NewStorage.
type Suite struct {
	suite.Suite

	// NewStorage returns a fresh, empty storage for each test
	NewStorage func(t *testing.T) storage.Storage

	Storage storage.Storage
	Ctx     context.Context
	Now     time.Time
}

func (s *Suite) SetupTest() {
	s.Storage = s.NewStorage(s.T())
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) newUser(id, username, email string) *model.User {
	return &model.User{
		ID:           model.UserID(id),
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		Groups:       []model.GroupID{},
		CreatedAt:    s.Now,
		UpdatedAt:    s.Now,
	}
}

func (s *Suite) newGroup(id, identifier string) *model.Group {
	return &model.Group{
		ID:          model.GroupID(id),
		Identifier:  identifier,
		DisplayName: identifier,
		Owners:      []string{"alice"},
		Members:     []model.GroupMember{{UserID: "u1", Username: "alice", JoinedAt: s.Now}},
		Games:       []model.GroupGame{},
		CreatedAt:   s.Now,
		UpdatedAt:   s.Now,
	}
}

// User tests

func (s *Suite) TestCreateAndGetUser() {
	user := s.newUser("u1", "alice", "alice@example.com")
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, user))
	s.Equal(int64(1), user.Version)

	byID, err := s.Storage.GetUser(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
	s.Equal(int64(1), byID.Version)

	byName, err := s.Storage.GetUserByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), byName.ID)

	byEmail, err := s.Storage.GetUserByEmail(s.Ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), byEmail.ID)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Storage.GetUser(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.Storage.GetUserByUsername(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.Storage.GetUserByEmail(s.Ctx, "missing@example.com")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestCreateUserDuplicates() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u1", "alice", "alice@example.com")))

	err := s.Storage.CreateUser(s.Ctx, s.newUser("u2", "alice", "other@example.com"))
	s.ErrorIs(err, model.ErrUsernameTaken)

	err = s.Storage.CreateUser(s.Ctx, s.newUser("u3", "bob", "alice@example.com"))
	s.ErrorIs(err, model.ErrEmailTaken)
}

func (s *Suite) TestUsersWithoutEmailDoNotCollide() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u1", "alice", "")))
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u2", "bob", "")))

	_, err := s.Storage.GetUserByEmail(s.Ctx, "")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestSaveUserBumpsVersion() {
	user := s.newUser("u1", "alice", "alice@example.com")
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, user))

	user.AddGroup("g1")
	s.Require().NoError(s.Storage.SaveUser(s.Ctx, user))
	s.Equal(int64(2), user.Version)

	stored, err := s.Storage.GetUser(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal([]model.GroupID{"g1"}, stored.Groups)
	s.Equal(int64(2), stored.Version)
}

func (s *Suite) TestSaveUserVersionConflict() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u1", "alice", "")))

	first, err := s.Storage.GetUser(s.Ctx, "u1")
	s.Require().NoError(err)
	second, err := s.Storage.GetUser(s.Ctx, "u1")
	s.Require().NoError(err)

	first.AddGroup("g1")
	s.Require().NoError(s.Storage.SaveUser(s.Ctx, first))

	second.AddGroup("g2")
	s.ErrorIs(s.Storage.SaveUser(s.Ctx, second), model.ErrVersionConflict)

	stored, err := s.Storage.GetUser(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal([]model.GroupID{"g1"}, stored.Groups)
}

func (s *Suite) TestSaveUserRenameMovesIndexes() {
	user := s.newUser("u1", "alice", "alice@example.com")
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, user))

	user.Username = "alicia"
	user.Email = "alicia@example.com"
	s.Require().NoError(s.Storage.SaveUser(s.Ctx, user))

	_, err := s.Storage.GetUserByUsername(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrUserNotFound)
	_, err = s.Storage.GetUserByEmail(s.Ctx, "alice@example.com")
	s.ErrorIs(err, model.ErrUserNotFound)

	renamed, err := s.Storage.GetUserByUsername(s.Ctx, "alicia")
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), renamed.ID)

	// the old name is free again
	s.NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u2", "alice", "alice@example.com")))
}

func (s *Suite) TestSaveUserRenameCollision() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u1", "alice", "alice@example.com")))
	bob := s.newUser("u2", "bob", "bob@example.com")
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, bob))

	bob.Username = "alice"
	s.ErrorIs(s.Storage.SaveUser(s.Ctx, bob), model.ErrUsernameTaken)

	bob, err := s.Storage.GetUser(s.Ctx, "u2")
	s.Require().NoError(err)
	bob.Email = "alice@example.com"
	s.ErrorIs(s.Storage.SaveUser(s.Ctx, bob), model.ErrEmailTaken)
}

func (s *Suite) TestSaveUserNotFound() {
	user := s.newUser("u1", "alice", "")
	user.Version = 1
	s.ErrorIs(s.Storage.SaveUser(s.Ctx, user), model.ErrUserNotFound)
}

func (s *Suite) TestListUsersSortedByUsername() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u1", "carol", "")))
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u2", "alice", "")))
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u3", "bob", "")))

	users, err := s.Storage.ListUsers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 3)
	s.Equal("alice", users[0].Username)
	s.Equal("bob", users[1].Username)
	s.Equal("carol", users[2].Username)
}

func (s *Suite) TestDeleteUser() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u1", "alice", "alice@example.com")))
	s.Require().NoError(s.Storage.DeleteUser(s.Ctx, "u1"))

	_, err := s.Storage.GetUser(s.Ctx, "u1")
	s.ErrorIs(err, model.ErrUserNotFound)
	_, err = s.Storage.GetUserByUsername(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrUserNotFound)

	// deleting again is a no-op
	s.NoError(s.Storage.DeleteUser(s.Ctx, "u1"))
	s.NoError(s.Storage.CreateUser(s.Ctx, s.newUser("u2", "alice", "alice@example.com")))
}

// Group tests

func (s *Suite) TestCreateAndGetGroup() {
	group := s.newGroup("g1", "friday")
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, group))
	s.Equal(int64(1), group.Version)

	byID, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	s.Equal("friday", byID.Identifier)
	s.True(byID.IsOwner("alice"))
	s.True(byID.IsMember("alice"))

	byIdent, err := s.Storage.GetGroupByIdentifier(s.Ctx, "friday")
	s.Require().NoError(err)
	s.Equal(model.GroupID("g1"), byIdent.ID)
}

func (s *Suite) TestGetGroupNotFound() {
	_, err := s.Storage.GetGroup(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrGroupNotFound)

	_, err = s.Storage.GetGroupByIdentifier(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrGroupNotFound)
}

func (s *Suite) TestCreateGroupDuplicateIdentifier() {
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g1", "friday")))
	s.ErrorIs(s.Storage.CreateGroup(s.Ctx, s.newGroup("g2", "friday")), model.ErrGroupIdentifierTaken)
}

func (s *Suite) TestSaveGroupVersioning() {
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g1", "friday")))

	first, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	stale, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.Require().NoError(err)

	first.Games = append(first.Games, model.GroupGame{GameDetails: model.GameDetails{Name: "azul"}})
	s.Require().NoError(s.Storage.SaveGroup(s.Ctx, first))
	s.Equal(int64(2), first.Version)

	stale.Description = "lost update"
	s.ErrorIs(s.Storage.SaveGroup(s.Ctx, stale), model.ErrVersionConflict)

	stored, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	s.True(stored.HasGame("Azul"))
	s.Empty(stored.Description)
}

func (s *Suite) TestSaveGroupChangesIdentifier() {
	group := s.newGroup("g1", "friday")
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, group))
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g2", "saturday")))

	group.Identifier = "saturday"
	s.ErrorIs(s.Storage.SaveGroup(s.Ctx, group), model.ErrGroupIdentifierTaken)

	group, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	group.Identifier = "sunday"
	s.Require().NoError(s.Storage.SaveGroup(s.Ctx, group))

	_, err = s.Storage.GetGroupByIdentifier(s.Ctx, "friday")
	s.ErrorIs(err, model.ErrGroupNotFound)
	moved, err := s.Storage.GetGroupByIdentifier(s.Ctx, "sunday")
	s.Require().NoError(err)
	s.Equal(model.GroupID("g1"), moved.ID)
}

func (s *Suite) TestGetGroupsSkipsMissing() {
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g1", "friday")))
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g2", "saturday")))

	groups, err := s.Storage.GetGroups(s.Ctx, []model.GroupID{"g1", "gone", "g2"})
	s.Require().NoError(err)
	s.Len(groups, 2)

	groups, err = s.Storage.GetGroups(s.Ctx, nil)
	s.Require().NoError(err)
	s.Empty(groups)
}

func (s *Suite) TestDeleteGroupFreesIdentifier() {
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g1", "friday")))
	s.Require().NoError(s.Storage.DeleteGroup(s.Ctx, "g1"))

	_, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.ErrorIs(err, model.ErrGroupNotFound)
	s.NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g2", "friday")))
}

// Catalog tests

func (s *Suite) TestCreateAndGetGame() {
	game := &model.Game{
		ID:          "c1",
		GameDetails: model.GameDetails{Name: "azul", MinPlayers: 2, MaxPlayers: 4},
		Source:      model.GameSourceBGG,
		ExternalID:  "230802",
		CreatedAt:   s.Now,
	}
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, game))

	byID, err := s.Storage.GetGame(s.Ctx, "c1")
	s.Require().NoError(err)
	s.Equal("azul", byID.Name)
	s.Equal(4, byID.MaxPlayers)
	s.Equal("230802", byID.ExternalID)

	byName, err := s.Storage.GetGameByName(s.Ctx, "azul")
	s.Require().NoError(err)
	s.Equal(model.GameID("c1"), byName.ID)

	s.ErrorIs(s.Storage.CreateGame(s.Ctx, &model.Game{ID: "c2", GameDetails: model.GameDetails{Name: "azul"}}), model.ErrGameExists)
}

func (s *Suite) TestGameNotFound() {
	_, err := s.Storage.GetGame(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrGameNotFound)
	_, err = s.Storage.GetGameByName(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestListAndDeleteGames() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, &model.Game{ID: "c1", GameDetails: model.GameDetails{Name: "wingspan"}}))
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, &model.Game{ID: "c2", GameDetails: model.GameDetails{Name: "azul"}}))

	games, err := s.Storage.ListGames(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(games, 2)
	s.Equal("azul", games[0].Name)
	s.Equal("wingspan", games[1].Name)

	s.Require().NoError(s.Storage.DeleteGame(s.Ctx, "c2"))
	games, err = s.Storage.ListGames(s.Ctx)
	s.Require().NoError(err)
	s.Len(games, 1)
	_, err = s.Storage.GetGameByName(s.Ctx, "azul")
	s.ErrorIs(err, model.ErrGameNotFound)
}

// Play tests

func (s *Suite) newPlay(id, groupID string, at time.Time, players ...string) *model.Play {
	results := make([]model.PlayerResult, len(players))
	for i, p := range players {
		results[i] = model.PlayerResult{Username: p, Placement: i + 1}
	}
	return &model.Play{
		ID:         model.PlayID(id),
		GroupID:    model.GroupID(groupID),
		Game:       "azul",
		Players:    results,
		RecordedBy: players[0],
		PlayedAt:   at,
	}
}

func (s *Suite) TestSaveAndGetPlay() {
	play := s.newPlay("p1", "g1", s.Now, "alice", "bob")
	s.Require().NoError(s.Storage.SavePlay(s.Ctx, play))

	stored, err := s.Storage.GetPlay(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(model.GroupID("g1"), stored.GroupID)
	s.Len(stored.Players, 2)
	s.True(stored.HasPlayer("bob"))
	s.True(s.Now.Equal(stored.PlayedAt))

	_, err = s.Storage.GetPlay(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPlayNotFound)
}

func (s *Suite) TestListPlays() {
	s.Require().NoError(s.Storage.SavePlay(s.Ctx, s.newPlay("p1", "g1", s.Now, "alice", "bob")))
	s.Require().NoError(s.Storage.SavePlay(s.Ctx, s.newPlay("p2", "g1", s.Now.Add(time.Hour), "bob")))
	s.Require().NoError(s.Storage.SavePlay(s.Ctx, s.newPlay("p3", "g2", s.Now.Add(2*time.Hour), "alice")))

	forGroup, err := s.Storage.ListPlaysForGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(forGroup, 2)
	s.Equal(model.PlayID("p2"), forGroup[0].ID)
	s.Equal(model.PlayID("p1"), forGroup[1].ID)

	forAlice, err := s.Storage.ListPlaysForUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(forAlice, 2)
	s.Equal(model.PlayID("p3"), forAlice[0].ID)

	none, err := s.Storage.ListPlaysForGroup(s.Ctx, "g9")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *Suite) TestDeletePlays() {
	s.Require().NoError(s.Storage.SavePlay(s.Ctx, s.newPlay("p1", "g1", s.Now, "alice")))
	s.Require().NoError(s.Storage.SavePlay(s.Ctx, s.newPlay("p2", "g1", s.Now, "bob")))
	s.Require().NoError(s.Storage.SavePlay(s.Ctx, s.newPlay("p3", "g2", s.Now, "alice")))

	s.Require().NoError(s.Storage.DeletePlay(s.Ctx, "p1"))
	_, err := s.Storage.GetPlay(s.Ctx, "p1")
	s.ErrorIs(err, model.ErrPlayNotFound)

	s.Require().NoError(s.Storage.DeletePlaysForGroup(s.Ctx, "g1"))
	plays, err := s.Storage.ListPlaysForGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	s.Empty(plays)

	forAlice, err := s.Storage.ListPlaysForUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Len(forAlice, 1)
}

// Validation key tests

func (s *Suite) TestValidationKeys() {
	key := &model.ValidationKey{
		Token:     "tok-1",
		UserID:    "u1",
		CreatedAt: s.Now,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	s.Require().NoError(s.Storage.SaveValidationKey(s.Ctx, key))
	s.Require().NoError(s.Storage.SaveValidationKey(s.Ctx, &model.ValidationKey{
		Token: "tok-2", UserID: "u1", CreatedAt: s.Now, ExpiresAt: time.Now().Add(time.Hour),
	}))

	stored, err := s.Storage.GetValidationKey(s.Ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), stored.UserID)

	s.Require().NoError(s.Storage.DeleteValidationKey(s.Ctx, "tok-1"))
	_, err = s.Storage.GetValidationKey(s.Ctx, "tok-1")
	s.ErrorIs(err, model.ErrValidationKeyNotFound)

	s.Require().NoError(s.Storage.DeleteValidationKeysForUser(s.Ctx, "u1"))
	_, err = s.Storage.GetValidationKey(s.Ctx, "tok-2")
	s.ErrorIs(err, model.ErrValidationKeyNotFound)
}

// Isolation

func (s *Suite) TestReturnedDocumentsAreDetached() {
	s.Require().NoError(s.Storage.CreateGroup(s.Ctx, s.newGroup("g1", "friday")))

	group, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	group.Members = append(group.Members, model.GroupMember{UserID: "u2", Username: "bob"})

	stored, err := s.Storage.GetGroup(s.Ctx, "g1")
	s.Require().NoError(err)
	s.Len(stored.Members, 1)
}
