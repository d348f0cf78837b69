package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/mcoot/boardgame-groups/internal/model"
)

const ns = "boardgames.test"

func duplicateKey(index string) mtest.WriteError {
	return mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: boardgames.test index: " + index + " dup key",
	}
}

func TestUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create sets version", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		user := &model.User{ID: "u1", Username: "alice"}
		require.NoError(mt, s.CreateUser(ctx, user))
		assert.Equal(mt, int64(1), user.Version)
	})

	mt.Run("create duplicate username", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey(usernameIndex)))

		err := s.CreateUser(ctx, &model.User{ID: "u1", Username: "alice"})
		assert.ErrorIs(mt, err, model.ErrUsernameTaken)
	})

	mt.Run("create duplicate email", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey(emailIndex)))

		err := s.CreateUser(ctx, &model.User{ID: "u1", Username: "alice", Email: "a@example.com"})
		assert.ErrorIs(mt, err, model.ErrEmailTaken)
	})

	mt.Run("get by username", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "username", Value: "alice"},
			{Key: "groups", Value: bson.A{"g1"}},
			{Key: "version", Value: int64(3)},
		}))

		user, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(mt, err)
		assert.Equal(mt, model.UserID("u1"), user.ID)
		assert.Equal(mt, []model.GroupID{"g1"}, user.Groups)
		assert.Equal(mt, int64(3), user.Version)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.GetUser(ctx, "nope")
		assert.ErrorIs(mt, err, model.ErrUserNotFound)
	})

	mt.Run("empty email never matches", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)

		_, err := s.GetUserByEmail(ctx, "")
		assert.ErrorIs(mt, err, model.ErrUserNotFound)
	})

	mt.Run("save bumps version", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		user := &model.User{ID: "u1", Username: "alice", Version: 2}
		require.NoError(mt, s.SaveUser(ctx, user))
		assert.Equal(mt, int64(3), user.Version)
	})

	mt.Run("save stale version", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		user := &model.User{ID: "u1", Username: "alice", Version: 2}
		assert.ErrorIs(mt, s.SaveUser(ctx, user), model.ErrVersionConflict)
		assert.Equal(mt, int64(2), user.Version)
	})

	mt.Run("save missing user", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		user := &model.User{ID: "u1", Username: "alice", Version: 2}
		assert.ErrorIs(mt, s.SaveUser(ctx, user), model.ErrUserNotFound)
	})

	mt.Run("list users", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "u1"}, {Key: "username", Value: "alice"}},
			bson.D{{Key: "_id", Value: "u2"}, {Key: "username", Value: "bob"}},
		))

		users, err := s.ListUsers(ctx)
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.Equal(mt, "bob", users[1].Username)
	})
}

func TestGroups(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create duplicate identifier", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey(identifierIndex)))

		err := s.CreateGroup(ctx, &model.Group{ID: "g1", Identifier: "friday"})
		assert.ErrorIs(mt, err, model.ErrGroupIdentifierTaken)
	})

	mt.Run("save renaming onto taken identifier", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey(identifierIndex)))

		err := s.SaveGroup(ctx, &model.Group{ID: "g1", Identifier: "saturday", Version: 1})
		assert.ErrorIs(mt, err, model.ErrGroupIdentifierTaken)
	})

	mt.Run("get groups with no ids skips the query", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)

		groups, err := s.GetGroups(ctx, nil)
		require.NoError(mt, err)
		assert.Empty(mt, groups)
	})

	mt.Run("get group decodes roster", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		joined := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "g1"},
			{Key: "identifier", Value: "friday"},
			{Key: "owners", Value: bson.A{"alice"}},
			{Key: "members", Value: bson.A{
				bson.D{{Key: "user_id", Value: "u1"}, {Key: "username", Value: "alice"}, {Key: "joined_at", Value: joined}},
			}},
			{Key: "games", Value: bson.A{
				bson.D{{Key: "name", Value: "azul"}, {Key: "max_players", Value: 4}, {Key: "added_by", Value: "alice"}},
			}},
		}))

		group, err := s.GetGroupByIdentifier(ctx, "friday")
		require.NoError(mt, err)
		assert.True(mt, group.IsOwner("alice"))
		assert.True(mt, joined.Equal(group.Members[0].JoinedAt))
		require.Len(mt, group.Games, 1)
		assert.Equal(mt, 4, group.Games[0].MaxPlayers)
	})
}

func TestCatalogPlaysAndKeys(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("duplicate game name", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey(gameNameIndex)))

		err := s.CreateGame(ctx, &model.Game{ID: "c1", GameDetails: model.GameDetails{Name: "azul"}})
		assert.ErrorIs(mt, err, model.ErrGameExists)
	})

	mt.Run("list plays for group", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "p2"}, {Key: "group_id", Value: "g1"}, {Key: "game", Value: "azul"}},
			bson.D{{Key: "_id", Value: "p1"}, {Key: "group_id", Value: "g1"}, {Key: "game", Value: "azul"}},
		))

		plays, err := s.ListPlaysForGroup(ctx, "g1")
		require.NoError(mt, err)
		require.Len(mt, plays, 2)
		assert.Equal(mt, model.PlayID("p2"), plays[0].ID)
	})

	mt.Run("delete plays for group", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))

		require.NoError(mt, s.DeletePlaysForGroup(ctx, "g1"))
	})

	mt.Run("validation key round trip", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "tok-1"},
				{Key: "user_id", Value: "u1"},
			}),
		)

		require.NoError(mt, s.SaveValidationKey(ctx, &model.ValidationKey{Token: "tok-1", UserID: "u1"}))
		key, err := s.GetValidationKey(ctx, "tok-1")
		require.NoError(mt, err)
		assert.Equal(mt, model.UserID("u1"), key.UserID)
	})

	mt.Run("validation key missing", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.GetValidationKey(ctx, "tok-1")
		assert.ErrorIs(mt, err, model.ErrValidationKeyNotFound)
	})
}

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates every index set", func(mt *mtest.T) {
		s := NewWithDatabase(mt.DB)
		for range 5 {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}
		require.NoError(mt, s.EnsureIndexes(context.Background()))
	})
}
