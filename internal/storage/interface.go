package storage

import (
	"context"

	"github.com/mcoot/boardgame-groups/internal/model"
)

// Storage defines the interface for data persistence.
//
// Users and groups are versioned: Create* stores Version 1, and Save* only
// succeeds when the passed document still carries the stored Version,
// returning model.ErrVersionConflict otherwise. A successful Save* bumps the
// Version on the passed document. Uniqueness violations surface as the
// matching model error (ErrUsernameTaken, ErrGroupIdentifierTaken, ...).
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	DeleteUser(ctx context.Context, id model.UserID) error

	// Group operations
	CreateGroup(ctx context.Context, group *model.Group) error
	SaveGroup(ctx context.Context, group *model.Group) error
	GetGroup(ctx context.Context, id model.GroupID) (*model.Group, error)
	GetGroupByIdentifier(ctx context.Context, identifier string) (*model.Group, error)
	GetGroups(ctx context.Context, ids []model.GroupID) ([]*model.Group, error)
	DeleteGroup(ctx context.Context, id model.GroupID) error

	// Catalog game operations
	CreateGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	GetGameByName(ctx context.Context, name string) (*model.Game, error)
	ListGames(ctx context.Context) ([]*model.Game, error)
	DeleteGame(ctx context.Context, id model.GameID) error

	// Play operations
	SavePlay(ctx context.Context, play *model.Play) error
	GetPlay(ctx context.Context, id model.PlayID) (*model.Play, error)
	ListPlaysForGroup(ctx context.Context, groupID model.GroupID) ([]*model.Play, error)
	ListPlaysForUser(ctx context.Context, username string) ([]*model.Play, error)
	DeletePlay(ctx context.Context, id model.PlayID) error
	DeletePlaysForGroup(ctx context.Context, groupID model.GroupID) error

	// Validation key operations
	SaveValidationKey(ctx context.Context, key *model.ValidationKey) error
	GetValidationKey(ctx context.Context, token string) (*model.ValidationKey, error)
	DeleteValidationKey(ctx context.Context, token string) error
	DeleteValidationKeysForUser(ctx context.Context, userID model.UserID) error
}
