package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// Collection and index names
const (
	usersCollection          = "users"
	groupsCollection         = "groups"
	gamesCollection          = "games"
	playsCollection          = "plays"
	validationKeysCollection = "validation_keys"

	usernameIndex   = "username_unique"
	emailIndex      = "email_unique"
	identifierIndex = "identifier_unique"
	gameNameIndex   = "name_unique"
)

// Storage is a MongoDB-backed implementation of the storage interface.
// Uniqueness is enforced by unique indexes and versions by filtering
// replacements on the expected version.
type Storage struct {
	client *mongo.Client

	users          *mongo.Collection
	groups         *mongo.Collection
	games          *mongo.Collection
	plays          *mongo.Collection
	validationKeys *mongo.Collection
}

// New connects to MongoDB and ensures the required indexes exist
func New(ctx context.Context, cfg Config) (*Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := NewWithDatabase(client.Database(cfg.Database))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewWithDatabase creates a storage over an existing database handle (for testing)
func NewWithDatabase(db *mongo.Database) *Storage {
	return &Storage{
		users:          db.Collection(usersCollection),
		groups:         db.Collection(groupsCollection),
		games:          db.Collection(gamesCollection),
		plays:          db.Collection(playsCollection),
		validationKeys: db.Collection(validationKeysCollection),
	}
}

// Close disconnects the client if this storage owns one
func (s *Storage) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// EnsureIndexes creates the unique, lookup and TTL indexes
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName(usernameIndex).SetUnique(true)},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName(emailIndex).SetUnique(true).
					SetPartialFilterExpression(bson.M{"email": bson.M{"$exists": true}}),
			},
		}},
		{s.groups, []mongo.IndexModel{
			{Keys: bson.D{{Key: "identifier", Value: 1}}, Options: options.Index().SetName(identifierIndex).SetUnique(true)},
		}},
		{s.games, []mongo.IndexModel{
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName(gameNameIndex).SetUnique(true)},
		}},
		{s.plays, []mongo.IndexModel{
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "played_at", Value: -1}}},
			{Keys: bson.D{{Key: "players.username", Value: 1}}},
		}},
		{s.validationKeys, []mongo.IndexModel{
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		}},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	doc := *user
	doc.Version = 1
	if _, err := s.users.InsertOne(ctx, &doc); err != nil {
		return mapUserWriteError(err)
	}
	user.Version = doc.Version
	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	doc := *user
	doc.Version++
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID, "version": user.Version}, &doc)
	if err != nil {
		return mapUserWriteError(err)
	}
	if res.MatchedCount == 0 {
		return s.missingOrConflict(ctx, s.users, user.ID, model.ErrUserNotFound)
	}
	user.Version = doc.Version
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	return findOne[model.User](ctx, s.users, bson.M{"_id": id}, model.ErrUserNotFound)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return findOne[model.User](ctx, s.users, bson.M{"username": username}, model.ErrUserNotFound)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, model.ErrUserNotFound
	}
	return findOne[model.User](ctx, s.users, bson.M{"email": email}, model.ErrUserNotFound)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	return findAll[model.User](ctx, s.users, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	_, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Group operations

func (s *Storage) CreateGroup(ctx context.Context, group *model.Group) error {
	doc := *group
	doc.Version = 1
	if _, err := s.groups.InsertOne(ctx, &doc); err != nil {
		return mapGroupWriteError(err)
	}
	group.Version = doc.Version
	return nil
}

func (s *Storage) SaveGroup(ctx context.Context, group *model.Group) error {
	doc := *group
	doc.Version++
	res, err := s.groups.ReplaceOne(ctx, bson.M{"_id": group.ID, "version": group.Version}, &doc)
	if err != nil {
		return mapGroupWriteError(err)
	}
	if res.MatchedCount == 0 {
		return s.missingOrConflict(ctx, s.groups, group.ID, model.ErrGroupNotFound)
	}
	group.Version = doc.Version
	return nil
}

func (s *Storage) GetGroup(ctx context.Context, id model.GroupID) (*model.Group, error) {
	return findOne[model.Group](ctx, s.groups, bson.M{"_id": id}, model.ErrGroupNotFound)
}

func (s *Storage) GetGroupByIdentifier(ctx context.Context, identifier string) (*model.Group, error) {
	return findOne[model.Group](ctx, s.groups, bson.M{"identifier": identifier}, model.ErrGroupNotFound)
}

func (s *Storage) GetGroups(ctx context.Context, ids []model.GroupID) ([]*model.Group, error) {
	if len(ids) == 0 {
		return []*model.Group{}, nil
	}
	return findAll[model.Group](ctx, s.groups, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Storage) DeleteGroup(ctx context.Context, id model.GroupID) error {
	_, err := s.groups.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Catalog game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	if _, err := s.games.InsertOne(ctx, game); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrGameExists
		}
		return err
	}
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	return findOne[model.Game](ctx, s.games, bson.M{"_id": id}, model.ErrGameNotFound)
}

func (s *Storage) GetGameByName(ctx context.Context, name string) (*model.Game, error) {
	return findOne[model.Game](ctx, s.games, bson.M{"name": name}, model.ErrGameNotFound)
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.Game, error) {
	return findAll[model.Game](ctx, s.games, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (s *Storage) DeleteGame(ctx context.Context, id model.GameID) error {
	_, err := s.games.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Play operations

var playSort = bson.D{{Key: "played_at", Value: -1}, {Key: "_id", Value: 1}}

func (s *Storage) SavePlay(ctx context.Context, play *model.Play) error {
	_, err := s.plays.ReplaceOne(ctx, bson.M{"_id": play.ID}, play, options.Replace().SetUpsert(true))
	return err
}

func (s *Storage) GetPlay(ctx context.Context, id model.PlayID) (*model.Play, error) {
	return findOne[model.Play](ctx, s.plays, bson.M{"_id": id}, model.ErrPlayNotFound)
}

func (s *Storage) ListPlaysForGroup(ctx context.Context, groupID model.GroupID) ([]*model.Play, error) {
	return findAll[model.Play](ctx, s.plays, bson.M{"group_id": groupID}, options.Find().SetSort(playSort))
}

func (s *Storage) ListPlaysForUser(ctx context.Context, username string) ([]*model.Play, error) {
	return findAll[model.Play](ctx, s.plays, bson.M{"players.username": username}, options.Find().SetSort(playSort))
}

func (s *Storage) DeletePlay(ctx context.Context, id model.PlayID) error {
	_, err := s.plays.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Storage) DeletePlaysForGroup(ctx context.Context, groupID model.GroupID) error {
	_, err := s.plays.DeleteMany(ctx, bson.M{"group_id": groupID})
	return err
}

// Validation key operations

func (s *Storage) SaveValidationKey(ctx context.Context, key *model.ValidationKey) error {
	_, err := s.validationKeys.ReplaceOne(ctx, bson.M{"_id": key.Token}, key, options.Replace().SetUpsert(true))
	return err
}

func (s *Storage) GetValidationKey(ctx context.Context, token string) (*model.ValidationKey, error) {
	return findOne[model.ValidationKey](ctx, s.validationKeys, bson.M{"_id": token}, model.ErrValidationKeyNotFound)
}

func (s *Storage) DeleteValidationKey(ctx context.Context, token string) error {
	_, err := s.validationKeys.DeleteOne(ctx, bson.M{"_id": token})
	return err
}

func (s *Storage) DeleteValidationKeysForUser(ctx context.Context, userID model.UserID) error {
	_, err := s.validationKeys.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// missingOrConflict explains a versioned replace that matched nothing
func (s *Storage) missingOrConflict(ctx context.Context, coll *mongo.Collection, id any, notFound error) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return model.ErrVersionConflict
}

func mapUserWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), emailIndex) {
		return model.ErrEmailTaken
	}
	return model.ErrUsernameTaken
}

func mapGroupWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrGroupIdentifierTaken
	}
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, notFound error) (*T, error) {
	var v T
	if err := coll.FindOne(ctx, filter).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
