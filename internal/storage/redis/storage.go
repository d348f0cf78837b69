package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Documents are stored as JSON strings; secondary lookups go through index
// keys kept in step with WATCH/MULTI transactions.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	doc := *user
	doc.Version = 1
	data, err := json.Marshal(&doc)
	if err != nil {
		return err
	}

	nameIdx := usernameIndexKey(user.Username)
	watched := []string{nameIdx}
	if user.Email != "" {
		watched = append(watched, emailIndexKey(user.Email))
	}

	err = s.watch(ctx, func(tx *redis.Tx) error {
		if owner, err := indexOwner(ctx, tx, nameIdx); err != nil {
			return err
		} else if owner != "" {
			return model.ErrUsernameTaken
		}
		if user.Email != "" {
			if owner, err := indexOwner(ctx, tx, emailIndexKey(user.Email)); err != nil {
				return err
			} else if owner != "" {
				return model.ErrEmailTaken
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(user.ID), data, 0)
			pipe.Set(ctx, nameIdx, string(user.ID), 0)
			if user.Email != "" {
				pipe.Set(ctx, emailIndexKey(user.Email), string(user.ID), 0)
			}
			pipe.SAdd(ctx, usersKey(), userKey(user.ID))
			return nil
		})
		return err
	}, watched...)
	if err != nil {
		return err
	}
	user.Version = doc.Version
	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	doc := *user
	doc.Version++
	data, err := json.Marshal(&doc)
	if err != nil {
		return err
	}

	watched := []string{userKey(user.ID), usernameIndexKey(user.Username)}
	if user.Email != "" {
		watched = append(watched, emailIndexKey(user.Email))
	}

	err = s.watch(ctx, func(tx *redis.Tx) error {
		stored, err := getJSON[model.User](ctx, tx, userKey(user.ID), model.ErrUserNotFound)
		if err != nil {
			return err
		}
		if stored.Version != user.Version {
			return model.ErrVersionConflict
		}
		if owner, err := indexOwner(ctx, tx, usernameIndexKey(user.Username)); err != nil {
			return err
		} else if owner != "" && owner != string(user.ID) {
			return model.ErrUsernameTaken
		}
		if user.Email != "" {
			if owner, err := indexOwner(ctx, tx, emailIndexKey(user.Email)); err != nil {
				return err
			} else if owner != "" && owner != string(user.ID) {
				return model.ErrEmailTaken
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if stored.Username != user.Username {
				pipe.Del(ctx, usernameIndexKey(stored.Username))
			}
			if stored.Email != "" && stored.Email != user.Email {
				pipe.Del(ctx, emailIndexKey(stored.Email))
			}
			pipe.Set(ctx, userKey(user.ID), data, 0)
			pipe.Set(ctx, usernameIndexKey(user.Username), string(user.ID), 0)
			if user.Email != "" {
				pipe.Set(ctx, emailIndexKey(user.Email), string(user.ID), 0)
			}
			return nil
		})
		return err
	}, watched...)
	if err != nil {
		return err
	}
	user.Version = doc.Version
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	return getJSON[model.User](ctx, s.client, userKey(id), model.ErrUserNotFound)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	id, err := indexOwner(ctx, s.client, usernameIndexKey(username))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, model.ErrUserNotFound
	}
	return s.GetUser(ctx, model.UserID(id))
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, model.ErrUserNotFound
	}
	id, err := indexOwner(ctx, s.client, emailIndexKey(email))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, model.ErrUserNotFound
	}
	return s.GetUser(ctx, model.UserID(id))
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	keys, err := s.client.SMembers(ctx, usersKey()).Result()
	if err != nil {
		return nil, err
	}
	users, err := mgetJSON[model.User](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b *model.User) int { return strings.Compare(a.Username, b.Username) })
	return users, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, userKey(id), usernameIndexKey(user.Username))
	if user.Email != "" {
		pipe.Del(ctx, emailIndexKey(user.Email))
	}
	pipe.SRem(ctx, usersKey(), userKey(id))
	_, err = pipe.Exec(ctx)
	return err
}

// Group operations

func (s *Storage) CreateGroup(ctx context.Context, group *model.Group) error {
	doc := *group
	doc.Version = 1
	data, err := json.Marshal(&doc)
	if err != nil {
		return err
	}

	// Claim the identifier before the document becomes visible
	claimed, err := s.client.SetNX(ctx, identifierIndexKey(group.Identifier), string(group.ID), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrGroupIdentifierTaken
	}
	if err := s.client.Set(ctx, groupKey(group.ID), data, 0).Err(); err != nil {
		s.client.Del(ctx, identifierIndexKey(group.Identifier))
		return err
	}
	group.Version = doc.Version
	return nil
}

func (s *Storage) SaveGroup(ctx context.Context, group *model.Group) error {
	doc := *group
	doc.Version++
	data, err := json.Marshal(&doc)
	if err != nil {
		return err
	}

	identIdx := identifierIndexKey(group.Identifier)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		stored, err := getJSON[model.Group](ctx, tx, groupKey(group.ID), model.ErrGroupNotFound)
		if err != nil {
			return err
		}
		if stored.Version != group.Version {
			return model.ErrVersionConflict
		}
		if owner, err := indexOwner(ctx, tx, identIdx); err != nil {
			return err
		} else if owner != "" && owner != string(group.ID) {
			return model.ErrGroupIdentifierTaken
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if stored.Identifier != group.Identifier {
				pipe.Del(ctx, identifierIndexKey(stored.Identifier))
			}
			pipe.Set(ctx, groupKey(group.ID), data, 0)
			pipe.Set(ctx, identIdx, string(group.ID), 0)
			return nil
		})
		return err
	}, groupKey(group.ID), identIdx)
	if err != nil {
		return err
	}
	group.Version = doc.Version
	return nil
}

func (s *Storage) GetGroup(ctx context.Context, id model.GroupID) (*model.Group, error) {
	return getJSON[model.Group](ctx, s.client, groupKey(id), model.ErrGroupNotFound)
}

func (s *Storage) GetGroupByIdentifier(ctx context.Context, identifier string) (*model.Group, error) {
	id, err := indexOwner(ctx, s.client, identifierIndexKey(identifier))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, model.ErrGroupNotFound
	}
	return s.GetGroup(ctx, model.GroupID(id))
}

func (s *Storage) GetGroups(ctx context.Context, ids []model.GroupID) ([]*model.Group, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = groupKey(id)
	}
	return mgetJSON[model.Group](ctx, s.client, keys)
}

func (s *Storage) DeleteGroup(ctx context.Context, id model.GroupID) error {
	group, err := s.GetGroup(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrGroupNotFound) {
			return nil
		}
		return err
	}
	return s.client.Del(ctx, groupKey(id), identifierIndexKey(group.Identifier)).Err()
}

// Catalog game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	claimed, err := s.client.SetNX(ctx, gameNameIndexKey(game.Name), string(game.ID), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrGameExists
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, gameKey(game.ID), data, 0)
	pipe.SAdd(ctx, gamesKey(), gameKey(game.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.Del(ctx, gameNameIndexKey(game.Name))
		return err
	}
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	return getJSON[model.Game](ctx, s.client, gameKey(id), model.ErrGameNotFound)
}

func (s *Storage) GetGameByName(ctx context.Context, name string) (*model.Game, error) {
	id, err := indexOwner(ctx, s.client, gameNameIndexKey(name))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, model.ErrGameNotFound
	}
	return s.GetGame(ctx, model.GameID(id))
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.Game, error) {
	keys, err := s.client.SMembers(ctx, gamesKey()).Result()
	if err != nil {
		return nil, err
	}
	games, err := mgetJSON[model.Game](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(games, func(a, b *model.Game) int { return strings.Compare(a.Name, b.Name) })
	return games, nil
}

func (s *Storage) DeleteGame(ctx context.Context, id model.GameID) error {
	game, err := s.GetGame(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrGameNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, gameKey(id), gameNameIndexKey(game.Name))
	pipe.SRem(ctx, gamesKey(), gameKey(id))
	_, err = pipe.Exec(ctx)
	return err
}

// Play operations

func (s *Storage) SavePlay(ctx context.Context, play *model.Play) error {
	data, err := json.Marshal(play)
	if err != nil {
		return err
	}

	pKey := playKey(play.ID)

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, pKey, data, 0)
	pipe.SAdd(ctx, playsForGroupIndexKey(play.GroupID), pKey)
	for _, p := range play.Players {
		pipe.SAdd(ctx, playsForUserIndexKey(p.Username), pKey)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPlay(ctx context.Context, id model.PlayID) (*model.Play, error) {
	return getJSON[model.Play](ctx, s.client, playKey(id), model.ErrPlayNotFound)
}

func (s *Storage) ListPlaysForGroup(ctx context.Context, groupID model.GroupID) ([]*model.Play, error) {
	return s.listPlays(ctx, playsForGroupIndexKey(groupID))
}

func (s *Storage) ListPlaysForUser(ctx context.Context, username string) ([]*model.Play, error) {
	plays, err := s.listPlays(ctx, playsForUserIndexKey(username))
	if err != nil {
		return nil, err
	}
	// A rewritten play may still sit in the index of a former participant
	return slices.DeleteFunc(plays, func(p *model.Play) bool { return !p.HasPlayer(username) }), nil
}

func (s *Storage) listPlays(ctx context.Context, indexKey string) ([]*model.Play, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	plays, err := mgetJSON[model.Play](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	storage.SortPlays(plays)
	return plays, nil
}

func (s *Storage) DeletePlay(ctx context.Context, id model.PlayID) error {
	play, err := s.GetPlay(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrPlayNotFound) {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	s.queuePlayDelete(ctx, pipe, play)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) DeletePlaysForGroup(ctx context.Context, groupID model.GroupID) error {
	indexKey := playsForGroupIndexKey(groupID)
	plays, err := s.listPlays(ctx, indexKey)
	if err != nil {
		return err
	}

	// Delete all plays, their user index entries and the group index in one pipeline
	pipe := s.client.TxPipeline()
	for _, play := range plays {
		s.queuePlayDelete(ctx, pipe, play)
	}
	pipe.Del(ctx, indexKey)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) queuePlayDelete(ctx context.Context, pipe redis.Pipeliner, play *model.Play) {
	pKey := playKey(play.ID)
	pipe.Del(ctx, pKey)
	pipe.SRem(ctx, playsForGroupIndexKey(play.GroupID), pKey)
	for _, p := range play.Players {
		pipe.SRem(ctx, playsForUserIndexKey(p.Username), pKey)
	}
}

// Validation key operations

func (s *Storage) SaveValidationKey(ctx context.Context, key *model.ValidationKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}

	vKey := validationKeyKey(key.Token)
	indexKey := validationKeysForUserIndexKey(key.UserID)

	// Redis drops the key itself once ExpiresAt passes
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, vKey, data, 0)
	pipe.ExpireAt(ctx, vKey, key.ExpiresAt)
	pipe.SAdd(ctx, indexKey, vKey)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetValidationKey(ctx context.Context, token string) (*model.ValidationKey, error) {
	return getJSON[model.ValidationKey](ctx, s.client, validationKeyKey(token), model.ErrValidationKeyNotFound)
}

func (s *Storage) DeleteValidationKey(ctx context.Context, token string) error {
	key, err := s.GetValidationKey(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrValidationKeyNotFound) {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, validationKeyKey(token))
	pipe.SRem(ctx, validationKeysForUserIndexKey(key.UserID), validationKeyKey(token))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) DeleteValidationKeysForUser(ctx context.Context, userID model.UserID) error {
	indexKey := validationKeysForUserIndexKey(userID)
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	return s.client.Del(ctx, append(keys, indexKey)...).Err()
}

// watch runs fn under WATCH on keys, reporting a lost race as a version
// conflict so callers can reload and retry
func (s *Storage) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	err := s.client.Watch(ctx, fn, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrVersionConflict
	}
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON[T any](ctx context.Context, c getter, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// indexOwner returns the ID an index key points at, or "" if unset
func indexOwner(ctx context.Context, c getter, key string) (string, error) {
	id, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func mgetJSON[T any](ctx context.Context, client *redis.Client, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return []*T{}, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Deleted or expired since the index was read
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, nil
}
