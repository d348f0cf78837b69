package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Documents are copied on the way in and out so callers can never mutate
// stored state without going through Save*.
type Storage struct {
	mu sync.RWMutex

	users          map[model.UserID]*model.User
	usernameIndex  map[string]model.UserID
	emailIndex     map[string]model.UserID
	groups         map[model.GroupID]*model.Group
	identIndex     map[string]model.GroupID
	games          map[model.GameID]*model.Game
	gameNameIndex  map[string]model.GameID
	plays          map[model.PlayID]*model.Play
	validationKeys map[string]*model.ValidationKey
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:          make(map[model.UserID]*model.User),
		usernameIndex:  make(map[string]model.UserID),
		emailIndex:     make(map[string]model.UserID),
		groups:         make(map[model.GroupID]*model.Group),
		identIndex:     make(map[string]model.GroupID),
		games:          make(map[model.GameID]*model.Game),
		gameNameIndex:  make(map[string]model.GameID),
		plays:          make(map[model.PlayID]*model.Play),
		validationKeys: make(map[string]*model.ValidationKey),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernameIndex[user.Username]; ok {
		return model.ErrUsernameTaken
	}
	if user.Email != "" {
		if _, ok := s.emailIndex[user.Email]; ok {
			return model.ErrEmailTaken
		}
	}
	user.Version = 1
	s.users[user.ID] = cloneUser(user)
	s.usernameIndex[user.Username] = user.ID
	if user.Email != "" {
		s.emailIndex[user.Email] = user.ID
	}
	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return model.ErrVersionConflict
	}
	if owner, ok := s.usernameIndex[user.Username]; ok && owner != user.ID {
		return model.ErrUsernameTaken
	}
	if user.Email != "" {
		if owner, ok := s.emailIndex[user.Email]; ok && owner != user.ID {
			return model.ErrEmailTaken
		}
	}

	delete(s.usernameIndex, stored.Username)
	if stored.Email != "" {
		delete(s.emailIndex, stored.Email)
	}
	user.Version++
	s.users[user.ID] = cloneUser(user)
	s.usernameIndex[user.Username] = user.ID
	if user.Email != "" {
		s.emailIndex[user.Email] = user.ID
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok || email == "" {
		return nil, model.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, cloneUser(u))
	}
	slices.SortFunc(users, func(a, b *model.User) int { return strings.Compare(a.Username, b.Username) })
	return users, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil
	}
	delete(s.usernameIndex, user.Username)
	if user.Email != "" {
		delete(s.emailIndex, user.Email)
	}
	delete(s.users, id)
	return nil
}

// Group operations

func (s *Storage) CreateGroup(ctx context.Context, group *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identIndex[group.Identifier]; ok {
		return model.ErrGroupIdentifierTaken
	}
	group.Version = 1
	s.groups[group.ID] = cloneGroup(group)
	s.identIndex[group.Identifier] = group.ID
	return nil
}

func (s *Storage) SaveGroup(ctx context.Context, group *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.groups[group.ID]
	if !ok {
		return model.ErrGroupNotFound
	}
	if stored.Version != group.Version {
		return model.ErrVersionConflict
	}
	if owner, ok := s.identIndex[group.Identifier]; ok && owner != group.ID {
		return model.ErrGroupIdentifierTaken
	}
	delete(s.identIndex, stored.Identifier)
	group.Version++
	s.groups[group.ID] = cloneGroup(group)
	s.identIndex[group.Identifier] = group.ID
	return nil
}

func (s *Storage) GetGroup(ctx context.Context, id model.GroupID) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, model.ErrGroupNotFound
	}
	return cloneGroup(group), nil
}

func (s *Storage) GetGroupByIdentifier(ctx context.Context, identifier string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identIndex[identifier]
	if !ok {
		return nil, model.ErrGroupNotFound
	}
	return cloneGroup(s.groups[id]), nil
}

func (s *Storage) GetGroups(ctx context.Context, ids []model.GroupID) ([]*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]*model.Group, 0, len(ids))
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			groups = append(groups, cloneGroup(g))
		}
	}
	return groups, nil
}

func (s *Storage) DeleteGroup(ctx context.Context, id model.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[id]
	if !ok {
		return nil
	}
	delete(s.identIndex, group.Identifier)
	delete(s.groups, id)
	return nil
}

// Catalog game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gameNameIndex[game.Name]; ok {
		return model.ErrGameExists
	}
	g := *game
	s.games[game.ID] = &g
	s.gameNameIndex[game.Name] = game.ID
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	g := *game
	return &g, nil
}

func (s *Storage) GetGameByName(ctx context.Context, name string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.gameNameIndex[name]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	g := *s.games[id]
	return &g, nil
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := make([]*model.Game, 0, len(s.games))
	for _, game := range s.games {
		g := *game
		games = append(games, &g)
	}
	slices.SortFunc(games, func(a, b *model.Game) int { return strings.Compare(a.Name, b.Name) })
	return games, nil
}

func (s *Storage) DeleteGame(ctx context.Context, id model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil
	}
	delete(s.gameNameIndex, game.Name)
	delete(s.games, id)
	return nil
}

// Play operations

func (s *Storage) SavePlay(ctx context.Context, play *model.Play) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays[play.ID] = clonePlay(play)
	return nil
}

func (s *Storage) GetPlay(ctx context.Context, id model.PlayID) (*model.Play, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	play, ok := s.plays[id]
	if !ok {
		return nil, model.ErrPlayNotFound
	}
	return clonePlay(play), nil
}

func (s *Storage) ListPlaysForGroup(ctx context.Context, groupID model.GroupID) ([]*model.Play, error) {
	return s.filterPlays(func(p *model.Play) bool { return p.GroupID == groupID }), nil
}

func (s *Storage) ListPlaysForUser(ctx context.Context, username string) ([]*model.Play, error) {
	return s.filterPlays(func(p *model.Play) bool { return p.HasPlayer(username) }), nil
}

func (s *Storage) filterPlays(keep func(*model.Play) bool) []*model.Play {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plays := make([]*model.Play, 0)
	for _, p := range s.plays {
		if keep(p) {
			plays = append(plays, clonePlay(p))
		}
	}
	storage.SortPlays(plays)
	return plays
}

func (s *Storage) DeletePlay(ctx context.Context, id model.PlayID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plays, id)
	return nil
}

func (s *Storage) DeletePlaysForGroup(ctx context.Context, groupID model.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.plays {
		if p.GroupID == groupID {
			delete(s.plays, id)
		}
	}
	return nil
}

// Validation key operations

// SaveValidationKey stores key and drops any keys that had already expired
// when it was issued. Redis and Mongo expire keys on their own; here the new
// key's CreatedAt stands in for the clock.
func (s *Storage) SaveValidationKey(ctx context.Context, key *model.ValidationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, existing := range s.validationKeys {
		if existing.Expired(key.CreatedAt) {
			delete(s.validationKeys, token)
		}
	}
	k := *key
	s.validationKeys[key.Token] = &k
	return nil
}

func (s *Storage) GetValidationKey(ctx context.Context, token string) (*model.ValidationKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.validationKeys[token]
	if !ok {
		return nil, model.ErrValidationKeyNotFound
	}
	k := *key
	return &k, nil
}

func (s *Storage) DeleteValidationKey(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.validationKeys, token)
	return nil
}

func (s *Storage) DeleteValidationKeysForUser(ctx context.Context, userID model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, k := range s.validationKeys {
		if k.UserID == userID {
			delete(s.validationKeys, token)
		}
	}
	return nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Groups = slices.Clone(u.Groups)
	return &c
}

func cloneGroup(g *model.Group) *model.Group {
	c := *g
	c.Owners = slices.Clone(g.Owners)
	c.Members = slices.Clone(g.Members)
	c.Games = slices.Clone(g.Games)
	return &c
}

func clonePlay(p *model.Play) *model.Play {
	c := *p
	c.Players = slices.Clone(p.Players)
	return &c
}
