// Package catalog implements the global game catalog, backed by local
// entries and BoardGameGeek imports.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mcoot/boardgame-groups/internal/bgg"
	"github.com/mcoot/boardgame-groups/internal/dependencies/clock"
	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/resolve"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// External is the game metadata source used for lookups and imports
type External interface {
	FetchGame(ctx context.Context, name string) (*model.Game, error)
	Search(ctx context.Context, query string) ([]bgg.SearchResult, error)
}

// Service manages catalog games
type Service struct {
	storage  storage.Storage
	external External
	clock    clock.Clock
	ids      idgen.Generator
	logger   *slog.Logger
}

// New creates a new catalog Service
func New(storage storage.Storage, external External, clock clock.Clock, ids idgen.Generator, logger *slog.Logger) *Service {
	return &Service{
		storage:  storage,
		external: external,
		clock:    clock,
		ids:      ids,
		logger:   logger.With(slog.String("component", "catalog")),
	}
}

// List returns every catalog game ordered by name
func (s *Service) List(ctx context.Context) ([]*model.Game, error) {
	return s.storage.ListGames(ctx)
}

// Get resolves a game by ID or name
func (s *Service) Get(ctx context.Context, ident string) (*model.Game, error) {
	res, err := resolve.Entity(ctx, strings.TrimSpace(ident),
		func(ctx context.Context, key string) (*model.Game, error) {
			return s.storage.GetGame(ctx, model.GameID(key))
		},
		func(ctx context.Context, key string) (*model.Game, error) {
			return s.storage.GetGameByName(ctx, model.NormalizeGameName(key))
		},
		model.ErrGameNotFound,
	)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Search returns catalog games whose name contains query
func (s *Service) Search(ctx context.Context, query string) ([]*model.Game, error) {
	games, err := s.storage.ListGames(ctx)
	if err != nil {
		return nil, err
	}

	query = model.NormalizeGameName(query)
	out := make([]*model.Game, 0)
	for _, g := range games {
		if strings.Contains(g.Name, query) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Create adds a manually entered game
func (s *Service) Create(ctx context.Context, details model.GameDetails) (*model.Game, error) {
	return s.create(ctx, &model.Game{GameDetails: details, Source: model.GameSourceManual})
}

// Delete removes a game from the catalog. Group rosters keep their own
// copies and are unaffected.
func (s *Service) Delete(ctx context.Context, ident string) error {
	game, err := s.Get(ctx, ident)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteGame(ctx, game.ID); err != nil {
		return err
	}
	s.logger.Info("game deleted", slog.String("game_id", string(game.ID)), slog.String("name", game.Name))
	return nil
}

// FetchExternal looks a game up on BoardGameGeek without storing it
func (s *Service) FetchExternal(ctx context.Context, name string) (*model.Game, error) {
	return s.external.FetchGame(ctx, strings.TrimSpace(name))
}

// SearchExternal searches BoardGameGeek by name
func (s *Service) SearchExternal(ctx context.Context, query string) ([]bgg.SearchResult, error) {
	return s.external.Search(ctx, strings.TrimSpace(query))
}

// Import fetches a game from BoardGameGeek and stores it in the catalog
func (s *Service) Import(ctx context.Context, name string) (*model.Game, error) {
	game, err := s.FetchExternal(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, game)
}

func (s *Service) create(ctx context.Context, game *model.Game) (*model.Game, error) {
	game.Name = model.NormalizeGameName(game.Name)
	if game.Name == "" {
		return nil, model.ErrInvalidGame
	}
	game.ID = model.GameID(s.ids.NewID())
	game.CreatedAt = s.clock.Now()

	if err := s.storage.CreateGame(ctx, game); err != nil {
		return nil, err
	}

	s.logger.Info("game created",
		slog.String("game_id", string(game.ID)),
		slog.String("name", game.Name),
		slog.String("source", string(game.Source)))
	return game, nil
}
