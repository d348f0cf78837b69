// Package plays implements the play ledger
package plays

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mcoot/boardgame-groups/internal/dependencies/clock"
	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/services/groups"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// RecordRequest is the input to Record
type RecordRequest struct {
	Group    string
	Game     string
	Players  []model.PlayerResult
	PlayedAt *time.Time
}

// Service records and reports plays
type Service struct {
	storage storage.Storage
	groups  *groups.Service
	clock   clock.Clock
	ids     idgen.Generator
	logger  *slog.Logger
}

// New creates a new plays Service
func New(storage storage.Storage, groupService *groups.Service, clock clock.Clock, ids idgen.Generator, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		groups:  groupService,
		clock:   clock,
		ids:     ids,
		logger:  logger.With(slog.String("component", "plays")),
	}
}

// Record logs a play of a roster game. The actor must be a member of the
// group and the game must be on its roster.
func (s *Service) Record(ctx context.Context, actor *model.User, req RecordRequest) (*model.Play, error) {
	players, err := normalizePlayers(req.Players)
	if err != nil {
		return nil, err
	}

	group, err := s.groups.Get(ctx, req.Group, actor)
	if err != nil {
		return nil, err
	}

	game := group.GetGame(strings.TrimSpace(req.Game))
	if game == nil {
		return nil, fmt.Errorf("%w: %q", model.ErrPlayGameNotInRoster, strings.TrimSpace(req.Game))
	}

	playedAt := s.clock.Now()
	if req.PlayedAt != nil {
		playedAt = req.PlayedAt.UTC()
	}

	play := &model.Play{
		ID:         model.PlayID(s.ids.NewID()),
		GroupID:    group.ID,
		Game:       game.Name,
		Players:    players,
		RecordedBy: actor.Username,
		PlayedAt:   playedAt,
	}
	if err := s.storage.SavePlay(ctx, play); err != nil {
		return nil, err
	}

	s.groups.Publish(ctx, group.ID, actor, model.EventPlayRecorded, model.PlayPayload{PlayID: play.ID, Game: play.Game})
	return play, nil
}

// ListForGroup returns the group's plays, newest first
func (s *Service) ListForGroup(ctx context.Context, ident string, actor *model.User) ([]*model.Play, error) {
	group, err := s.groups.Get(ctx, ident, actor)
	if err != nil {
		return nil, err
	}
	return s.storage.ListPlaysForGroup(ctx, group.ID)
}

// ListForUser returns the plays user took part in, newest first
func (s *Service) ListForUser(ctx context.Context, user *model.User) ([]*model.Play, error) {
	return s.storage.ListPlaysForUser(ctx, user.Username)
}

// Delete removes a play. Plays of groups the actor does not belong to are
// reported as ErrPlayNotFound.
func (s *Service) Delete(ctx context.Context, id model.PlayID, actor *model.User) error {
	play, err := s.storage.GetPlay(ctx, id)
	if err != nil {
		return err
	}

	group, err := s.storage.GetGroup(ctx, play.GroupID)
	if err != nil {
		if errors.Is(err, model.ErrGroupNotFound) {
			return model.ErrPlayNotFound
		}
		return err
	}
	if group.GetMemberByID(actor.ID) == nil {
		return model.ErrPlayNotFound
	}

	if err := s.storage.DeletePlay(ctx, id); err != nil {
		return err
	}

	s.groups.Publish(ctx, group.ID, actor, model.EventPlayDeleted, model.PlayPayload{PlayID: play.ID, Game: play.Game})
	return nil
}

// Stats aggregates plays and wins per player and game for the group, ordered
// by username then game. Placement 1 counts as a win.
func (s *Service) Stats(ctx context.Context, ident string, actor *model.User) ([]model.MemberGameStats, error) {
	plays, err := s.ListForGroup(ctx, ident, actor)
	if err != nil {
		return nil, err
	}
	return Aggregate(plays), nil
}

// Aggregate folds plays into per-player, per-game totals
func Aggregate(plays []*model.Play) []model.MemberGameStats {
	type key struct{ username, game string }
	totals := make(map[key]*model.MemberGameStats)

	for _, p := range plays {
		game := strings.ToLower(p.Game)
		for _, pr := range p.Players {
			k := key{pr.Username, game}
			st, ok := totals[k]
			if !ok {
				st = &model.MemberGameStats{Username: pr.Username, Game: p.Game}
				totals[k] = st
			}
			st.Plays++
			if pr.Placement == 1 {
				st.Wins++
			}
		}
	}

	out := make([]model.MemberGameStats, 0, len(totals))
	for _, st := range totals {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b model.MemberGameStats) int {
		return cmp.Or(
			strings.Compare(a.Username, b.Username),
			strings.Compare(strings.ToLower(a.Game), strings.ToLower(b.Game)),
		)
	})
	return out
}

func normalizePlayers(players []model.PlayerResult) ([]model.PlayerResult, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: at least one player is required", model.ErrInvalidPlay)
	}

	out := make([]model.PlayerResult, 0, len(players))
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		p.Username = model.NormalizeUsername(p.Username)
		if p.Username == "" {
			return nil, fmt.Errorf("%w: player without a username", model.ErrInvalidPlay)
		}
		if seen[p.Username] {
			return nil, fmt.Errorf("%w: %s listed twice", model.ErrInvalidPlay, p.Username)
		}
		if p.Placement < 0 {
			return nil, fmt.Errorf("%w: negative placement for %s", model.ErrInvalidPlay, p.Username)
		}
		seen[p.Username] = true
		out = append(out, p)
	}
	return out, nil
}
