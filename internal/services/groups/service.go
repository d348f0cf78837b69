// Package groups implements the group registry: group lifecycle, rosters
// of members and owners, and each group's game list.
package groups

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/mcoot/boardgame-groups/internal/consistency"
	"github.com/mcoot/boardgame-groups/internal/dependencies/clock"
	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
	"github.com/mcoot/boardgame-groups/internal/events"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/resolve"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// CreateRequest is the input to Create
type CreateRequest struct {
	Identifier  string
	DisplayName string
	Description string
}

// Service manages groups. Every operation is performed on behalf of an
// acting user and checks that user's membership first.
type Service struct {
	storage     storage.Storage
	coordinator *consistency.Coordinator
	events      events.Publisher
	clock       clock.Clock
	ids         idgen.Generator
	logger      *slog.Logger
}

// New creates a new groups Service
func New(
	storage storage.Storage,
	coordinator *consistency.Coordinator,
	publisher events.Publisher,
	clock clock.Clock,
	ids idgen.Generator,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:     storage,
		coordinator: coordinator,
		events:      publisher,
		clock:       clock,
		ids:         ids,
		logger:      logger.With(slog.String("component", "groups")),
	}
}

// Create makes a new group with actor as its only member and owner
func (s *Service) Create(ctx context.Context, actor *model.User, req CreateRequest) (*model.Group, error) {
	identifier, err := model.ValidateGroupIdentifier(req.Identifier)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(req.Identifier)
	}

	now := s.clock.Now()
	group := &model.Group{
		ID:          model.GroupID(s.ids.NewID()),
		Identifier:  identifier,
		DisplayName: displayName,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.coordinator.CreateGroup(ctx, group, actor); err != nil {
		return nil, err
	}

	s.logger.Info("group created",
		slog.String("group_id", string(group.ID)),
		slog.String("identifier", group.Identifier),
		slog.String("creator", actor.Username))
	return group, nil
}

// Get resolves a group by ID or identifier. Groups the actor is not a member
// of are reported as ErrGroupNotFound.
func (s *Service) Get(ctx context.Context, ident string, actor *model.User) (*model.Group, error) {
	res, err := resolve.Entity(ctx, strings.TrimSpace(ident),
		func(ctx context.Context, key string) (*model.Group, error) {
			return s.storage.GetGroup(ctx, model.GroupID(key))
		},
		func(ctx context.Context, key string) (*model.Group, error) {
			return s.storage.GetGroupByIdentifier(ctx, model.NormalizeGroupIdentifier(key))
		},
		model.ErrGroupNotFound,
	)
	if err != nil {
		return nil, err
	}
	if res.Value.GetMemberByID(actor.ID) == nil {
		return nil, model.ErrGroupNotFound
	}
	return res.Value, nil
}

// ListForUser returns the groups user belongs to, ordered by identifier.
// References to groups that no longer list the user are skipped.
func (s *Service) ListForUser(ctx context.Context, user *model.User) ([]*model.Group, error) {
	groups, err := s.storage.GetGroups(ctx, user.Groups)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Group, 0, len(groups))
	for _, g := range groups {
		if g.GetMemberByID(user.ID) != nil {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b *model.Group) int { return strings.Compare(a.Identifier, b.Identifier) })
	return out, nil
}

// Update merges the set fields of upd into the group. Any member may update.
func (s *Service) Update(ctx context.Context, ident string, actor *model.User, upd model.GroupUpdate) (*model.Group, error) {
	group, err := s.Get(ctx, ident, actor)
	if err != nil {
		return nil, err
	}

	var identifier string
	if upd.Identifier != nil {
		if identifier, err = model.ValidateGroupIdentifier(*upd.Identifier); err != nil {
			return nil, err
		}
	}

	updated, err := s.coordinator.MutateGroup(ctx, group.ID, func(g *model.Group) error {
		if g.GetMemberByID(actor.ID) == nil {
			return model.ErrGroupNotFound
		}
		if upd.Identifier != nil {
			g.Identifier = identifier
		}
		if upd.DisplayName != nil {
			if name := strings.TrimSpace(*upd.DisplayName); name != "" {
				g.DisplayName = name
			}
		}
		if upd.Description != nil {
			g.Description = strings.TrimSpace(*upd.Description)
		}
		g.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated.ID, actor, model.EventGroupUpdated, nil)
	return updated, nil
}

// Delete removes the group. Only owners may delete.
func (s *Service) Delete(ctx context.Context, ident string, actor *model.User) error {
	group, err := s.Get(ctx, ident, actor)
	if err != nil {
		return err
	}
	if !group.IsOwner(actor.Username) {
		return model.ErrNotGroupOwner
	}

	if err := s.coordinator.DeleteGroup(ctx, group); err != nil {
		return err
	}

	s.publish(ctx, group.ID, actor, model.EventGroupDeleted, nil)
	return nil
}

// AddMember adds the named user to the group. Only owners may add members.
func (s *Service) AddMember(ctx context.Context, ident string, actor *model.User, username string) (*model.Group, error) {
	group, err := s.Get(ctx, ident, actor)
	if err != nil {
		return nil, err
	}
	if !group.IsOwner(actor.Username) {
		return nil, model.ErrNotGroupOwner
	}

	user, err := s.storage.GetUserByUsername(ctx, model.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	updated, added, err := s.coordinator.AddMember(ctx, group.ID, user)
	if err != nil {
		return nil, err
	}
	if added {
		s.publish(ctx, group.ID, actor, model.EventMemberAdded, model.MemberPayload{Username: user.Username, UserID: user.ID})
	}
	return updated, nil
}

// RemoveMember takes the named user off the group. Owners may remove anyone;
// any member may remove themselves.
func (s *Service) RemoveMember(ctx context.Context, ident string, actor *model.User, username string) (*model.Group, error) {
	group, err := s.Get(ctx, ident, actor)
	if err != nil {
		return nil, err
	}

	target := group.GetMember(model.NormalizeUsername(username))
	if target == nil {
		return nil, model.ErrNotGroupMember
	}
	if target.UserID != actor.ID && !group.IsOwner(actor.Username) {
		return nil, model.ErrNotGroupOwner
	}

	removedName := target.Username
	updated, err := s.coordinator.RemoveMember(ctx, group.ID, target.UserID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, group.ID, actor, model.EventMemberRemoved, model.MemberPayload{Username: removedName, UserID: target.UserID})
	return updated, nil
}

// SetOwner grants or revokes ownership of a member. Only owners may change
// ownership, and the last owner cannot be revoked.
func (s *Service) SetOwner(ctx context.Context, ident string, actor *model.User, username string, owner bool) (*model.Group, error) {
	group, err := s.Get(ctx, ident, actor)
	if err != nil {
		return nil, err
	}
	if !group.IsOwner(actor.Username) {
		return nil, model.ErrNotGroupOwner
	}

	username = model.NormalizeUsername(username)
	updated, err := s.coordinator.SetOwner(ctx, group.ID, username, owner)
	if err != nil {
		return nil, err
	}

	// SetOwner reports no error when nothing changed, so compare
	if group.IsOwner(username) != owner {
		s.publish(ctx, group.ID, actor, model.EventOwnerChanged, model.OwnerChangedPayload{Username: username, Owner: owner})
	}
	return updated, nil
}

// AddGame adds a game to the group's roster. Any member may add games.
func (s *Service) AddGame(ctx context.Context, ident string, actor *model.User, details model.GameDetails) (*model.Group, error) {
	details.Name = strings.TrimSpace(details.Name)
	if details.Name == "" {
		return nil, model.ErrInvalidGame
	}

	group, err := s.Get(ctx, ident, actor)
	if err != nil {
		return nil, err
	}

	updated, err := s.coordinator.MutateGroup(ctx, group.ID, func(g *model.Group) error {
		if g.GetMemberByID(actor.ID) == nil {
			return model.ErrGroupNotFound
		}
		if g.HasGame(details.Name) {
			return model.ErrGameAlreadyInRoster
		}
		now := s.clock.Now()
		g.Games = append(g.Games, model.GroupGame{
			GameDetails: details,
			AddedBy:     actor.Username,
			AddedAt:     now,
		})
		g.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, group.ID, actor, model.EventGameAdded, model.GamePayload{Name: details.Name})
	return updated, nil
}

// RemoveGame drops a game from the group's roster. Any member may remove
// games; plays already recorded for it are kept.
func (s *Service) RemoveGame(ctx context.Context, ident string, actor *model.User, name string) (*model.Group, error) {
	group, err := s.Get(ctx, ident, actor)
	if err != nil {
		return nil, err
	}

	var removed string
	updated, err := s.coordinator.MutateGroup(ctx, group.ID, func(g *model.Group) error {
		if g.GetMemberByID(actor.ID) == nil {
			return model.ErrGroupNotFound
		}
		game := g.GetGame(strings.TrimSpace(name))
		if game == nil {
			return model.ErrGameNotInRoster
		}
		removed = game.Name
		g.RemoveGame(removed)
		g.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, group.ID, actor, model.EventGameRemoved, model.GamePayload{Name: removed})
	return updated, nil
}

// Publish sends a group event on behalf of actor. Exposed for services that
// change group-scoped state outside this package.
func (s *Service) Publish(ctx context.Context, groupID model.GroupID, actor *model.User, typ model.EventType, payload any) {
	s.publish(ctx, groupID, actor, typ, payload)
}

func (s *Service) publish(ctx context.Context, groupID model.GroupID, actor *model.User, typ model.EventType, payload any) {
	s.events.Publish(ctx, model.Event{
		Type:      typ,
		Timestamp: s.clock.Now(),
		GroupID:   groupID,
		Actor:     actor.Username,
		Payload:   payload,
	})
}
