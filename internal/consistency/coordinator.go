// Package consistency keeps the user and group halves of a membership in
// step. Every change that touches both documents goes through the
// Coordinator.
package consistency

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/mcoot/boardgame-groups/internal/dependencies/clock"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// errGroupEmptied signals that removing a member would leave the group empty
var errGroupEmptied = errors.New("group would have no members")

// Coordinator applies cross-document membership changes
type Coordinator struct {
	store  storage.Storage
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a new Coordinator
func New(store storage.Storage, clk clock.Clock, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		clock:  clk,
		logger: logger.With(slog.String("component", "consistency")),
	}
}

// UserRemoval describes the group-side effects of deleting a user
type UserRemoval struct {
	// Left holds the groups the user was removed from, as saved
	Left []*model.Group
	// Deleted holds the groups deleted because the user was their last member
	Deleted []model.GroupID
}

// MutateGroup applies mutate to the stored group, retrying on version
// conflicts. mutate may return ErrNoChange to skip the write.
func (c *Coordinator) MutateGroup(ctx context.Context, id model.GroupID, mutate func(*model.Group) error) (*model.Group, error) {
	return updateGroup(ctx, c.store, id, mutate)
}

// MutateUser applies mutate to the stored user, retrying on version
// conflicts. mutate may return ErrNoChange to skip the write.
func (c *Coordinator) MutateUser(ctx context.Context, id model.UserID, mutate func(*model.User) error) (*model.User, error) {
	return updateUser(ctx, c.store, id, mutate)
}

// CreateGroup stores group with creator as its only member and owner, then
// links the group onto the creator. If the link fails the group is deleted
// again.
func (c *Coordinator) CreateGroup(ctx context.Context, group *model.Group, creator *model.User) error {
	group.Members = []model.GroupMember{{UserID: creator.ID, Username: creator.Username, JoinedAt: c.clock.Now()}}
	group.Owners = []string{creator.Username}
	if group.Games == nil {
		group.Games = []model.GroupGame{}
	}

	return NewSaga("create_group", c.logger,
		Step{
			Name:       "insert group",
			Action:     func(ctx context.Context) error { return c.store.CreateGroup(ctx, group) },
			Compensate: func(ctx context.Context) error { return c.store.DeleteGroup(ctx, group.ID) },
		},
		Step{
			Name:   "link creator",
			Action: func(ctx context.Context) error { return c.AddGroupLink(ctx, creator.ID, group.ID) },
		},
	).Run(ctx)
}

// AddMember puts user on the group roster and links the group onto the user.
// Adding an existing member only repairs the user-side link. The returned
// bool reports whether the roster changed.
func (c *Coordinator) AddMember(ctx context.Context, groupID model.GroupID, user *model.User) (*model.Group, bool, error) {
	var group *model.Group
	added := false

	err := NewSaga("add_member", c.logger,
		Step{
			Name: "add to roster",
			Action: func(ctx context.Context) error {
				g, err := updateGroup(ctx, c.store, groupID, func(g *model.Group) error {
					added = g.AddMember(model.GroupMember{UserID: user.ID, Username: user.Username, JoinedAt: c.clock.Now()})
					if !added {
						return ErrNoChange
					}
					g.UpdatedAt = c.clock.Now()
					return nil
				})
				group = g
				return err
			},
			Compensate: func(ctx context.Context) error {
				if !added {
					return nil
				}
				_, err := updateGroup(ctx, c.store, groupID, func(g *model.Group) error {
					if !g.RemoveMember(user.ID) {
						return ErrNoChange
					}
					return nil
				})
				return err
			},
		},
		Step{
			Name:   "link user",
			Action: func(ctx context.Context) error { return c.AddGroupLink(ctx, user.ID, groupID) },
		},
	).Run(ctx)
	if err != nil {
		return nil, false, err
	}
	return group, added, nil
}

// RemoveMember takes a user off the roster and unlinks the group from the
// user. The last member and the last owner cannot be removed.
func (c *Coordinator) RemoveMember(ctx context.Context, groupID model.GroupID, userID model.UserID) (*model.Group, error) {
	var (
		group    *model.Group
		removed  model.GroupMember
		wasOwner bool
	)

	err := NewSaga("remove_member", c.logger,
		Step{
			Name: "remove from roster",
			Action: func(ctx context.Context) error {
				g, err := updateGroup(ctx, c.store, groupID, func(g *model.Group) error {
					m := g.GetMemberByID(userID)
					if m == nil {
						return model.ErrNotGroupMember
					}
					if len(g.Members) == 1 {
						return model.ErrLastMember
					}
					wasOwner = g.IsOwner(m.Username)
					if wasOwner && len(g.Owners) == 1 {
						return model.ErrLastOwner
					}
					removed = *m
					g.RemoveMember(userID)
					g.UpdatedAt = c.clock.Now()
					return nil
				})
				group = g
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, err := updateGroup(ctx, c.store, groupID, func(g *model.Group) error {
					if !g.AddMember(removed) {
						return ErrNoChange
					}
					if wasOwner {
						g.SetOwner(removed.Username, true)
					}
					return nil
				})
				return err
			},
		},
		Step{
			Name:   "unlink user",
			Action: func(ctx context.Context) error { return c.RemoveGroupLink(ctx, userID, groupID) },
		},
	).Run(ctx)
	if err != nil {
		return nil, err
	}
	return group, nil
}

// SetOwner grants or revokes ownership for an existing member. Revoking the
// last owner is rejected.
func (c *Coordinator) SetOwner(ctx context.Context, groupID model.GroupID, username string, owner bool) (*model.Group, error) {
	return updateGroup(ctx, c.store, groupID, func(g *model.Group) error {
		if !g.IsMember(username) {
			return model.ErrNotGroupMember
		}
		if !owner && g.IsOwner(username) && len(g.Owners) == 1 {
			return model.ErrLastOwner
		}
		if !g.SetOwner(username, owner) {
			return ErrNoChange
		}
		g.UpdatedAt = c.clock.Now()
		return nil
	})
}

// DeleteGroup removes the group document, then unlinks it from every member
// and drops its plays. Only the document delete can fail the call; the
// fan-out is best-effort and logged.
func (c *Coordinator) DeleteGroup(ctx context.Context, group *model.Group) error {
	if err := c.store.DeleteGroup(ctx, group.ID); err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	for _, m := range group.Members {
		if err := c.RemoveGroupLink(ctx, m.UserID, group.ID); err != nil {
			c.logger.Warn("failed to unlink deleted group from member",
				slog.String("group_id", string(group.ID)),
				slog.String("user_id", string(m.UserID)),
				slog.Any("error", err))
		}
	}
	c.dropPlays(ctx, group.ID)

	c.logger.Info("group deleted",
		slog.String("group_id", string(group.ID)),
		slog.Int("members", len(group.Members)))
	return nil
}

// DeleteUser removes the user from every group it belongs to and then
// deletes the user document. When the user was a group's last owner the
// longest-standing remaining member becomes owner; when it was the last
// member the group is deleted. Group-side failures are logged, not returned.
func (c *Coordinator) DeleteUser(ctx context.Context, user *model.User) (*UserRemoval, error) {
	removal := &UserRemoval{}

	for _, groupID := range user.Groups {
		changed := false
		g, err := updateGroup(ctx, c.store, groupID, func(g *model.Group) error {
			changed = false
			if g.GetMemberByID(user.ID) == nil {
				return ErrNoChange
			}
			if len(g.Members) == 1 {
				return errGroupEmptied
			}
			g.RemoveMember(user.ID)
			if len(g.Owners) == 0 {
				g.SetOwner(g.OldestMember().Username, true)
			}
			g.UpdatedAt = c.clock.Now()
			changed = true
			return nil
		})

		switch {
		case errors.Is(err, errGroupEmptied):
			if err := c.store.DeleteGroup(ctx, groupID); err != nil {
				c.logger.Warn("failed to delete emptied group",
					slog.String("group_id", string(groupID)),
					slog.Any("error", err))
				continue
			}
			c.dropPlays(ctx, groupID)
			removal.Deleted = append(removal.Deleted, groupID)
		case errors.Is(err, model.ErrGroupNotFound):
			// dangling reference, nothing to clean up
		case err != nil:
			c.logger.Warn("failed to remove deleted user from group",
				slog.String("group_id", string(groupID)),
				slog.String("user_id", string(user.ID)),
				slog.Any("error", err))
		case changed:
			removal.Left = append(removal.Left, g)
		}
	}

	if err := c.store.DeleteValidationKeysForUser(ctx, user.ID); err != nil {
		c.logger.Warn("failed to delete validation keys",
			slog.String("user_id", string(user.ID)),
			slog.Any("error", err))
	}
	if err := c.store.DeleteUser(ctx, user.ID); err != nil {
		return nil, err
	}
	return removal, nil
}

// RenameUser rewrites oldUsername to the user's current username on every
// roster and play that mentions it. Best-effort: failures are logged.
func (c *Coordinator) RenameUser(ctx context.Context, user *model.User, oldUsername string) {
	if oldUsername == user.Username {
		return
	}

	for _, groupID := range user.Groups {
		_, err := updateGroup(ctx, c.store, groupID, func(g *model.Group) error {
			m := g.GetMemberByID(user.ID)
			if m == nil {
				return ErrNoChange
			}
			m.Username = user.Username
			if idx := slices.Index(g.Owners, oldUsername); idx >= 0 {
				g.Owners[idx] = user.Username
			}
			return nil
		})
		if err != nil {
			c.logger.Warn("failed to rename member",
				slog.String("group_id", string(groupID)),
				slog.String("user_id", string(user.ID)),
				slog.Any("error", err))
		}
	}

	plays, err := c.store.ListPlaysForUser(ctx, oldUsername)
	if err != nil {
		c.logger.Warn("failed to list plays for rename", slog.String("user_id", string(user.ID)), slog.Any("error", err))
		return
	}
	for _, p := range plays {
		for i := range p.Players {
			if p.Players[i].Username == oldUsername {
				p.Players[i].Username = user.Username
			}
		}
		if p.RecordedBy == oldUsername {
			p.RecordedBy = user.Username
		}
		if err := c.store.SavePlay(ctx, p); err != nil {
			c.logger.Warn("failed to rename player in play",
				slog.String("play_id", string(p.ID)),
				slog.Any("error", err))
		}
	}
}

// AddGroupLink adds a group reference to the user. Idempotent.
func (c *Coordinator) AddGroupLink(ctx context.Context, userID model.UserID, groupID model.GroupID) error {
	_, err := updateUser(ctx, c.store, userID, func(u *model.User) error {
		if !u.AddGroup(groupID) {
			return ErrNoChange
		}
		return nil
	})
	return err
}

// RemoveGroupLink removes a group reference from the user. Idempotent, and a
// missing user counts as already unlinked.
func (c *Coordinator) RemoveGroupLink(ctx context.Context, userID model.UserID, groupID model.GroupID) error {
	_, err := updateUser(ctx, c.store, userID, func(u *model.User) error {
		if !u.RemoveGroup(groupID) {
			return ErrNoChange
		}
		return nil
	})
	if errors.Is(err, model.ErrUserNotFound) {
		return nil
	}
	return err
}

func (c *Coordinator) dropPlays(ctx context.Context, groupID model.GroupID) {
	if err := c.store.DeletePlaysForGroup(ctx, groupID); err != nil {
		c.logger.Warn("failed to delete plays for group",
			slog.String("group_id", string(groupID)),
			slog.Any("error", err))
	}
}
