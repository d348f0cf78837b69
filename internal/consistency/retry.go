package consistency

import (
	"context"
	"errors"

	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/storage"
)

// maxAttempts bounds how often a read-modify-write is retried after losing a
// version race
const maxAttempts = 5

// ErrNoChange lets a mutation report that the stored document already has
// the desired state
var ErrNoChange = errors.New("no change")

// updateUser loads a user, applies mutate and saves it, retrying from a
// fresh read on version conflicts. A mutate returning ErrNoChange skips the
// write and returns the loaded user.
func updateUser(ctx context.Context, store storage.Storage, id model.UserID, mutate func(*model.User) error) (*model.User, error) {
	for range maxAttempts {
		user, err := store.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(user); err != nil {
			if errors.Is(err, ErrNoChange) {
				return user, nil
			}
			return nil, err
		}
		err = store.SaveUser(ctx, user)
		if errors.Is(err, model.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, model.ErrVersionConflict
}

// updateGroup is updateUser for groups
func updateGroup(ctx context.Context, store storage.Storage, id model.GroupID, mutate func(*model.Group) error) (*model.Group, error) {
	for range maxAttempts {
		group, err := store.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(group); err != nil {
			if errors.Is(err, ErrNoChange) {
				return group, nil
			}
			return nil, err
		}
		err = store.SaveGroup(ctx, group)
		if errors.Is(err, model.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return group, nil
	}
	return nil, model.ErrVersionConflict
}
