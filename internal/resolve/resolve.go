// Package resolve looks entities up by a string that may be either an
// ObjectID or a unique name.
package resolve

import (
	"context"
	"errors"

	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
)

// Via records which lookup found the entity
type Via int

const (
	ByID Via = iota + 1
	ByName
)

func (v Via) String() string {
	switch v {
	case ByID:
		return "id"
	case ByName:
		return "name"
	default:
		return "unknown"
	}
}

// Result is a resolved entity tagged with how it was found
type Result[T any] struct {
	Value T
	Via   Via
}

// Lookup fetches an entity by one key
type Lookup[T any] func(ctx context.Context, key string) (T, error)

// Entity resolves raw by trying it as an ID first and then as a name.
// The ID lookup is skipped when raw does not parse as an ID. A notFound
// error from the ID lookup falls through to the name lookup; any other
// error is returned as is. When neither lookup matches, the name lookup's
// error is returned.
func Entity[T any](ctx context.Context, raw string, byID, byName Lookup[T], notFound error) (Result[T], error) {
	if idgen.IsID(raw) {
		v, err := byID(ctx, raw)
		if err == nil {
			return Result[T]{Value: v, Via: ByID}, nil
		}
		if !errors.Is(err, notFound) {
			return Result[T]{}, err
		}
	}

	v, err := byName(ctx, raw)
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Value: v, Via: ByName}, nil
}
