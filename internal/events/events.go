// Package events carries group activity from services to subscribers
package events

import (
	"context"

	"github.com/mcoot/boardgame-groups/internal/model"
)

// Publisher receives group events. Publish must not block on slow
// subscribers.
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(ctx context.Context, event model.Event) {}

// Ensure Nop implements Publisher
var _ Publisher = Nop{}
